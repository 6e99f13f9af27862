package rct

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// DataType describes the wire encoding of an OID's payload.
type DataType int

const (
	DataTypeUnknown DataType = iota
	DataTypeBool
	DataTypeUint8
	DataTypeInt8
	DataTypeUint16
	DataTypeInt16
	DataTypeUint32
	DataTypeInt32
	DataTypeEnum
	DataTypeFloat
	DataTypeString
)

func (t DataType) String() string {
	switch t {
	case DataTypeBool:
		return "BOOL"
	case DataTypeUint8:
		return "UINT8"
	case DataTypeInt8:
		return "INT8"
	case DataTypeUint16:
		return "UINT16"
	case DataTypeInt16:
		return "INT16"
	case DataTypeUint32:
		return "UINT32"
	case DataTypeInt32:
		return "INT32"
	case DataTypeEnum:
		return "ENUM"
	case DataTypeFloat:
		return "FLOAT"
	case DataTypeString:
		return "STRING"
	}
	return "UNKNOWN"
}

// DecodeValue decodes a payload according to the data type. Multi-byte
// integers are big-endian; FLOAT is an IEEE-754 big-endian float32; STRING
// is cut at the first NUL byte. ENUM values are a single octet, like UINT8.
// DataTypeUnknown payloads cannot be decoded here, callers format them as
// hex instead.
func DecodeValue(t DataType, payload []byte) (any, error) {
	need := map[DataType]int{
		DataTypeBool:   1,
		DataTypeUint8:  1,
		DataTypeInt8:   1,
		DataTypeEnum:   1,
		DataTypeUint16: 2,
		DataTypeInt16:  2,
		DataTypeUint32: 4,
		DataTypeInt32:  4,
		DataTypeFloat:  4,
	}
	if n, ok := need[t]; ok && len(payload) < n {
		return nil, fmt.Errorf("decode %s: payload too short: %d bytes, need %d", t, len(payload), n)
	}

	switch t {
	case DataTypeBool:
		return payload[0] != 0, nil
	case DataTypeUint8, DataTypeEnum:
		return payload[0], nil
	case DataTypeInt8:
		return int8(payload[0]), nil
	case DataTypeUint16:
		return binary.BigEndian.Uint16(payload), nil
	case DataTypeInt16:
		return int16(binary.BigEndian.Uint16(payload)), nil
	case DataTypeUint32:
		return binary.BigEndian.Uint32(payload), nil
	case DataTypeInt32:
		return int32(binary.BigEndian.Uint32(payload)), nil
	case DataTypeFloat:
		return math.Float32frombits(binary.BigEndian.Uint32(payload)), nil
	case DataTypeString:
		s := string(payload)
		if idx := strings.IndexByte(s, 0); idx >= 0 {
			s = s[:idx]
		}
		return s, nil
	}
	return nil, fmt.Errorf("cannot decode data type %s", t)
}

// EncodeValue encodes a value into the wire form of the data type. It is the
// inverse of DecodeValue and accepts the Go types DecodeValue produces.
func EncodeValue(t DataType, value any) ([]byte, error) {
	switch t {
	case DataTypeBool:
		v, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("encode %s: want bool, got %T", t, value)
		}
		if v {
			return []byte{1}, nil
		}
		return []byte{0}, nil

	case DataTypeUint8, DataTypeEnum:
		v, err := toUint64(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", t, err)
		}
		return []byte{byte(v)}, nil

	case DataTypeInt8:
		v, err := toInt64(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", t, err)
		}
		return []byte{byte(int8(v))}, nil

	case DataTypeUint16:
		v, err := toUint64(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", t, err)
		}
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(v))
		return buf, nil

	case DataTypeInt16:
		v, err := toInt64(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", t, err)
		}
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(int16(v)))
		return buf, nil

	case DataTypeUint32:
		v, err := toUint64(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", t, err)
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(v))
		return buf, nil

	case DataTypeInt32:
		v, err := toInt64(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", t, err)
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(int32(v)))
		return buf, nil

	case DataTypeFloat:
		var f float32
		switch v := value.(type) {
		case float32:
			f = v
		case float64:
			f = float32(v)
		default:
			return nil, fmt.Errorf("encode %s: want float, got %T", t, value)
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, math.Float32bits(f))
		return buf, nil

	case DataTypeString:
		switch v := value.(type) {
		case string:
			return []byte(v), nil
		case []byte:
			return v, nil
		}
		return nil, fmt.Errorf("encode %s: want string, got %T", t, value)
	}
	return nil, fmt.Errorf("cannot encode data type %s", t)
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	}
	return 0, fmt.Errorf("want integer, got %T", value)
}

func toUint64(value any) (uint64, error) {
	switch v := value.(type) {
	case int:
		return uint64(v), nil
	case int32:
		return uint64(v), nil
	case int64:
		return uint64(v), nil
	case uint8:
		return uint64(v), nil
	case uint16:
		return uint64(v), nil
	case uint32:
		return uint64(v), nil
	case uint64:
		return v, nil
	}
	return 0, fmt.Errorf("want unsigned integer, got %T", value)
}
