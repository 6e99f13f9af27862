// Package registry maps object identifiers of the RCT Power inverter to
// names, payload data types and physical units. The device addresses every
// telemetry and control variable by a 32-bit OID; the registry is how the
// rest of the program turns wire frames into named readings and names into
// READ requests.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/marmos91/rctmon/internal/protocol/rct"
)

// ErrUnknownOid is wrapped by lookup failures for ids or names the registry
// does not carry.
var ErrUnknownOid = errors.New("unknown object identifier")

// ObjectInfo describes one inverter variable.
type ObjectInfo struct {
	// ObjectID is the 32-bit identifier used on the wire.
	ObjectID uint32
	// Name is the hierarchical variable name, e.g. "battery.soc".
	Name string
	// ResponseDataType is the wire encoding of response payloads.
	ResponseDataType rct.DataType
	// Unit is the physical unit of the decoded value, empty when unitless.
	Unit string
	// Description is a short human-readable explanation.
	Description string
}

// Registry provides lookup by name and by id over a fixed object table.
type Registry struct {
	byID   map[uint32]ObjectInfo
	byName map[string]ObjectInfo
}

// New builds a registry from an object table. Duplicate ids or names are a
// programming error and panic at startup.
func New(objects []ObjectInfo) *Registry {
	r := &Registry{
		byID:   make(map[uint32]ObjectInfo, len(objects)),
		byName: make(map[string]ObjectInfo, len(objects)),
	}
	for _, oi := range objects {
		if _, dup := r.byID[oi.ObjectID]; dup {
			panic(fmt.Sprintf("registry: duplicate object id 0x%08X", oi.ObjectID))
		}
		if _, dup := r.byName[oi.Name]; dup {
			panic(fmt.Sprintf("registry: duplicate object name %q", oi.Name))
		}
		r.byID[oi.ObjectID] = oi
		r.byName[oi.Name] = oi
	}
	return r
}

// GetByName looks up an object by its hierarchical name.
func (r *Registry) GetByName(name string) (ObjectInfo, error) {
	oi, ok := r.byName[name]
	if !ok {
		return ObjectInfo{}, fmt.Errorf("%w: name %q", ErrUnknownOid, name)
	}
	return oi, nil
}

// GetByID looks up an object by its 32-bit identifier.
func (r *Registry) GetByID(id uint32) (ObjectInfo, error) {
	oi, ok := r.byID[id]
	if !ok {
		return ObjectInfo{}, fmt.Errorf("%w: id 0x%08X", ErrUnknownOid, id)
	}
	return oi, nil
}

// All returns every known object, sorted by name.
func (r *Registry) All() []ObjectInfo {
	out := make([]ObjectInfo, 0, len(r.byName))
	for _, oi := range r.byName {
		out = append(out, oi)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of known objects.
func (r *Registry) Len() int {
	return len(r.byID)
}

var defaultRegistry = New(objects)

// Default returns the registry of known inverter objects.
func Default() *Registry {
	return defaultRegistry
}
