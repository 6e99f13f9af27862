// Package config loads the rctmon configuration from a YAML file,
// RCTMON_* environment variables and built-in defaults, in that order of
// precedence below CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/marmos91/rctmon/internal/bytesize"
)

// Config represents the rctmon configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (RCTMON_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Inverter configures the session with the device
	Inverter InverterConfig `mapstructure:"inverter" yaml:"inverter"`

	// Monitor configures the polling loop
	Monitor MonitorConfig `mapstructure:"monitor" yaml:"monitor"`

	// Influx configures the telemetry sink
	Influx InfluxConfig `mapstructure:"influx" yaml:"influx"`

	// Metrics contains the Prometheus endpoint configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN, ERROR
	Level string `mapstructure:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is the output format: text or json
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json" yaml:"format"`

	// Output is stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output"`
}

// InverterConfig holds the session parameters for the device.
type InverterConfig struct {
	// Host is the inverter host name or IP. Required; usually given on the
	// command line.
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the inverter TCP port
	Port int `mapstructure:"port" validate:"gte=0,lte=65535" yaml:"port"`

	// Timeout is the socket receive timeout
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0" yaml:"timeout"`

	// BufferSize is the receive buffer size; accepts "2Ki" style values
	BufferSize bytesize.ByteSize `mapstructure:"buffer_size" yaml:"buffer_size"`

	// IgnoreCRC downgrades checksum mismatches to a flag on the frame
	IgnoreCRC bool `mapstructure:"ignore_crc" yaml:"ignore_crc"`
}

// MonitorConfig holds the polling loop parameters.
type MonitorConfig struct {
	// ShortInterval is the poll period of the power readings
	ShortInterval time.Duration `mapstructure:"short_interval" validate:"gte=0" yaml:"short_interval"`

	// LongInterval is the poll period of the battery and energy readings
	LongInterval time.Duration `mapstructure:"long_interval" validate:"gte=0" yaml:"long_interval"`

	// MaxReadRetries bounds failed poll rounds before reconnecting
	MaxReadRetries int `mapstructure:"max_read_retries" validate:"gte=0" yaml:"max_read_retries"`

	// MaxConnectRetries bounds failed connects before giving up
	MaxConnectRetries int `mapstructure:"max_connect_retries" validate:"gte=0" yaml:"max_connect_retries"`

	// ReconnectDelay is the base reconnect backoff
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" validate:"gte=0" yaml:"reconnect_delay"`
}

// InfluxConfig holds the telemetry sink parameters.
type InfluxConfig struct {
	// Enabled switches the sink on; also implied by --influx-host
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Host of the InfluxDB endpoint
	Host string `mapstructure:"host" yaml:"host"`

	// Port of the InfluxDB endpoint
	Port int `mapstructure:"port" validate:"gte=0,lte=65535" yaml:"port"`

	// Token authenticates the client; "user:password" for 1.x endpoints
	Token string `mapstructure:"token" yaml:"token"`

	// Org is the InfluxDB organisation
	Org string `mapstructure:"org" yaml:"org"`

	// Bucket is the target bucket or "database/retention-policy"
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
}

// URL renders the base URL of the endpoint.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// MetricsConfig contains the Prometheus endpoint configuration.
type MetricsConfig struct {
	// Enabled switches the /metrics HTTP server on
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Listen is the listen address, e.g. ":9090"
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// Load reads the configuration. With an empty path the default locations are
// searched; a missing config file is not an error, defaults apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks the structural constraints declared on the config tags.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	return nil
}

// setupViper configures environment variable support and the config file
// search path. Environment variables use the RCTMON_ prefix with underscores,
// e.g. RCTMON_LOGGING_LEVEL=DEBUG or RCTMON_INVERTER_HOST=inverter.local.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("RCTMON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees keys viper knows about; bind every key so its
	// environment variable applies even when the config file omits it.
	for _, key := range []string{
		"logging.level", "logging.format", "logging.output",
		"inverter.host", "inverter.port", "inverter.timeout", "inverter.buffer_size", "inverter.ignore_crc",
		"monitor.short_interval", "monitor.long_interval", "monitor.max_read_retries",
		"monitor.max_connect_retries", "monitor.reconnect_delay",
		"influx.enabled", "influx.host", "influx.port", "influx.token", "influx.org", "influx.bucket",
		"metrics.enabled", "metrics.listen",
	} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the config file when one exists. A missing file is
// fine unless it was named explicitly.
func readConfigFile(v *viper.Viper, configPath string) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	if _, notFound := err.(viper.ConfigFileNotFoundError); notFound && configPath == "" {
		return nil
	}
	if configPath == "" && os.IsNotExist(err) {
		return nil
	}
	return fmt.Errorf("failed to read config file: %w", err)
}

// configDecodeHooks returns a combined decode hook for all custom types.
// This includes ByteSize and time.Duration parsing.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings like "2Ki" and plain numbers to
// bytesize.ByteSize.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.Parse(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s", "5m" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path. Uses
// XDG_CONFIG_HOME if set, otherwise ~/.config, with the current directory as
// a last resort.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "rctmon")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "rctmon")
	}
	return "."
}
