package config

import (
	"time"

	"github.com/marmos91/rctmon/internal/bytesize"
	"github.com/marmos91/rctmon/internal/client"
)

// Defaults that are not zero values.
const (
	DefaultLogLevel  = "INFO"
	DefaultLogFormat = "text"
	DefaultLogOutput = "stderr"

	DefaultInfluxPort    = 8086
	DefaultMetricsListen = ":9100"

	DefaultShortInterval     = 5 * time.Second
	DefaultLongInterval      = time.Minute
	DefaultMaxReadRetries    = 5
	DefaultMaxConnectRetries = 5
	DefaultReconnectDelay    = 5 * time.Second
)

// GetDefaultConfig returns a fully populated default configuration.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every unset field with its default value.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = DefaultLogOutput
	}

	if cfg.Inverter.Port == 0 {
		cfg.Inverter.Port = client.DefaultPort
	}
	if cfg.Inverter.Timeout == 0 {
		cfg.Inverter.Timeout = client.DefaultTimeout
	}
	if cfg.Inverter.BufferSize == 0 {
		cfg.Inverter.BufferSize = bytesize.ByteSize(client.DefaultBufferSize)
	}

	if cfg.Monitor.ShortInterval == 0 {
		cfg.Monitor.ShortInterval = DefaultShortInterval
	}
	if cfg.Monitor.LongInterval == 0 {
		cfg.Monitor.LongInterval = DefaultLongInterval
	}
	if cfg.Monitor.MaxReadRetries == 0 {
		cfg.Monitor.MaxReadRetries = DefaultMaxReadRetries
	}
	if cfg.Monitor.MaxConnectRetries == 0 {
		cfg.Monitor.MaxConnectRetries = DefaultMaxConnectRetries
	}
	if cfg.Monitor.ReconnectDelay == 0 {
		cfg.Monitor.ReconnectDelay = DefaultReconnectDelay
	}

	if cfg.Influx.Port == 0 {
		cfg.Influx.Port = DefaultInfluxPort
	}

	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = DefaultMetricsListen
	}
}
