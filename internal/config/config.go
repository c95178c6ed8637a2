// Package config holds the client's on-disk configuration: bootstrap
// host and credentials, per-server buffer sizing, and the observability
// toggles (tracing/metrics/logging) that wrap every operation.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BootstrapConfig controls the initial cluster-topology fetch (spec.md §6).
type BootstrapConfig struct {
	Host   string `yaml:"host"`   // host:port of any cluster node
	Bucket string `yaml:"bucket"` // bucket name
	// Username/Password authenticate the bucketsStreaming HTTP request via
	// Basic auth. A Client uses the same pair for each server's SASL
	// handshake; the per-config SASL credentials in vbucket.Config are not
	// consulted.
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SASLConfig controls mechanism preference for the binary-protocol handshake.
type SASLConfig struct {
	// PreferredMechanisms is tried in order against the set the server
	// offers via LIST_MECHS; the first mutual match wins. Defaults to
	// ["CRAM-MD5", "PLAIN"] (strongest first).
	PreferredMechanisms []string `yaml:"preferred_mechanisms"`
}

// ServerConfig controls per-connection buffer sizing and timeouts.
type ServerConfig struct {
	InputBufferBytes  int           `yaml:"input_buffer_bytes"`  // initial input buffer capacity (default: 8192)
	OutputBufferBytes int           `yaml:"output_buffer_bytes"` // initial output buffer capacity (default: 4096)
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`     // per-candidate-address dial timeout (default: 2s)
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`      // default: false
	Endpoint    string  `yaml:"endpoint"`     // otlp http collector, e.g. localhost:4318
	ServiceName string  `yaml:"service_name"` // default: vbclient
	SampleRate  float64 `yaml:"sample_rate"`  // default: 1.0
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled          bool      `yaml:"enabled"`           // default: true
	Namespace        string    `yaml:"namespace"`         // default: vbclient
	HistogramBuckets []float64 `yaml:"histogram_buckets"` // latency buckets in ms
}

// LoggingConfig holds structured operational logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Config is the central configuration struct for a Client.
type Config struct {
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
	SASL      SASLConfig      `yaml:"sasl"`
	Server    ServerConfig    `yaml:"server"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SASL: SASLConfig{
			PreferredMechanisms: []string{"CRAM-MD5", "PLAIN"},
		},
		Server: ServerConfig{
			InputBufferBytes:  8192,
			OutputBufferBytes: 4096,
			ConnectTimeout:    2 * time.Second,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Endpoint:    "localhost:4318",
			ServiceName: "vbclient",
			SampleRate:  1.0,
		},
		Metrics: MetricsConfig{
			Enabled:          true,
			Namespace:        "vbclient",
			HistogramBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromFile loads configuration from a YAML file, starting from defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("VBC_BOOTSTRAP_HOST"); v != "" {
		cfg.Bootstrap.Host = v
	}
	if v := os.Getenv("VBC_BOOTSTRAP_BUCKET"); v != "" {
		cfg.Bootstrap.Bucket = v
	}
	if v := os.Getenv("VBC_BOOTSTRAP_USERNAME"); v != "" {
		cfg.Bootstrap.Username = v
	}
	if v := os.Getenv("VBC_BOOTSTRAP_PASSWORD"); v != "" {
		cfg.Bootstrap.Password = v
	}
	if v := os.Getenv("VBC_TRACING_ENABLED"); v != "" {
		cfg.Tracing.Enabled = parseBool(v)
	}
	if v := os.Getenv("VBC_TRACING_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
	}
	if v := os.Getenv("VBC_TRACING_SAMPLE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Tracing.SampleRate = f
		}
	}
	if v := os.Getenv("VBC_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("VBC_METRICS_NAMESPACE"); v != "" {
		cfg.Metrics.Namespace = v
	}
	if v := os.Getenv("VBC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VBC_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("VBC_CONNECT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ConnectTimeout = d
		}
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes"
}
