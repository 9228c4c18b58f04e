// Package config handles TOML configuration for ec2launch.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	AWS     AWSConfig         `toml:"aws"`
	Launch  LaunchConfig      `toml:"launch"`
	OTEL    OTELConfig        `toml:"otel"`
	Metrics PushgatewayConfig `toml:"metrics"`
	Log     LogConfig         `toml:"log"`
	Output  OutputConfig      `toml:"output"`
}

// AWSConfig holds AWS provider settings. Empty region and profile defer to
// the SDK's own resolution.
type AWSConfig struct {
	Region      string `toml:"region"`
	Profile     string `toml:"profile"`
	Endpoint    string `toml:"endpoint"`
	MaxAttempts int    `toml:"max_attempts"`
}

// LaunchConfig holds launch and wait settings.
type LaunchConfig struct {
	Provider     string   `toml:"provider"`
	InstanceType string   `toml:"instance_type"`
	Policies     []string `toml:"policies"`

	PollIntervalStr string `toml:"poll_interval"`
	CallTimeoutStr  string `toml:"call_timeout"`
	WaitTimeoutStr  string `toml:"wait_timeout"`

	PollInterval time.Duration `toml:"-"`
	CallTimeout  time.Duration `toml:"-"`
	WaitTimeout  time.Duration `toml:"-"` // zero waits until converged or stopped
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string        `toml:"endpoint"`
	Insecure    bool          `toml:"insecure"`
	ServiceName string        `toml:"service_name"`
	Traces      TracesConfig  `toml:"traces"`
	Metrics     MetricsConfig `toml:"metrics"`
}

// TracesConfig holds tracing settings.
type TracesConfig struct {
	Enabled    bool    `toml:"enabled"`
	SampleRate float64 `toml:"sample_rate"`
}

// MetricsConfig holds OTLP metrics settings.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// PushgatewayConfig holds Prometheus pushgateway settings. Metrics are
// pushed once when the run ends.
type PushgatewayConfig struct {
	Pushgateway string `toml:"pushgateway"`
	Job         string `toml:"job"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// OutputConfig holds result rendering settings.
type OutputConfig struct {
	Format string `toml:"format"`
}

// Load reads and parses a TOML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := parseDurations(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	// defaults always parse
	_ = parseDurations(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.AWS.MaxAttempts == 0 {
		cfg.AWS.MaxAttempts = 1
	}
	if cfg.Launch.Provider == "" {
		cfg.Launch.Provider = "aws"
	}
	if cfg.Launch.InstanceType == "" {
		cfg.Launch.InstanceType = "t2.micro"
	}
	if cfg.Launch.PollIntervalStr == "" {
		cfg.Launch.PollIntervalStr = "2s"
	}
	if cfg.Launch.CallTimeoutStr == "" {
		cfg.Launch.CallTimeoutStr = "30s"
	}
	if cfg.Launch.WaitTimeoutStr == "" {
		cfg.Launch.WaitTimeoutStr = "0s"
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "ec2launch"
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = "ec2launch"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = "table"
	}
}

func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"poll_interval", cfg.Launch.PollIntervalStr, &cfg.Launch.PollInterval},
		{"call_timeout", cfg.Launch.CallTimeoutStr, &cfg.Launch.CallTimeout},
		{"wait_timeout", cfg.Launch.WaitTimeoutStr, &cfg.Launch.WaitTimeout},
	}
	for _, f := range fields {
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parse %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// Validate checks the configuration is valid.
func (c *Config) Validate() error {
	switch c.Launch.Provider {
	case "aws", "sim":
	default:
		return fmt.Errorf("launch: unknown provider %q", c.Launch.Provider)
	}
	if c.Launch.PollInterval <= 0 {
		return fmt.Errorf("launch: poll_interval must be positive (got %v)", c.Launch.PollInterval)
	}
	if c.Launch.CallTimeout < 0 {
		return fmt.Errorf("launch: call_timeout must not be negative (got %v)", c.Launch.CallTimeout)
	}
	if c.Launch.WaitTimeout < 0 {
		return fmt.Errorf("launch: wait_timeout must not be negative (got %v)", c.Launch.WaitTimeout)
	}
	if c.AWS.MaxAttempts < 1 {
		return fmt.Errorf("aws: max_attempts must be at least 1 (got %d)", c.AWS.MaxAttempts)
	}
	if c.OTEL.Traces.SampleRate < 0.0 || c.OTEL.Traces.SampleRate > 1.0 {
		return fmt.Errorf("otel: traces.sample_rate must be between 0.0 and 1.0 (got %v)", c.OTEL.Traces.SampleRate)
	}
	switch c.Output.Format {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("output: unknown format %q", c.Output.Format)
	}
	return nil
}
