// Package config loads the host-facing YAML configuration for the
// resilience core.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aponysus/aegis/backoff"
	"github.com/aponysus/aegis/circuit"
	"github.com/aponysus/aegis/history"
)

// Duration parses YAML scalars with time.ParseDuration ("30s", "10m").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

type RetryConfig struct {
	MaxAttempts   int      `yaml:"max_attempts"`
	InitialDelay  Duration `yaml:"initial_delay"`
	MaxDelay      Duration `yaml:"max_delay"`
	BackoffFactor float64  `yaml:"backoff_factor"`
	Jitter        *bool    `yaml:"jitter"`
}

type CircuitConfig struct {
	FailureThreshold int      `yaml:"failure_threshold"`
	RecoveryTimeout  Duration `yaml:"recovery_timeout"`
	MonitoringPeriod Duration `yaml:"monitoring_period"`
}

type HistoryConfig struct {
	Capacity      int      `yaml:"capacity"`
	Retention     Duration `yaml:"retention"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Retry   RetryConfig   `yaml:"retry"`
	Circuit CircuitConfig `yaml:"circuit"`
	History HistoryConfig `yaml:"history"`
	Logging LoggingConfig `yaml:"logging"`
}

// Load reads configuration from a YAML file, expanding environment
// variables in its content. Missing fields keep the package defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &cfg, nil
}

// Policy converts the retry section to a backoff policy, defaulting unset
// fields. Jitter defaults to on when omitted.
func (c *Config) Policy() backoff.Policy {
	jitter := true
	if c.Retry.Jitter != nil {
		jitter = *c.Retry.Jitter
	}
	return backoff.Policy{
		MaxAttempts:  c.Retry.MaxAttempts,
		InitialDelay: time.Duration(c.Retry.InitialDelay),
		MaxDelay:     time.Duration(c.Retry.MaxDelay),
		Factor:       c.Retry.BackoffFactor,
		Jitter:       jitter,
	}.Normalize()
}

// BreakerConfig converts the circuit section, defaulting unset fields.
func (c *Config) BreakerConfig() circuit.Config {
	return circuit.Config{
		FailureThreshold: c.Circuit.FailureThreshold,
		RecoveryTimeout:  time.Duration(c.Circuit.RecoveryTimeout),
		MonitoringPeriod: time.Duration(c.Circuit.MonitoringPeriod),
	}
}

// HistoryStoreConfig converts the history section, defaulting unset fields.
func (c *Config) HistoryStoreConfig() history.Config {
	return history.Config{
		Capacity:      c.History.Capacity,
		Retention:     time.Duration(c.History.Retention),
		SweepInterval: time.Duration(c.History.SweepInterval),
	}
}
