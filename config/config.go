// Copyright (c) VeltMQ
// SPDX-License-Identifier: Apache-2.0

// Package config loads and validates backup service configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the backup service.
type Config struct {
	Backup  BackupConfig  `yaml:"backup"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Otel    OtelConfig    `yaml:"otel"`
}

// BackupConfig holds pipeline settings. Workers, RetryCeiling and BatchSize
// may be changed at runtime through a config reload.
type BackupConfig struct {
	// Worker pool size for batch-store execution
	Workers int `yaml:"workers"`

	// Admission queue capacity; a full queue rejects batches into retry
	QueueSize int `yaml:"queue_size"`

	// Re-submission ceiling per record before permanent discard
	RetryCeiling int `yaml:"retry_ceiling"`

	// Per-invocation batch size ceiling; also the trigger's flush size
	BatchSize int `yaml:"batch_size"`

	// Trigger flush interval for partially filled batches
	FlushInterval time.Duration `yaml:"flush_interval"`

	// Bounded wait for in-flight work on shutdown
	DrainTimeout time.Duration `yaml:"drain_timeout"`

	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig holds circuit breaker settings for bulk writes.
type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
}

// StorageConfig holds storage backend configuration.
type StorageConfig struct {
	Type string `yaml:"type"` // memory, badger

	// BadgerDB settings
	BadgerDir  string `yaml:"badger_dir"`
	SyncWrites bool   `yaml:"sync_writes"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// OtelConfig holds OpenTelemetry export configuration.
type OtelConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Endpoint       string        `yaml:"endpoint"`
	ServiceName    string        `yaml:"service_name"`
	ServiceVersion string        `yaml:"service_version"`
	ExportInterval time.Duration `yaml:"export_interval"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Backup: BackupConfig{
			Workers:       4,
			QueueSize:     1024,
			RetryCeiling:  3,
			BatchSize:     100,
			FlushInterval: 2 * time.Second,
			DrainTimeout:  5 * time.Second,
			Breaker: BreakerConfig{
				Enabled:          false,
				FailureThreshold: 5,
				ResetTimeout:     60 * time.Second,
			},
		},
		Storage: StorageConfig{
			Type:       "badger",
			BadgerDir:  "/tmp/veltmq/backup",
			SyncWrites: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Otel: OtelConfig{
			Enabled:        false,
			Endpoint:       "localhost:4317",
			ServiceName:    "backup-pipeline",
			ServiceVersion: "1.0.0",
			ExportInterval: 10 * time.Second,
		},
	}
}

// Load loads configuration from a YAML file.
// If the file doesn't exist, returns default configuration.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Backup.Workers < 1 {
		return fmt.Errorf("backup.workers must be at least 1")
	}
	if c.Backup.QueueSize < 1 {
		return fmt.Errorf("backup.queue_size must be at least 1")
	}
	if c.Backup.RetryCeiling < 0 {
		return fmt.Errorf("backup.retry_ceiling cannot be negative")
	}
	if c.Backup.BatchSize < 1 {
		return fmt.Errorf("backup.batch_size must be at least 1")
	}
	if c.Backup.FlushInterval < 100*time.Millisecond {
		return fmt.Errorf("backup.flush_interval must be at least 100ms")
	}
	if c.Backup.DrainTimeout < time.Second {
		return fmt.Errorf("backup.drain_timeout must be at least 1 second")
	}
	if c.Backup.Breaker.Enabled && c.Backup.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("backup.breaker.failure_threshold must be at least 1")
	}

	validStorage := map[string]bool{"memory": true, "badger": true}
	if !validStorage[c.Storage.Type] {
		return fmt.Errorf("storage.type must be one of: memory, badger")
	}
	if c.Storage.Type == "badger" && c.Storage.BadgerDir == "" {
		return fmt.Errorf("storage.badger_dir required when type is badger")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format must be one of: text, json")
	}

	if c.Otel.Enabled {
		if c.Otel.Endpoint == "" {
			return fmt.Errorf("otel.endpoint cannot be empty when otel is enabled")
		}
		if c.Otel.ServiceName == "" {
			return fmt.Errorf("otel.service_name cannot be empty when otel is enabled")
		}
	}

	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
