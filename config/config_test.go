// Copyright (c) VeltMQ
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4, cfg.Backup.Workers)
	assert.Equal(t, 3, cfg.Backup.RetryCeiling)
	assert.Equal(t, 100, cfg.Backup.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Backup.DrainTimeout)
	assert.Equal(t, "badger", cfg.Storage.Type)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EmptyFilenameReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
backup:
  workers: 8
  retry_ceiling: 5
storage:
  type: memory
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Backup.Workers)
	assert.Equal(t, 5, cfg.Backup.RetryCeiling)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched fields keep their defaults.
	assert.Equal(t, 100, cfg.Backup.BatchSize)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backup: ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Backup.Workers = 0 }},
		{"zero queue size", func(c *Config) { c.Backup.QueueSize = 0 }},
		{"negative retry ceiling", func(c *Config) { c.Backup.RetryCeiling = -1 }},
		{"zero batch size", func(c *Config) { c.Backup.BatchSize = 0 }},
		{"tiny flush interval", func(c *Config) { c.Backup.FlushInterval = time.Millisecond }},
		{"tiny drain timeout", func(c *Config) { c.Backup.DrainTimeout = time.Millisecond }},
		{"unknown storage", func(c *Config) { c.Storage.Type = "postgres" }},
		{"badger without dir", func(c *Config) { c.Storage.BadgerDir = "" }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"otel without endpoint", func(c *Config) { c.Otel.Enabled = true; c.Otel.Endpoint = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.Backup.Workers = 12
	cfg.Storage.Type = "memory"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
