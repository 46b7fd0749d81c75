package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 100, cfg.ETL.BatchSize)
	assert.Equal(t, 3, cfg.ETL.MaxRetries)
	assert.Equal(t, time.Second, cfg.Backoff.BaseDelay)
	assert.Equal(t, 2.0, cfg.Backoff.Factor)
	assert.Equal(t, 60*time.Second, cfg.Backoff.MaxDelay)
	assert.Equal(t, 25, cfg.Sources.CoinPaprika.RequestsPerMinute)
	assert.Equal(t, 50, cfg.Sources.CoinGecko.RequestsPerMinute)
	assert.Equal(t, 50, cfg.Checkpoint.Interval)
	assert.InDelta(t, 0.8, cfg.SchemaDrift.Threshold, 1e-9)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	yaml := `
etl:
  max_retries: 5
  workers: 1
backoff:
  base_delay: 250ms
  max_delay: 4s
schema_drift:
  threshold: 0.9
sources:
  csv:
    path: /tmp/coins.csv
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.ETL.MaxRetries)
	assert.Equal(t, 1, cfg.ETL.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Backoff.BaseDelay)
	assert.Equal(t, 4*time.Second, cfg.Backoff.MaxDelay)
	assert.InDelta(t, 0.9, cfg.SchemaDrift.Threshold, 1e-9)
	assert.Equal(t, "/tmp/coins.csv", cfg.Sources.CSV.Path)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Database:    DatabaseConfig{Driver: "sqlite", Path: "x.db"},
			ETL:         ETLConfig{BatchSize: 10, MaxRetries: 3, Workers: 1},
			Backoff:     BackoffConfig{BaseDelay: time.Second, Factor: 2, MaxDelay: time.Minute},
			Checkpoint:  CheckpointConfig{Interval: 50},
			SchemaDrift: SchemaDriftConfig{Threshold: 0.8},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: true},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Database.Driver = "postgres" }, wantErr: true},
		{name: "zero retries", mutate: func(c *Config) { c.ETL.MaxRetries = 0 }, wantErr: true},
		{name: "max below base", mutate: func(c *Config) { c.Backoff.MaxDelay = time.Millisecond }, wantErr: true},
		{name: "shrinking factor", mutate: func(c *Config) { c.Backoff.Factor = 0.5 }, wantErr: true},
		{name: "threshold out of range", mutate: func(c *Config) { c.SchemaDrift.Threshold = 1.5 }, wantErr: true},
		{name: "zero threshold", mutate: func(c *Config) { c.SchemaDrift.Threshold = 0 }, wantErr: true},
		{name: "threshold of one", mutate: func(c *Config) { c.SchemaDrift.Threshold = 1 }},
		{name: "archive without bucket", mutate: func(c *Config) { c.Archive.Enabled = true }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
