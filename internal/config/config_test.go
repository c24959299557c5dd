package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, Range{Min: 3, Max: 5}, cfg.Filter.PctChange)
	assert.Equal(t, Range{Min: 4, Max: 10}, cfg.Filter.TurnoverRate)
	assert.Equal(t, Range{Min: 50, Max: 100}, cfg.Filter.MarketCap)
	assert.Equal(t, 1.0, cfg.Filter.MinVolumeRatio)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.Equal(t, time.Second, cfg.Fetch.Pacing)
	assert.Equal(t, 100, cfg.Planner.LotSize)
	assert.Equal(t, "1.02", cfg.Planner.EntryFactor)
	assert.True(t, *cfg.Scoring.IncludeVolume)
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoad_YAMLAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
fetch:
  max_retries: 5
  pacing: 2s
filter:
  pct_change: {min: 2, max: 6}
scoring:
  include_volume: false
monitor:
  symbol: 000001.SZ
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("MONITOR_SYMBOL", "600519.SH")
	t.Setenv("MAX_SYMBOLS", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.Fetch.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Fetch.Pacing)
	assert.Equal(t, Range{Min: 2, Max: 6}, cfg.Filter.PctChange)
	assert.False(t, *cfg.Scoring.IncludeVolume)
	assert.Equal(t, "600519.SH", cfg.Monitor.Symbol)
	assert.Equal(t, 3, cfg.Fetch.MaxSymbols)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fetch: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"inverted range", func(c *Config) { c.Filter.PctChange = Range{Min: 5, Max: 3} }},
		{"zero retries", func(c *Config) { c.Fetch.MaxRetries = 0 }},
		{"volume thresholds", func(c *Config) { c.Scoring.VolumeLow = 2; c.Scoring.VolumeHigh = 1 }},
		{"bad time point", func(c *Config) { c.Monitor.TimePoint = "25:99" }},
		{"short interval", func(c *Config) { c.Monitor.Interval = time.Millisecond }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SCREENER_TEST_VALUE=ok\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("SCREENER_TEST_VALUE") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "ok", os.Getenv("SCREENER_TEST_VALUE"))
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}
