package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
listen: 0.0.0.0:9000
modern_from_year: 2030
refresh: ""
cache:
  driver: bogus
legacy:
  base_url: https://example.test/txt/
  ttl: 2h
  write_mode: BLOCKING
modern:
  ttl: 48h
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, 2030, cfg.ModernFromYear)
	assert.Empty(t, cfg.RefreshCron)
	assert.Equal(t, DriverNone, cfg.Cache.Driver)
	assert.Equal(t, "https://example.test/txt", cfg.Legacy.BaseURL)
	assert.Equal(t, 2*time.Hour, cfg.Legacy.TTL)
	assert.Equal(t, WriteBlocking, cfg.Legacy.WriteMode)
	assert.Equal(t, 48*time.Hour, cfg.Modern.TTL)
	assert.Equal(t, WriteBackground, cfg.Modern.WriteMode)
	assert.Equal(t, defaultUserAgent, cfg.Modern.UserAgent)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Cache.Driver = DriverSQLite
	cfg.Modern.TTL = 72 * time.Hour
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestApplyEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GTCAL_LISTEN", ":7000")
	t.Setenv("GTCAL_CACHE_DRIVER", "MEMORY")
	t.Setenv("GTCAL_MODERN_FROM_YEAR", "2027")
	t.Setenv("GTCAL_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	assert.Equal(t, ":7000", cfg.Listen)
	assert.Equal(t, DriverMemory, cfg.Cache.Driver)
	assert.Equal(t, 2027, cfg.ModernFromYear)
	assert.Equal(t, "debug", cfg.LogLevel)
}
