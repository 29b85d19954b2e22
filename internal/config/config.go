package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions. Environment variables (optionally from a .env file) are
// applied on top of the file values.

// Cache write modes.
const (
	WriteBackground = "background"
	WriteBlocking   = "blocking"
)

// Cache drivers.
const (
	DriverNone   = "none"
	DriverMemory = "memory"
	DriverBlob   = "blob"
	DriverSQLite = "sqlite"
)

const (
	defaultListen         = "127.0.0.1:8080"
	defaultLegacyBaseURL  = "https://ro-blob.azureedge.net/ro-calendar-data/public/txt"
	defaultModernURL      = "https://registrar.gatech.edu/calevents/proxy"
	defaultUserAgent      = "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0"
	defaultAccept         = "application/json, text/javascript, */*; q=0.01"
	defaultReferer        = "https://registrar.gatech.edu/current-academic-calendar"
	defaultModernFromYear = 2025
	defaultRefreshCron    = "0 4 * * *"
	defaultBlobURL        = "file:///var/lib/gtcal/cache"
	defaultSQLitePath     = "/var/lib/gtcal/cache.db"
)

// LegacyConfig describes the per-term tab-separated upstream.
type LegacyConfig struct {
	// BaseURL is the directory holding {term}.txt files.
	BaseURL string `yaml:"base_url" json:"base_url"`
	// TTL is how long a cached term file is served without refetching.
	TTL time.Duration `yaml:"ttl" json:"ttl"`
	// WriteMode is "background" or "blocking".
	WriteMode string `yaml:"write_mode" json:"write_mode"`
}

// ModernConfig describes the per-academic-year JSON upstream.
type ModernConfig struct {
	URL       string        `yaml:"url" json:"url"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
	Accept    string        `yaml:"accept" json:"accept"`
	Referer   string        `yaml:"referer" json:"referer"`
	TTL       time.Duration `yaml:"ttl" json:"ttl"`
	WriteMode string        `yaml:"write_mode" json:"write_mode"`
}

// CacheConfig selects the key-value store backing the upstream cache.
type CacheConfig struct {
	// Driver is one of "none", "memory", "blob", "sqlite".
	Driver string `yaml:"driver" json:"driver"`
	// URL is a gocloud.dev bucket URL for the blob driver
	// (file:///path, mem://, s3://bucket?region=...).
	URL string `yaml:"url" json:"url"`
	// Path is the database file for the sqlite driver.
	Path string `yaml:"path" json:"path"`
	// WriteTimeout bounds background cache writes.
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// LandingConfig controls the year window listed on the landing page.
type LandingConfig struct {
	YearsBack  int `yaml:"years_back" json:"years_back"`
	YearsAhead int `yaml:"years_ahead" json:"years_ahead"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is one of "debug", "info", "error".
	LogLevel string `yaml:"log_level" json:"log_level"`

	// HTTPTimeout bounds each upstream request.
	HTTPTimeout time.Duration `yaml:"http_timeout" json:"http_timeout"`

	// ModernFromYear is the first term year served from the JSON feed.
	// Earlier years use the legacy text files.
	ModernFromYear int `yaml:"modern_from_year" json:"modern_from_year"`

	// RefreshCron is a cron-style schedule string (e.g. "0 4 * * *")
	// used to warm the cache. Empty disables warming.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Landing LandingConfig `yaml:"landing" json:"landing"`
	Cache   CacheConfig   `yaml:"cache" json:"cache"`
	Legacy  LegacyConfig  `yaml:"legacy" json:"legacy"`
	Modern  ModernConfig  `yaml:"modern" json:"modern"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         defaultListen,
		LogLevel:       "info",
		HTTPTimeout:    30 * time.Second,
		ModernFromYear: defaultModernFromYear,
		RefreshCron:    defaultRefreshCron,
		Landing: LandingConfig{
			YearsBack:  1,
			YearsAhead: 2,
		},
		Cache: CacheConfig{
			Driver:       DriverBlob,
			URL:          defaultBlobURL,
			Path:         defaultSQLitePath,
			WriteTimeout: 10 * time.Second,
		},
		Legacy: LegacyConfig{
			BaseURL:   defaultLegacyBaseURL,
			TTL:       24 * time.Hour,
			WriteMode: WriteBackground,
		},
		Modern: ModernConfig{
			URL:       defaultModernURL,
			UserAgent: defaultUserAgent,
			Accept:    defaultAccept,
			Referer:   defaultReferer,
			TTL:       7 * 24 * time.Hour,
			WriteMode: WriteBackground,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = def.HTTPTimeout
	}
	if c.ModernFromYear <= 0 {
		c.ModernFromYear = def.ModernFromYear
	}
	// RefreshCron stays empty if the user cleared it: that disables warming.

	if c.Landing.YearsBack < 0 {
		c.Landing.YearsBack = 0
	}
	if c.Landing.YearsAhead < 0 {
		c.Landing.YearsAhead = 0
	}

	switch c.Cache.Driver {
	case DriverNone, DriverMemory, DriverBlob, DriverSQLite:
		// ok
	case "":
		c.Cache.Driver = def.Cache.Driver
	default:
		// Unknown driver; run without a cache rather than fail to start.
		c.Cache.Driver = DriverNone
	}
	if c.Cache.URL == "" {
		c.Cache.URL = def.Cache.URL
	}
	if c.Cache.Path == "" {
		c.Cache.Path = def.Cache.Path
	}
	if c.Cache.WriteTimeout <= 0 {
		c.Cache.WriteTimeout = def.Cache.WriteTimeout
	}

	if c.Legacy.BaseURL == "" {
		c.Legacy.BaseURL = def.Legacy.BaseURL
	}
	c.Legacy.BaseURL = strings.TrimRight(c.Legacy.BaseURL, "/")
	if c.Legacy.TTL <= 0 {
		c.Legacy.TTL = def.Legacy.TTL
	}
	c.Legacy.WriteMode = normalizeWriteMode(c.Legacy.WriteMode)

	if c.Modern.URL == "" {
		c.Modern.URL = def.Modern.URL
	}
	if c.Modern.UserAgent == "" {
		c.Modern.UserAgent = def.Modern.UserAgent
	}
	if c.Modern.Accept == "" {
		c.Modern.Accept = def.Modern.Accept
	}
	if c.Modern.Referer == "" {
		c.Modern.Referer = def.Modern.Referer
	}
	if c.Modern.TTL <= 0 {
		c.Modern.TTL = def.Modern.TTL
	}
	c.Modern.WriteMode = normalizeWriteMode(c.Modern.WriteMode)
}

func normalizeWriteMode(m string) string {
	if strings.EqualFold(m, WriteBlocking) {
		return WriteBlocking
	}
	return WriteBackground
}

// ApplyEnv overrides file values from the environment. A .env file in the
// working directory is loaded first if present; variables already set in
// the process environment win over it.
//
// Recognized variables:
//   - GTCAL_LISTEN
//   - GTCAL_LOG_LEVEL
//   - GTCAL_CACHE_DRIVER
//   - GTCAL_CACHE_URL
//   - GTCAL_CACHE_PATH
//   - GTCAL_MODERN_FROM_YEAR
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()

	if v := os.Getenv("GTCAL_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("GTCAL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("GTCAL_CACHE_DRIVER"); v != "" {
		c.Cache.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("GTCAL_CACHE_URL"); v != "" {
		c.Cache.URL = v
	}
	if v := os.Getenv("GTCAL_CACHE_PATH"); v != "" {
		c.Cache.Path = v
	}
	if v := os.Getenv("GTCAL_MODERN_FROM_YEAR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.ModernFromYear = n
		}
	}
	c.Normalize()
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".gtcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
