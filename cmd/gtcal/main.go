package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"gtcal/internal/cache"
	"gtcal/internal/calendar"
	"gtcal/internal/config"
	appLog "gtcal/internal/log"
	"gtcal/internal/metrics"
	"gtcal/internal/source"
	"gtcal/internal/term"
)

const version = "0.1.0"

var configPath string

var root = &cobra.Command{
	Use:           "gtcal",
	Short:         "Serve the Georgia Tech academic calendar as iCalendar feeds",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	root.PersistentFlags().StringVar(&configPath, "config", "/etc/gtcal/config.yaml", "Path to config file")
	root.AddCommand(serveCmd, renderCmd, warmCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		appLog.Error("gtcal failed", err)
		os.Exit(1)
	}
}

// app is the wired pipeline shared by every subcommand.
type app struct {
	cfg      *config.Config
	store    cache.Store
	cache    *source.Cache
	registry *prometheus.Registry
	service  *calendar.Service
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", configPath)
		return nil, err
	}
	cfg.ApplyEnv()
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	appLog.Info("effective config",
		"listen", cfg.Listen,
		"log_level", cfg.LogLevel,
		"modern_from_year", cfg.ModernFromYear,
		"refresh", cfg.RefreshCron,
		"cache_driver", cfg.Cache.Driver,
		"legacy_ttl", cfg.Legacy.TTL,
		"modern_ttl", cfg.Modern.TTL,
	)
	return cfg, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	store, err := cache.Open(ctx, cacheOptions(cfg.Cache))
	if err != nil {
		appLog.Error("failed to open cache store; continuing without cache", err, "driver", cfg.Cache.Driver)
		store = nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	c := &source.Cache{Store: store, WriteTimeout: cfg.Cache.WriteTimeout}
	deps := source.Deps{
		Client:  &http.Client{Timeout: cfg.HTTPTimeout},
		Cache:   c,
		Metrics: m,
	}

	legacy := source.NewLegacy(cfg.Legacy.BaseURL, cache.Policy{
		TTL:   cfg.Legacy.TTL,
		Write: writeMode(cfg.Legacy.WriteMode),
	}, deps)
	modern := source.NewModern(source.ModernOptions{
		URL:       cfg.Modern.URL,
		UserAgent: cfg.Modern.UserAgent,
		Accept:    cfg.Modern.Accept,
		Referer:   cfg.Modern.Referer,
		Policy: cache.Policy{
			TTL:   cfg.Modern.TTL,
			Write: writeMode(cfg.Modern.WriteMode),
		},
	}, deps)

	svc := calendar.NewService(term.Selector{ModernFromYear: cfg.ModernFromYear}, legacy, modern, m)

	return &app{cfg: cfg, store: store, cache: c, registry: reg, service: svc}, nil
}

// cacheOptions translates the cache section of the config file.
func cacheOptions(c config.CacheConfig) cache.Options {
	opts := cache.Options{URL: c.URL, Path: c.Path}
	switch c.Driver {
	case config.DriverMemory:
		opts.Driver = cache.DriverMemory
	case config.DriverBlob:
		opts.Driver = cache.DriverBlob
	case config.DriverSQLite:
		opts.Driver = cache.DriverSQLite
	default:
		opts.Driver = cache.DriverNone
	}
	return opts
}

// writeMode translates a config write mode.
func writeMode(m string) cache.WriteMode {
	if m == config.WriteBlocking {
		return cache.WriteBlocking
	}
	return cache.WriteBackground
}

// close drains background cache writes, then releases the store.
func (a *app) close() {
	a.cache.Wait()
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		appLog.Error("failed to close cache store", err)
	}
}
