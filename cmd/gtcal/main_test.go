package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gtcal/internal/cache"
	"gtcal/internal/config"
)

func TestCacheOptions(t *testing.T) {
	tests := []struct {
		driver string
		want   cache.Driver
	}{
		{config.DriverNone, cache.DriverNone},
		{config.DriverMemory, cache.DriverMemory},
		{config.DriverBlob, cache.DriverBlob},
		{config.DriverSQLite, cache.DriverSQLite},
		{"redis", cache.DriverNone},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			opts := cacheOptions(config.CacheConfig{Driver: tt.driver, URL: "mem://", Path: "/tmp/c.db"})
			assert.Equal(t, tt.want, opts.Driver)
			assert.Equal(t, "mem://", opts.URL)
			assert.Equal(t, "/tmp/c.db", opts.Path)
		})
	}
}

func TestWriteMode(t *testing.T) {
	assert.Equal(t, cache.WriteBlocking, writeMode(config.WriteBlocking))
	assert.Equal(t, cache.WriteBackground, writeMode(config.WriteBackground))
	assert.Equal(t, cache.WriteBackground, writeMode(""))
}
