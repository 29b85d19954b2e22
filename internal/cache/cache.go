// Package cache holds upstream payloads between requests.
//
// A Store is a plain key-value capability: get, put, close. No listing,
// no conditional writes. Freshness is tracked by a JSON metadata sidecar
// stored next to each payload (see Read and Write), so every backend only
// has to move bytes.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Store is the key-value capability consumed by the source fetchers.
type Store interface {
	// Get returns the stored value and true, or false if key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// WriteMode controls whether a fetch waits for its cache write.
type WriteMode int

const (
	WriteBackground WriteMode = iota
	WriteBlocking
)

func (m WriteMode) String() string {
	if m == WriteBlocking {
		return "blocking"
	}
	return "background"
}

// Policy is the per-source cache configuration.
type Policy struct {
	TTL   time.Duration
	Write WriteMode
}

// Entry is a payload with the time it was stored.
type Entry struct {
	Data     []byte
	CachedAt time.Time
}

// Fresh reports whether the entry is younger than ttl at now.
func (e Entry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CachedAt) < ttl
}

// meta is the sidecar document stored at MetaKey(key).
type meta struct {
	Key      string    `json:"key"`
	CachedAt time.Time `json:"cached_at"`
	Size     int       `json:"size"`
}

// MetaKey is the sidecar key for a payload key.
func MetaKey(key string) string {
	return key + ".meta.json"
}

// Read loads the payload stored under key together with its metadata.
// A payload without readable metadata counts as a miss.
func Read(ctx context.Context, s Store, key string) (Entry, bool, error) {
	raw, ok, err := s.Get(ctx, MetaKey(key))
	if err != nil || !ok {
		return Entry{}, false, err
	}
	var m meta
	if err := json.Unmarshal(raw, &m); err != nil {
		return Entry{}, false, fmt.Errorf("decode cache metadata %s: %w", key, err)
	}

	data, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	return Entry{Data: data, CachedAt: m.CachedAt}, true, nil
}

// Write stores data under key and stamps the sidecar with cachedAt.
func Write(ctx context.Context, s Store, key string, data []byte, cachedAt time.Time) error {
	if s == nil {
		return errors.New("cache store is nil")
	}

	// Write body first so meta never points at missing body.
	if err := s.Put(ctx, key, data); err != nil {
		return fmt.Errorf("write cache body %s: %w", key, err)
	}

	m := meta{Key: key, CachedAt: cachedAt.UTC(), Size: len(data)}
	raw, err := json.Marshal(&m)
	if err != nil {
		return err
	}
	if err := s.Put(ctx, MetaKey(key), raw); err != nil {
		return fmt.Errorf("write cache metadata %s: %w", key, err)
	}
	return nil
}

// Driver names a Store backend.
type Driver string

const (
	DriverNone   Driver = "none"
	DriverMemory Driver = "memory"
	DriverBlob   Driver = "blob"
	DriverSQLite Driver = "sqlite"
)

// Options selects and locates a backend.
type Options struct {
	Driver Driver
	// URL is the gocloud.dev bucket URL for DriverBlob.
	URL string
	// Path is the database file for DriverSQLite.
	Path string
}

// Open builds the Store selected by opts.Driver. DriverNone returns a nil
// Store, which the fetchers treat as "always fetch".
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverNone:
		return nil, nil
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverBlob:
		s, err := OpenBlobStore(ctx, opts.URL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverSQLite:
		s, err := OpenSQLiteStore(ctx, opts.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", opts.Driver)
	}
}
