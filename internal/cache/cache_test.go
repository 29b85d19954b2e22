package cache

import (
	"context"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"
)

// storeFactories builds one fresh instance of every backend.
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"memblob": func() Store {
			return NewBlobStore(memblob.OpenBucket(nil))
		},
		"fileblob": func() Store {
			u := url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(t.TempDir(), "cache"))}
			s, err := OpenBlobStore(context.Background(), u.String())
			require.NoError(t, err)
			return s
		},
		"sqlite": func() Store {
			s, err := OpenSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
			require.NoError(t, err)
			return s
		},
	}
}

func TestStoresGetPut(t *testing.T) {
	ctx := context.Background()
	for name, open := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()

			_, ok, err := s.Get(ctx, "calendar-data/202308.txt")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Put(ctx, "calendar-data/202308.txt", []byte("v1")))
			require.NoError(t, s.Put(ctx, "calendar-data/202308.txt", []byte("v2")))

			got, ok, err := s.Get(ctx, "calendar-data/202308.txt")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "v2", string(got))
		})
	}
}

func TestReadWriteSidecar(t *testing.T) {
	ctx := context.Background()
	cachedAt := time.Date(2025, time.August, 1, 9, 0, 0, 0, time.UTC)

	for name, open := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()

			_, ok, err := Read(ctx, s, "calendar-data/json-2025-2026")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, Write(ctx, s, "calendar-data/json-2025-2026", []byte(`[]`), cachedAt))

			entry, ok, err := Read(ctx, s, "calendar-data/json-2025-2026")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "[]", string(entry.Data))
			assert.True(t, cachedAt.Equal(entry.CachedAt))

			_, ok, err = s.Get(ctx, MetaKey("calendar-data/json-2025-2026"))
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestReadWithoutMetadataIsMiss(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "calendar-data/202308.txt", []byte("orphan")))

	_, ok, err := Read(ctx, s, "calendar-data/202308.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadCorruptMetadata(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, MetaKey("k"), []byte("{not json")))

	_, ok, err := Read(ctx, s, "k")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestEntryFresh(t *testing.T) {
	now := time.Date(2025, time.August, 2, 0, 0, 0, 0, time.UTC)
	e := Entry{CachedAt: now.Add(-23 * time.Hour)}
	assert.True(t, e.Fresh(now, 24*time.Hour))
	assert.False(t, e.Fresh(now.Add(time.Hour), 24*time.Hour))
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	in := []byte("abc")
	require.NoError(t, s.Put(ctx, "k", in))
	in[0] = 'z'

	got, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Driver: DriverNone})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(ctx, Options{Driver: DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, Options{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "c.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Options{Driver: "redis"})
	assert.Error(t, err)
}

func TestWriteModeString(t *testing.T) {
	assert.Equal(t, "background", WriteBackground.String())
	assert.Equal(t, "blocking", WriteBlocking.String())
}
