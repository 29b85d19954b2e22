// Package source retrieves registrar calendar data from the legacy term
// files and the JSON feed, reading through a key-value cache.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"gtcal/internal/cache"
	appLog "gtcal/internal/log"
	"gtcal/internal/metrics"
	"gtcal/internal/model"
	"gtcal/internal/term"
)

// Fetcher produces the normalized events of one term from one upstream.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, t term.Term) ([]model.Event, error)
}

// Cache bundles the store shared by both fetchers with the bookkeeping for
// background writes. A nil *Cache, or one with a nil Store, disables
// caching: every request goes upstream.
type Cache struct {
	Store cache.Store
	// WriteTimeout bounds a background write once the request is gone.
	WriteTimeout time.Duration
	// Now is the clock used for freshness checks; time.Now if nil.
	Now func() time.Time

	pending sync.WaitGroup
	// unsaved holds payloads whose background write hasn't landed yet,
	// keyed by cache key, as *unsavedEntry.
	unsaved sync.Map
}

type unsavedEntry struct {
	data []byte
}

// Wait blocks until all background cache writes have finished.
func (c *Cache) Wait() {
	if c == nil {
		return
	}
	c.pending.Wait()
}

func (c *Cache) enabled() bool {
	return c != nil && c.Store != nil
}

func (c *Cache) now() time.Time {
	if c != nil && c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Deps are the collaborators shared by both fetchers.
type Deps struct {
	Client  *http.Client
	Cache   *Cache
	Metrics *metrics.Metrics
}

func (d Deps) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return http.DefaultClient
}

// cachedLoader is the cache-or-fetch loop both fetchers run. Only the key,
// the policy and the fetch function differ between them.
type cachedLoader struct {
	name   string
	policy cache.Policy
	deps   Deps

	// flight collapses concurrent loads of one key into a single
	// cache read and upstream fetch.
	flight singleflight.Group
}

// load returns a fresh cached payload for key, or calls fetch and stores
// its result according to the write policy. Cache failures never fail the
// load. Concurrent callers for the same key share one load and its result,
// including the first caller's context.
func (l *cachedLoader) load(ctx context.Context, key string, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	v, err, shared := l.flight.Do(key, func() (any, error) {
		return l.loadOnce(ctx, key, fetch)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		appLog.Debug("shared in-flight load", "source", l.name, "key", key)
	}
	return v.([]byte), nil
}

func (l *cachedLoader) loadOnce(ctx context.Context, key string, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	c := l.deps.Cache
	m := l.deps.Metrics

	if !c.enabled() {
		m.CacheLookup(l.name, metrics.LookupDisabled)
		return fetch(ctx)
	}

	if u, ok := c.unsaved.Load(key); ok {
		m.CacheLookup(l.name, metrics.LookupHit)
		appLog.Debug("returning data awaiting cache write", "source", l.name, "key", key)
		return u.(*unsavedEntry).data, nil
	}

	entry, ok, err := cache.Read(ctx, c.Store, key)
	switch {
	case err != nil:
		m.CacheLookup(l.name, metrics.LookupError)
		appLog.Error("cache read failed; fetching upstream", err, "source", l.name, "key", key)
	case !ok:
		m.CacheLookup(l.name, metrics.LookupMiss)
		appLog.Debug("cache miss", "source", l.name, "key", key)
	case entry.Fresh(c.now(), l.policy.TTL):
		m.CacheLookup(l.name, metrics.LookupHit)
		appLog.Info("returning data from cache", "source", l.name, "key", key, "cached_at", entry.CachedAt.Format(time.RFC3339))
		return entry.Data, nil
	default:
		m.CacheLookup(l.name, metrics.LookupStale)
		appLog.Debug("cache stale", "source", l.name, "key", key, "cached_at", entry.CachedAt.Format(time.RFC3339))
	}

	data, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	l.store(ctx, key, data)
	return data, nil
}

func (l *cachedLoader) store(ctx context.Context, key string, data []byte) {
	c := l.deps.Cache
	cachedAt := c.now()

	write := func(ctx context.Context) {
		err := cache.Write(ctx, c.Store, key, data, cachedAt)
		l.deps.Metrics.CacheWrite(l.name, err)
		if err != nil {
			// Log but still return the freshly fetched body.
			appLog.Error("cache save failed", err, "source", l.name, "key", key)
			return
		}
		appLog.Debug("cache saved", "source", l.name, "key", key, "bytes", len(data))
	}

	if l.policy.Write == cache.WriteBlocking {
		write(ctx)
		return
	}

	u := &unsavedEntry{data: data}
	c.unsaved.Store(key, u)
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		defer c.unsaved.CompareAndDelete(key, u)
		// The request may finish (and cancel ctx) before the write does.
		wctx := context.WithoutCancel(ctx)
		if c.WriteTimeout > 0 {
			var cancel context.CancelFunc
			wctx, cancel = context.WithTimeout(wctx, c.WriteTimeout)
			defer cancel()
		}
		write(wctx)
	}()
}

// get performs a single GET and returns the body of a 2xx response. Any
// other outcome is an *UpstreamError.
func (d Deps) get(ctx context.Context, name, rawURL string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", name, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	appLog.Info("upstream fetch start", "source", name, "url", displayURL(rawURL))

	resp, err := d.client().Do(req)
	if err != nil {
		d.Metrics.UpstreamRequest(name, "transport_error")
		return nil, &UpstreamError{Source: name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.Metrics.UpstreamRequest(name, fmt.Sprintf("status_%d", resp.StatusCode))
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &UpstreamError{Source: name, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		d.Metrics.UpstreamRequest(name, "read_error")
		return nil, &UpstreamError{Source: name, Err: err}
	}

	d.Metrics.UpstreamRequest(name, "ok")
	appLog.Info("upstream fetch success", "source", name, "url", displayURL(rawURL), "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}

// displayURL drops the query string (cache busters, tokens) for logging.
func displayURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "(unparseable url)"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
