package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"gtcal/internal/cache"
	appLog "gtcal/internal/log"
	"gtcal/internal/model"
	"gtcal/internal/normalize"
	"gtcal/internal/term"
)

// ModernOptions configures the JSON feed request. The feed only answers
// with JSON when the request looks like the registrar site's own XHR.
type ModernOptions struct {
	URL       string
	UserAgent string
	Accept    string
	Referer   string
	Policy    cache.Policy
}

// Modern reads the registrar's JSON feed. One response covers a whole
// academic year, so it is cached per academic year and filtered per term.
type Modern struct {
	opts   ModernOptions
	loader cachedLoader
}

func NewModern(opts ModernOptions, deps Deps) *Modern {
	return &Modern{
		opts:   opts,
		loader: cachedLoader{name: "modern", policy: opts.Policy, deps: deps},
	}
}

func (m *Modern) Name() string { return "modern" }

// ModernCacheKey is the store key of an academic year's feed data.
func ModernCacheKey(t term.Term) string {
	return "calendar-data/json-" + t.AcademicYear()
}

var errMissingFeedData = errors.New("decode modern feed: response has no data array")

type feedResponse struct {
	Data json.RawMessage `json:"data"`
}

// Fetch returns the events of t from its academic year's feed.
func (m *Modern) Fetch(ctx context.Context, t term.Term) ([]model.Event, error) {
	records, err := m.Records(ctx, t)
	if err != nil {
		return nil, err
	}
	events := normalize.Modern(records, t)
	appLog.Debug("modern records normalized", "term", t.Code, "academic_year", t.AcademicYear(), "records", len(records), "events", len(events))
	return events, nil
}

// Records returns every feed entry of t's academic year, unfiltered.
func (m *Modern) Records(ctx context.Context, t term.Term) ([]model.ModernRecord, error) {
	data, err := m.loader.load(ctx, ModernCacheKey(t), func(ctx context.Context) ([]byte, error) {
		return m.download(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return decodeModernRecords(data)
}

// download fetches the feed and returns its data array. A response without
// a decodable data array is an *UpstreamError and is never cached.
func (m *Modern) download(ctx context.Context, t term.Term) ([]byte, error) {
	u, err := url.Parse(m.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse modern feed url: %w", err)
	}
	q := u.Query()
	q.Set("year", t.AcademicYear())
	q.Set("status", "current")
	q.Set("_", strconv.FormatInt(m.loader.deps.Cache.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("User-Agent", m.opts.UserAgent)
	header.Set("Accept", m.opts.Accept)
	header.Set("X-Requested-With", "XMLHttpRequest")
	header.Set("Referer", m.opts.Referer)

	body, err := m.loader.deps.get(ctx, m.Name(), u.String(), header)
	if err != nil {
		return nil, err
	}

	var resp feedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &UpstreamError{Source: m.Name(), Err: fmt.Errorf("decode modern feed: %w", err)}
	}
	// Nothing but an array may reach the cache.
	data := bytes.TrimSpace(resp.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, &UpstreamError{Source: m.Name(), Err: errMissingFeedData}
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &UpstreamError{Source: m.Name(), Err: fmt.Errorf("decode modern feed data: %w", err)}
	}
	return data, nil
}

// decodeModernRecords decodes entries one at a time so a single malformed
// entry is dropped instead of failing the calendar.
func decodeModernRecords(data []byte) ([]model.ModernRecord, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode modern feed data: %w", err)
	}

	records := make([]model.ModernRecord, 0, len(raw))
	for i, r := range raw {
		var rec model.ModernRecord
		if err := json.Unmarshal(r, &rec); err != nil {
			appLog.Debug("skipping malformed feed entry", "index", i, "err", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
