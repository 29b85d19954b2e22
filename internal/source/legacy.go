package source

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"gtcal/internal/cache"
	appLog "gtcal/internal/log"
	"gtcal/internal/model"
	"gtcal/internal/normalize"
	"gtcal/internal/term"
)

// Legacy reads the per-term tab-separated files published for years
// before the JSON feed existed.
type Legacy struct {
	baseURL string
	loader  cachedLoader
}

// NewLegacy builds the fetcher. baseURL is the directory containing the
// {term}.txt files.
func NewLegacy(baseURL string, policy cache.Policy, deps Deps) *Legacy {
	return &Legacy{
		baseURL: strings.TrimRight(baseURL, "/"),
		loader:  cachedLoader{name: "legacy", policy: policy, deps: deps},
	}
}

func (l *Legacy) Name() string { return "legacy" }

// LegacyCacheKey is the store key of a term file.
func LegacyCacheKey(t term.Term) string {
	return "calendar-data/" + t.Code + ".txt"
}

// Fetch returns the term's events. A missing upstream file is ErrNotFound.
func (l *Legacy) Fetch(ctx context.Context, t term.Term) ([]model.Event, error) {
	records, err := l.Records(ctx, t)
	if err != nil {
		return nil, err
	}
	events := normalize.Legacy(records)
	appLog.Debug("legacy records normalized", "term", t.Code, "records", len(records), "events", len(events))
	return events, nil
}

// Records returns the raw rows of the term file.
func (l *Legacy) Records(ctx context.Context, t term.Term) ([]model.LegacyRecord, error) {
	body, err := l.loader.load(ctx, LegacyCacheKey(t), func(ctx context.Context) ([]byte, error) {
		return l.download(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return ParseLegacy(body), nil
}

func (l *Legacy) download(ctx context.Context, t term.Term) ([]byte, error) {
	u, err := url.JoinPath(l.baseURL, t.Code+".txt")
	if err != nil {
		return nil, err
	}
	body, err := l.loader.deps.get(ctx, l.Name(), u, http.Header{})
	if err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) && ue.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return body, nil
}

// ParseLegacy splits a term file into records. Rows are CRLF-separated and
// tab-delimited; the first row names the columns. Rows with fewer fields
// than the header are skipped, extra fields are ignored.
func ParseLegacy(body []byte) []model.LegacyRecord {
	rows := strings.Split(string(body), "\r\n")
	headerRow := strings.TrimPrefix(rows[0], "\ufeff")
	headers := strings.Split(headerRow, "\t")
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	records := make([]model.LegacyRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		values := strings.Split(row, "\t")
		if len(values) < len(headers) {
			continue
		}
		rec := make(model.LegacyRecord, len(headers))
		for i, h := range headers {
			rec[h] = values[i]
		}
		records = append(records, rec)
	}
	return records
}
