// Package calendar runs the term-to-iCalendar pipeline: decode the term,
// pick the upstream, fetch normalized events and serialize them.
package calendar

import (
	"bytes"
	"context"
	"time"

	"gtcal/internal/ics"
	appLog "gtcal/internal/log"
	"gtcal/internal/metrics"
	"gtcal/internal/source"
	"gtcal/internal/term"
)

// Document is a rendered calendar.
type Document struct {
	Term   term.Term
	Name   string
	Source string
	Events int
	Body   []byte
}

// Filename is the attachment name offered to clients.
func (d Document) Filename() string {
	return d.Name + ".ics"
}

// Service renders calendars. It holds no per-request state and is safe for
// concurrent use.
type Service struct {
	selector term.Selector
	legacy   source.Fetcher
	modern   source.Fetcher
	metrics  *metrics.Metrics

	// Now stamps DTSTAMP; time.Now if nil.
	Now func() time.Time
}

func NewService(selector term.Selector, legacy, modern source.Fetcher, m *metrics.Metrics) *Service {
	return &Service{
		selector: selector,
		legacy:   legacy,
		modern:   modern,
		metrics:  m,
	}
}

// Render produces the iCalendar document for a term code. Errors are
// returned unchanged: *term.InvalidTermError for a bad code, otherwise
// whatever the fetcher reported.
func (s *Service) Render(ctx context.Context, code string) (Document, error) {
	started := time.Now()

	t, err := term.Decode(code)
	if err != nil {
		return Document{}, err
	}

	f := s.fetcherFor(t)
	appLog.Debug("rendering calendar", "term", t.Code, "season", t.Season, "source", f.Name())

	events, err := f.Fetch(ctx, t)
	if err != nil {
		return Document{}, err
	}

	var buf bytes.Buffer
	err = ics.Write(&buf, ics.Calendar{
		Name:    t.CalendarName(),
		UIDSeed: t.Code,
		Events:  events,
		Stamp:   s.now(),
	})
	if err != nil {
		return Document{}, err
	}

	took := time.Since(started)
	s.metrics.Rendered(f.Name(), len(events), took)
	appLog.Info("calendar rendered", "term", t.Code, "source", f.Name(), "events", len(events), "bytes", buf.Len(), "took", took)

	return Document{
		Term:   t,
		Name:   t.CalendarName(),
		Source: f.Name(),
		Events: len(events),
		Body:   buf.Bytes(),
	}, nil
}

func (s *Service) fetcherFor(t term.Term) source.Fetcher {
	if s.selector.Select(t.Year) == term.Modern {
		return s.modern
	}
	return s.legacy
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
