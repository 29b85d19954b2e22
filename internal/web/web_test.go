package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gtcal/internal/calendar"
	"gtcal/internal/config"
	"gtcal/internal/source"
	"gtcal/internal/term"
)

type stubRenderer struct {
	codes []string
	err   error
}

func (s *stubRenderer) Render(_ context.Context, code string) (calendar.Document, error) {
	s.codes = append(s.codes, code)
	if s.err != nil {
		return calendar.Document{}, s.err
	}
	t, err := term.Decode(code)
	if err != nil {
		return calendar.Document{}, err
	}
	return calendar.Document{Term: t, Name: t.CalendarName(), Body: []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")}, nil
}

func newTestServer(r Renderer, reg prometheus.Gatherer) *Server {
	cfg := config.DefaultConfig()
	s := NewServer(cfg, r, reg)
	s.now = func() time.Time { return time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestCalendarRoute(t *testing.T) {
	r := &stubRenderer{}
	h := newTestServer(r, nil).Handler()

	for _, path := range []string{"/202408", "/202408.ics"} {
		rec := get(t, h, path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="GT Fall 2024 Calendar.ics"`, rec.Header().Get("Content-Disposition"))
		assert.True(t, strings.HasPrefix(rec.Body.String(), "BEGIN:VCALENDAR"))
	}
	assert.Equal(t, []string{"202408", "202408"}, r.codes)
}

func TestCalendarErrors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "invalid term",
			path:       "/abc",
			wantStatus: http.StatusBadRequest,
			wantBody:   `Error fetching or parsing the file: invalid term "abc": must be 6 characters (YYYYMM)`,
		},
		{
			name:       "not found",
			path:       "/199902",
			err:        source.ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantBody:   "Calendar data not found.",
		},
		{
			name:       "upstream failure",
			path:       "/202508",
			err:        &source.UpstreamError{Source: "modern", StatusCode: 503, Err: errors.New("503 Service Unavailable")},
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Error fetching or parsing the file: failed to fetch modern data: status 503",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(&stubRenderer{err: tt.err}, nil).Handler()
			rec := get(t, h, tt.path)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestLandingPage(t *testing.T) {
	r := &stubRenderer{}
	rec := get(t, newTestServer(r, nil).Handler(), "/")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, `<a href="/202402">Spring 2024</a>`)
	assert.Contains(t, body, `<a href="/202705">Summer 2027</a>`)
	assert.Contains(t, body, `<a href="/202508">Fall 2025</a>`)
	assert.NotContains(t, body, "/202302")
	assert.NotContains(t, body, "/202802")
	assert.Equal(t, 12, strings.Count(body, "<li>"))
	assert.Empty(t, r.codes)
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestServer(&stubRenderer{}, nil).Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "gtcal_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	rec := get(t, newTestServer(&stubRenderer{}, reg).Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gtcal_test_total 1")
}

func TestNonGetRejected(t *testing.T) {
	h := newTestServer(&stubRenderer{}, nil).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/202408", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestErrorResponseUnwraps(t *testing.T) {
	status, msg := errorResponse(errors.Join(errors.New("ctx"), source.ErrNotFound))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, notFoundMessage, msg)

	status, _ = errorResponse(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
}
