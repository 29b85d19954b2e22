package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gtcal/internal/calendar"
	"gtcal/internal/config"
	appLog "gtcal/internal/log"
	"gtcal/internal/source"
	"gtcal/internal/term"
)

const (
	notFoundMessage = "Calendar data not found."
	failurePrefix   = "Error fetching or parsing the file: "
)

// Renderer produces the calendar for a term code.
type Renderer interface {
	Render(ctx context.Context, code string) (calendar.Document, error)
}

// Server serves the landing page, per-term calendars, health and metrics.
type Server struct {
	cfg      *config.Config
	renderer Renderer
	gatherer prometheus.Gatherer
	mux      *http.ServeMux

	// now picks the landing page window; time.Now if nil.
	now func() time.Time
}

//go:embed templates/index.html
var templatesFS embed.FS

var landingTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

// NewServer constructs a new Server. gatherer may be nil, in which case
// /metrics is not registered.
func NewServer(cfg *config.Config, renderer Renderer, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		cfg:      cfg,
		renderer: renderer,
		gatherer: gatherer,
		mux:      http.NewServeMux(),
		now:      time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on cfg.Listen until ctx is canceled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if s.gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	s.mux.HandleFunc("GET /{$}", s.handleLanding)
	s.mux.HandleFunc("GET /{term}", s.handleCalendar)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type landingData struct {
	Terms []term.Term
}

func (s *Server) handleLanding(w http.ResponseWriter, _ *http.Request) {
	data := landingData{
		Terms: term.LandingTerms(s.now(), s.cfg.Landing.YearsBack, s.cfg.Landing.YearsAhead),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := landingTemplate.Execute(w, data); err != nil {
		appLog.Error("failed to render landing page", err)
	}
}

// handleCalendar serves GET /{term} and GET /{term}.ics.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSuffix(r.PathValue("term"), ".ics")

	doc, err := s.renderer.Render(r.Context(), code)
	if err != nil {
		status, msg := errorResponse(err)
		if status == http.StatusInternalServerError {
			appLog.Error("calendar request failed", err, "term", code)
		} else {
			appLog.Info("calendar request rejected", "term", code, "status", status, "err", err)
		}
		writeText(w, status, msg)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename()}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Body)
}

// errorResponse maps a pipeline error to a status and body. Only the
// message is exposed.
func errorResponse(err error) (int, string) {
	var invalid *term.InvalidTermError
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest, failurePrefix + err.Error()
	case errors.Is(err, source.ErrNotFound):
		return http.StatusNotFound, notFoundMessage
	default:
		return http.StatusInternalServerError, failurePrefix + err.Error()
	}
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
