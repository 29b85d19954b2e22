// Package refresh keeps the upstream cache warm by rendering the landing
// page terms on a cron schedule.
package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"gtcal/internal/calendar"
	appLog "gtcal/internal/log"
	"gtcal/internal/source"
	"gtcal/internal/term"
)

// Renderer is the pipeline the warmer drives.
type Renderer interface {
	Render(ctx context.Context, code string) (calendar.Document, error)
}

// Result summarizes one warm pass.
type Result struct {
	Rendered int
	// Missing counts terms the upstream has no data for; not a failure.
	Missing int
	Failed  int
}

// Warmer renders every term in a year window so that later requests are
// served from cache.
type Warmer struct {
	renderer   Renderer
	yearsBack  int
	yearsAhead int

	// Now picks the window; time.Now if nil.
	Now func() time.Time

	mu      sync.Mutex
	running bool
}

func NewWarmer(r Renderer, yearsBack, yearsAhead int) *Warmer {
	return &Warmer{renderer: r, yearsBack: yearsBack, yearsAhead: yearsAhead}
}

// Run performs one pass. Terms are rendered one at a time. A pass that
// starts while another is still running is skipped.
func (w *Warmer) Run(ctx context.Context) Result {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		appLog.Info("cache warm already running; skipping")
		return Result{}
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	var res Result
	started := time.Now()
	for _, t := range term.LandingTerms(w.now(), w.yearsBack, w.yearsAhead) {
		if ctx.Err() != nil {
			break
		}
		_, err := w.renderer.Render(ctx, t.Code)
		switch {
		case err == nil:
			res.Rendered++
		case errors.Is(err, source.ErrNotFound):
			res.Missing++
		default:
			res.Failed++
			appLog.Error("cache warm failed for term", err, "term", t.Code)
		}
	}

	appLog.Info("cache warm completed",
		"rendered", res.Rendered,
		"missing", res.Missing,
		"failed", res.Failed,
		"took", time.Since(started),
	)
	return res
}

// Start schedules Run on spec and returns the running scheduler. Callers
// stop it with Stop, whose context is done once in-flight passes finish.
func (w *Warmer) Start(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { w.Run(ctx) }); err != nil {
		return nil, err
	}
	c.Start()
	appLog.Info("cache warm scheduled", "schedule", spec)
	return c, nil
}

func (w *Warmer) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}
