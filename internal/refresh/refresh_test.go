package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gtcal/internal/calendar"
	"gtcal/internal/source"
)

type recordingRenderer struct {
	mu    sync.Mutex
	codes []string
	errs  map[string]error
	block chan struct{}
}

func (r *recordingRenderer) Render(_ context.Context, code string) (calendar.Document, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.codes = append(r.codes, code)
	r.mu.Unlock()
	return calendar.Document{}, r.errs[code]
}

func (r *recordingRenderer) rendered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.codes...)
}

func fixedClock() time.Time {
	return time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)
}

func TestRunWarmsWindow(t *testing.T) {
	r := &recordingRenderer{errs: map[string]error{
		"202402": source.ErrNotFound,
		"202505": errors.New("upstream down"),
	}}
	w := NewWarmer(r, 1, 0)
	w.Now = fixedClock

	res := w.Run(context.Background())

	assert.Equal(t, []string{"202402", "202405", "202408", "202502", "202505", "202508"}, r.rendered())
	assert.Equal(t, Result{Rendered: 4, Missing: 1, Failed: 1}, res)
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	r := &recordingRenderer{}
	w := NewWarmer(r, 1, 2)
	w.Now = fixedClock

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := w.Run(ctx)

	assert.Empty(t, r.rendered())
	assert.Equal(t, Result{}, res)
}

func TestRunSkipsOverlappingPass(t *testing.T) {
	r := &recordingRenderer{block: make(chan struct{})}
	w := NewWarmer(r, 0, 0)
	w.Now = fixedClock

	done := make(chan Result)
	go func() { done <- w.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.running
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, Result{}, w.Run(context.Background()))

	close(r.block)
	first := <-done
	assert.Equal(t, 3, first.Rendered)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	w := NewWarmer(&recordingRenderer{}, 0, 0)
	_, err := w.Start(context.Background(), "every tuesday")
	assert.Error(t, err)
}

func TestStartSchedules(t *testing.T) {
	w := NewWarmer(&recordingRenderer{}, 0, 0)
	c, err := w.Start(context.Background(), "0 4 * * *")
	require.NoError(t, err)
	defer c.Stop()
	assert.Len(t, c.Entries(), 1)
}
