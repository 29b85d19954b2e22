// Package metrics exposes Prometheus collectors for upstream fetches, cache
// behavior and calendar rendering. A nil *Metrics is valid and records
// nothing, so callers never need to guard.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cache lookup outcomes.
const (
	LookupHit      = "hit"
	LookupMiss     = "miss"
	LookupStale    = "stale"
	LookupError    = "error"
	LookupDisabled = "disabled"
)

type Metrics struct {
	upstreamRequests *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	cacheWrites      *prometheus.CounterVec
	renderDuration   *prometheus.HistogramVec
	eventsRendered   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gtcal",
			Name:      "upstream_requests_total",
			Help:      "Upstream calendar fetches by source and outcome",
		}, []string{"source", "outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gtcal",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by source and result",
		}, []string{"source", "result"}),
		cacheWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gtcal",
			Name:      "cache_writes_total",
			Help:      "Cache writes by source and result",
		}, []string{"source", "result"}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gtcal",
			Name:      "render_duration_seconds",
			Help:      "Time to produce a calendar, fetch included",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		eventsRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gtcal",
			Name:      "events_rendered_total",
			Help:      "Normalized events written to calendars",
		}, []string{"source"}),
	}
	reg.MustRegister(
		m.upstreamRequests,
		m.cacheLookups,
		m.cacheWrites,
		m.renderDuration,
		m.eventsRendered,
	)
	return m
}

func (m *Metrics) UpstreamRequest(source, outcome string) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) CacheLookup(source, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(source, result).Inc()
}

func (m *Metrics) CacheWrite(source string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.cacheWrites.WithLabelValues(source, result).Inc()
}

func (m *Metrics) Rendered(source string, events int, took time.Duration) {
	if m == nil {
		return
	}
	m.renderDuration.WithLabelValues(source).Observe(took.Seconds())
	m.eventsRendered.WithLabelValues(source).Add(float64(events))
}
