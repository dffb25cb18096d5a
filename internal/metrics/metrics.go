// Package metrics exposes Prometheus collectors for scrape cycles.
//
// Collectors live on their own registry so several Metrics values (one per test, say)
// never collide. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "avl_events"

// Cycle results used as the "result" label
const (
	ResultOK      = "ok"
	ResultPartial = "partial"
	ResultSkipped = "skipped"
)

// Metrics holds every collector the service reports
type Metrics struct {
	registry *prometheus.Registry

	cyclesTotal     *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	cycleRunning    prometheus.Gauge
	lastSuccessTS   prometheus.Gauge
	eventsScraped   *prometheus.CounterVec
	eventsInserted  *prometheus.CounterVec
	eventsDuplicate *prometheus.CounterVec
	eventsRejected  *prometheus.CounterVec
	venueFailures   *prometheus.CounterVec
	venueDuration   *prometheus.HistogramVec
	eventsRetired   prometheus.Counter
}

// New creates and registers all collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.cyclesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cycles_total",
		Help:      "Scrape cycles by result",
	}, []string{"result"})
	m.cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Time spent on a full scrape cycle",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
	})
	m.cycleRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cycle_running",
		Help:      "1 while a scrape cycle is in progress",
	})
	m.lastSuccessTS = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last cycle in which every venue succeeded",
	})
	m.eventsScraped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_scraped_total",
		Help:      "Listings extracted from venue pages",
	}, []string{"venue"})
	m.eventsInserted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_inserted_total",
		Help:      "New events stored",
	}, []string{"venue"})
	m.eventsDuplicate = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_duplicate_total",
		Help:      "Scraped listings skipped as duplicates",
	}, []string{"venue"})
	m.eventsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_rejected_total",
		Help:      "Scraped listings dropped by kind (date, invalid, storage)",
	}, []string{"venue", "kind"})
	m.venueFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "venue_failures_total",
		Help:      "Venue pipelines abandoned for a cycle",
	}, []string{"venue"})
	m.venueDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "venue_duration_seconds",
		Help:      "Time spent on one venue pipeline",
		Buckets:   prometheus.DefBuckets,
	}, []string{"venue"})
	m.eventsRetired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_retired_total",
		Help:      "Events moved from upcoming to past by cleanup",
	})

	m.registry.MustRegister(
		m.cyclesTotal, m.cycleDuration, m.cycleRunning, m.lastSuccessTS,
		m.eventsScraped, m.eventsInserted, m.eventsDuplicate, m.eventsRejected,
		m.venueFailures, m.venueDuration, m.eventsRetired,
	)
	return m
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CycleStarted marks a cycle as running
func (m *Metrics) CycleStarted() {
	if m == nil {
		return
	}
	m.cycleRunning.Set(1)
}

// CycleFinished records a completed cycle
func (m *Metrics) CycleFinished(d time.Duration, failedVenues int) {
	if m == nil {
		return
	}
	m.cycleRunning.Set(0)
	m.cycleDuration.Observe(d.Seconds())

	if failedVenues > 0 {
		m.cyclesTotal.WithLabelValues(ResultPartial).Inc()
		return
	}
	m.cyclesTotal.WithLabelValues(ResultOK).Inc()
	m.lastSuccessTS.SetToCurrentTime()
}

// CycleSkipped records a trigger that found a cycle already running
func (m *Metrics) CycleSkipped() {
	if m == nil {
		return
	}
	m.cyclesTotal.WithLabelValues(ResultSkipped).Inc()
}

// VenueDone records one venue pipeline's outcome
func (m *Metrics) VenueDone(venue string, scraped, inserted, duplicates int, failed bool, d time.Duration) {
	if m == nil {
		return
	}
	m.eventsScraped.WithLabelValues(venue).Add(float64(scraped))
	m.eventsInserted.WithLabelValues(venue).Add(float64(inserted))
	m.eventsDuplicate.WithLabelValues(venue).Add(float64(duplicates))
	m.venueDuration.WithLabelValues(venue).Observe(d.Seconds())
	if failed {
		m.venueFailures.WithLabelValues(venue).Inc()
	}
}

// Rejected records a listing dropped for the given kind
func (m *Metrics) Rejected(venue, kind string) {
	if m == nil {
		return
	}
	m.eventsRejected.WithLabelValues(venue, kind).Inc()
}

// Retired records events moved to past by cleanup
func (m *Metrics) Retired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.eventsRetired.Add(float64(n))
}
