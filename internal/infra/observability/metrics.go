package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the statements service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	buildDuration  *prometheus.HistogramVec
	buildsTotal    *prometheus.CounterVec
	findingsTotal  *prometheus.CounterVec
	unclassified   prometheus.Counter
	externalErrors *prometheus.CounterVec
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	batchRuns      *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		buildDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finstatements_build_duration_seconds",
				Help:    "Duration of statement generation by kind.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		buildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finstatements_builds_total",
				Help: "Total statements generated, by kind and outcome.",
			},
			[]string{"kind", "status"},
		),
		findingsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finstatements_validation_findings_total",
				Help: "Validation findings attached to generated statements.",
			},
			[]string{"kind", "severity"},
		),
		unclassified: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "finstatements_unclassified_records_total",
				Help: "Ledger records that could not be classified.",
			},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finstatements_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finstatements_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finstatements_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		batchRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finstatements_batch_companies_total",
				Help: "Companies processed by batch runs, by outcome.",
			},
			[]string{"status"},
		),
	}
}

// RecordBuild records one statement generation.
func (m *Metrics) RecordBuild(kind, status string, d time.Duration) {
	m.buildDuration.WithLabelValues(kind).Observe(d.Seconds())
	m.buildsTotal.WithLabelValues(kind, status).Inc()
}

// AddFindings counts validation findings of one severity.
func (m *Metrics) AddFindings(kind, severity string, n int) {
	if n <= 0 {
		return
	}
	m.findingsTotal.WithLabelValues(kind, severity).Add(float64(n))
}

// AddUnclassified counts records the normalizer left unclassified.
func (m *Metrics) AddUnclassified(n int) {
	if n > 0 {
		m.unclassified.Add(float64(n))
	}
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrBatch counts one company processed by a batch run.
func (m *Metrics) IncrBatch(status string) {
	m.batchRuns.WithLabelValues(status).Inc()
}

// Snapshot is a JSON-friendly summary of the counters, served next to the
// Prometheus endpoint for dashboards that do not scrape.
type Snapshot struct {
	Builds        map[string]float64 `json:"builds"`
	Failures      map[string]float64 `json:"failures"`
	Errors        float64            `json:"validationErrors"`
	Warnings      float64            `json:"validationWarnings"`
	Unclassified  float64            `json:"unclassifiedRecords"`
	CacheHitRate  float64            `json:"cacheHitRate"`
	BatchSuccess  float64            `json:"batchSuccess"`
	BatchFailures float64            `json:"batchFailures"`
}

// GetSnapshot gathers current counter values for the given statement kinds.
func (m *Metrics) GetSnapshot(kinds ...string) *Snapshot {
	s := &Snapshot{
		Builds:   make(map[string]float64, len(kinds)),
		Failures: make(map[string]float64, len(kinds)),
	}
	for _, k := range kinds {
		s.Builds[k] = getCounterValue(m.buildsTotal, k, "success")
		s.Failures[k] = getCounterValue(m.buildsTotal, k, "error")
		s.Errors += getCounterValue(m.findingsTotal, k, "error")
		s.Warnings += getCounterValue(m.findingsTotal, k, "warning")
	}
	s.Unclassified = readCounter(m.unclassified)

	hits := getCounterValue(m.cacheHits, "settings") + getCounterValue(m.cacheHits, "rates")
	misses := getCounterValue(m.cacheMisses, "settings") + getCounterValue(m.cacheMisses, "rates")
	if hits+misses > 0 {
		s.CacheHitRate = hits / (hits + misses)
	}
	s.BatchSuccess = getCounterValue(m.batchRuns, "success")
	s.BatchFailures = getCounterValue(m.batchRuns, "error")
	return s
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	return readCounter(cv.WithLabelValues(labels...))
}

func readCounter(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
