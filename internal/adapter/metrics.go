package adapter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

// Metrics records run statistics.
type Metrics interface {
	MutantTested(status m.MutantStatus, duration time.Duration)
	WorkerCreated(kind string)
	WorkerRestarted(reason string)
	SetMutationScore(score float64)
	// Flush persists the collected metrics.
	Flush() error
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

// MutantTested implements Metrics.
func (NoopMetrics) MutantTested(m.MutantStatus, time.Duration) {}

// WorkerCreated implements Metrics.
func (NoopMetrics) WorkerCreated(string) {}

// WorkerRestarted implements Metrics.
func (NoopMetrics) WorkerRestarted(string) {}

// SetMutationScore implements Metrics.
func (NoopMetrics) SetMutationScore(float64) {}

// Flush implements Metrics.
func (NoopMetrics) Flush() error { return nil }

// TextfileMetrics collects Prometheus metrics in a private registry and writes
// them in the text exposition format, suitable for the node exporter textfile
// collector.
type TextfileMetrics struct {
	path     string
	registry *prometheus.Registry

	mutantsTotal    *prometheus.CounterVec
	mutantDuration  *prometheus.HistogramVec
	workersCreated  *prometheus.CounterVec
	workerRestarts  *prometheus.CounterVec
	mutationScore   prometheus.Gauge
	lastRunUnixTime prometheus.Gauge
}

// NewTextfileMetrics creates metrics that Flush writes to path.
func NewTextfileMetrics(path string) *TextfileMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &TextfileMetrics{
		path:     path,
		registry: registry,
		mutantsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mutiny_mutants_total",
			Help: "Mutants by final status",
		}, []string{"status"}),
		mutantDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mutiny_mutant_duration_seconds",
			Help:    "Wall time spent testing a mutant",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"status"}),
		workersCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mutiny_workers_created_total",
			Help: "Workers created by kind",
		}, []string{"kind"}),
		workerRestarts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mutiny_worker_restarts_total",
			Help: "Test runner restarts by reason",
		}, []string{"reason"}),
		mutationScore: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mutiny_mutation_score_percent",
			Help: "Mutation score of the last run",
		}),
		lastRunUnixTime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mutiny_last_run_timestamp_seconds",
			Help: "Completion time of the last run",
		}),
	}
}

// MutantTested implements Metrics.
func (t *TextfileMetrics) MutantTested(status m.MutantStatus, duration time.Duration) {
	t.mutantsTotal.WithLabelValues(status.String()).Inc()

	if duration > 0 {
		t.mutantDuration.WithLabelValues(status.String()).Observe(duration.Seconds())
	}
}

// WorkerCreated implements Metrics.
func (t *TextfileMetrics) WorkerCreated(kind string) {
	t.workersCreated.WithLabelValues(kind).Inc()
}

// WorkerRestarted implements Metrics.
func (t *TextfileMetrics) WorkerRestarted(reason string) {
	t.workerRestarts.WithLabelValues(reason).Inc()
}

// SetMutationScore implements Metrics.
func (t *TextfileMetrics) SetMutationScore(score float64) {
	t.mutationScore.Set(score)
}

// Registry exposes the underlying registry.
func (t *TextfileMetrics) Registry() *prometheus.Registry {
	return t.registry
}

// Flush implements Metrics.
func (t *TextfileMetrics) Flush() error {
	t.lastRunUnixTime.SetToCurrentTime()

	if err := os.MkdirAll(filepath.Dir(t.path), 0o750); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}

	if err := prometheus.WriteToTextfile(t.path, t.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", t.path, err)
	}

	slog.Debug("Wrote metrics", "path", t.path)

	return nil
}

// NewMetrics returns textfile metrics when path is set and NoopMetrics otherwise.
func NewMetrics(path string) Metrics {
	if path == "" {
		return NoopMetrics{}
	}

	return NewTextfileMetrics(path)
}
