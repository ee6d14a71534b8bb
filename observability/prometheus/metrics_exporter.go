package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-tick-runner/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "tickrunner"

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	// TickBuckets are the histogram buckets for tick durations, in seconds.
	TickBuckets []float64
}

// DefaultTickBuckets spans 50µs to roughly 1.6s; most ticks land well under a frame.
var DefaultTickBuckets = prom.ExponentialBuckets(0.00005, 2, 16)

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	tickDurationSeconds *prom.HistogramVec
	completionsTotal    *prom.CounterVec
	stepPanicTotal      *prom.CounterVec
	rejectedTotal       *prom.CounterVec
	activeEntries       *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
// Collectors already registered under the same names are reused, so several
// dispatchers may share one registry.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.TickBuckets
	if len(buckets) == 0 {
		buckets = DefaultTickBuckets
	}

	tickVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "tick_duration_seconds",
		Help:      "Wall-clock time spent inside Dispatcher.Tick.",
		Buckets:   buckets,
	}, []string{"dispatcher"})
	completionsVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "completions_total",
		Help:      "Root entries retired, by kind and terminal state.",
	}, []string{"dispatcher", "kind", "state"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "step_panic_total",
		Help:      "Total number of recovered step panics.",
	}, []string{"dispatcher"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "submission_rejected_total",
		Help:      "Total number of rejected submissions.",
	}, []string{"dispatcher", "reason"})
	activeVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "active_entries",
		Help:      "Root entries registered after the last tick.",
	}, []string{"dispatcher"})

	var err error
	if tickVec, err = registerCollector(reg, tickVec); err != nil {
		return nil, err
	}
	if completionsVec, err = registerCollector(reg, completionsVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if activeVec, err = registerCollector(reg, activeVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		tickDurationSeconds: tickVec,
		completionsTotal:    completionsVec,
		stepPanicTotal:      panicVec,
		rejectedTotal:       rejectedVec,
		activeEntries:       activeVec,
	}, nil
}

// RecordTickDuration records the time one Tick took.
func (m *MetricsExporter) RecordTickDuration(dispatcher string, duration time.Duration) {
	if m == nil {
		return
	}
	m.tickDurationSeconds.WithLabelValues(normalizeLabel(dispatcher, "unknown")).Observe(duration.Seconds())
}

// RecordCompletion counts a retired root entry.
func (m *MetricsExporter) RecordCompletion(dispatcher string, kind core.Kind, state core.State) {
	if m == nil {
		return
	}
	m.completionsTotal.WithLabelValues(normalizeLabel(dispatcher, "unknown"), kind.String(), state.String()).Inc()
}

// RecordStepPanic counts a recovered step panic.
func (m *MetricsExporter) RecordStepPanic(dispatcher string, panicInfo any) {
	if m == nil {
		return
	}
	m.stepPanicTotal.WithLabelValues(normalizeLabel(dispatcher, "unknown")).Inc()
}

// RecordActiveEntries sets the active entry gauge.
func (m *MetricsExporter) RecordActiveEntries(dispatcher string, count int) {
	if m == nil {
		return
	}
	m.activeEntries.WithLabelValues(normalizeLabel(dispatcher, "unknown")).Set(float64(count))
}

// RecordSubmissionRejected counts a rejected Submit.
func (m *MetricsExporter) RecordSubmissionRejected(dispatcher string, reason string) {
	if m == nil {
		return
	}
	m.rejectedTotal.WithLabelValues(normalizeLabel(dispatcher, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
