// Package metrics provides Prometheus-compatible instrumentation for
// CFG/async execution: block/step latency, inflight tasks, and detector
// counters.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the narrow surface ir/cfg and ir/async record against; the
// orchestrator records the race/deadlock counters from the detectors'
// findings. NopMetrics disables instrumentation without branching at
// every call site.
type Metrics interface {
	RecordStepLatency(runID, blockID string, latency time.Duration, status string)
	SetInflightTasks(runID string, n int)
	SetQueueDepth(runID string, n int)
	IncrementNonTermination(runID string)
	IncrementRaceDetected(runID, conflictKind string)
	IncrementDeadlockDetected(runID string)
}

// PrometheusMetrics implements Metrics against a Prometheus registry,
// namespaced "layeredvm_".
type PrometheusMetrics struct {
	mu sync.RWMutex

	inflightTasks *prometheus.GaugeVec
	queueDepth    *prometheus.GaugeVec
	stepLatency   *prometheus.HistogramVec
	nonTerm       *prometheus.CounterVec
	raceDetected  *prometheus.CounterVec
	deadlock      *prometheus.CounterVec
}

func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	inflight := factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "layeredvm", Name: "inflight_tasks",
		Help: "Current number of async tasks scheduled concurrently",
	}, []string{"run_id"})
	queue := factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "layeredvm", Name: "queue_depth",
		Help: "Pending tasks waiting in the scheduler's ready queue",
	}, []string{"run_id"})

	return &PrometheusMetrics{
		inflightTasks: inflight,
		queueDepth:    queue,
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "layeredvm", Name: "block_latency_ms",
			Help:    "Block execution duration in milliseconds",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		}, []string{"run_id", "block_id", "status"}),
		nonTerm: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "layeredvm", Name: "nonterminations_total",
			Help: "Runs terminated by the step-budget NonTermination guard",
		}, []string{"run_id"}),
		raceDetected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "layeredvm", Name: "races_detected_total",
			Help: "Conflicting unordered accesses flagged by the race detector",
		}, []string{"run_id", "conflict_kind"}),
		deadlock: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "layeredvm", Name: "deadlocks_detected_total",
			Help: "Lock wait-for cycles flagged by the deadlock detector",
		}, []string{"run_id"}),
	}
}

func (pm *PrometheusMetrics) RecordStepLatency(runID, blockID string, latency time.Duration, status string) {
	pm.stepLatency.WithLabelValues(runID, blockID, status).Observe(float64(latency.Milliseconds()))
}

func (pm *PrometheusMetrics) SetInflightTasks(runID string, n int) {
	pm.inflightTasks.WithLabelValues(runID).Set(float64(n))
}

func (pm *PrometheusMetrics) SetQueueDepth(runID string, n int) {
	pm.queueDepth.WithLabelValues(runID).Set(float64(n))
}

func (pm *PrometheusMetrics) IncrementNonTermination(runID string) {
	pm.nonTerm.WithLabelValues(runID).Inc()
}

func (pm *PrometheusMetrics) IncrementRaceDetected(runID, conflictKind string) {
	pm.raceDetected.WithLabelValues(runID, conflictKind).Inc()
}

func (pm *PrometheusMetrics) IncrementDeadlockDetected(runID string) {
	pm.deadlock.WithLabelValues(runID).Inc()
}

// NopMetrics discards every observation; the default when no registry is
// configured.
type NopMetrics struct{}

func (NopMetrics) RecordStepLatency(string, string, time.Duration, string) {}
func (NopMetrics) SetInflightTasks(string, int)                           {}
func (NopMetrics) SetQueueDepth(string, int)                              {}
func (NopMetrics) IncrementNonTermination(string)                         {}
func (NopMetrics) IncrementRaceDetected(string, string)                   {}
func (NopMetrics) IncrementDeadlockDetected(string)                       {}
