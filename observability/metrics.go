package observability

import (
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type chainMetrics struct {
	chainsCreated   *prometheus.CounterVec
	stepsApplied    *prometheus.CounterVec
	stepsFailed     *prometheus.CounterVec
	chainsUnwound   *prometheus.CounterVec
	committedBudget *prometheus.GaugeVec
	rpcLatency      *prometheus.HistogramVec
	rpcErrors       *prometheus.CounterVec
}

var (
	chainMetricsOnce sync.Once
	chainRegistry    *chainMetrics
)

// Chain returns the lazily-initialised registry tracking leverage chain
// activity.
func Chain() *chainMetrics {
	chainMetricsOnce.Do(func() {
		chainRegistry = &chainMetrics{
			chainsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "verse",
				Subsystem: "chain",
				Name:      "created_total",
				Help:      "Count of leverage chains created, by verse.",
			}, []string{"verse"}),
			stepsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "verse",
				Subsystem: "chain",
				Name:      "steps_applied_total",
				Help:      "Count of applied chain steps, by step kind.",
			}, []string{"kind"}),
			stepsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "verse",
				Subsystem: "chain",
				Name:      "steps_failed_total",
				Help:      "Count of failed chain steps, by step kind.",
			}, []string{"kind"}),
			chainsUnwound: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "verse",
				Subsystem: "chain",
				Name:      "unwound_total",
				Help:      "Count of fully unwound chains, by verse.",
			}, []string{"verse"}),
			committedBudget: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "verse",
				Subsystem: "coverage",
				Name:      "committed_exposure",
				Help:      "Exposure currently reserved against the verse risk budget.",
			}, []string{"verse"}),
			rpcLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "verse",
				Subsystem: "rpc",
				Name:      "request_seconds",
				Help:      "Latency of RPC method handling.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			rpcErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "verse",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Count of RPC requests answered with an error, by method.",
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			chainRegistry.chainsCreated,
			chainRegistry.stepsApplied,
			chainRegistry.stepsFailed,
			chainRegistry.chainsUnwound,
			chainRegistry.committedBudget,
			chainRegistry.rpcLatency,
			chainRegistry.rpcErrors,
		)
	})
	return chainRegistry
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}

// RecordChainCreated increments the creation counter for a verse.
func (m *chainMetrics) RecordChainCreated(verse string) {
	if m == nil {
		return
	}
	m.chainsCreated.WithLabelValues(normalizeLabel(verse)).Inc()
}

// RecordStepApplied increments the applied-step counter for a step kind.
func (m *chainMetrics) RecordStepApplied(kind string) {
	if m == nil {
		return
	}
	m.stepsApplied.WithLabelValues(normalizeLabel(kind)).Inc()
}

// RecordStepFailed increments the failed-step counter for a step kind.
func (m *chainMetrics) RecordStepFailed(kind string) {
	if m == nil {
		return
	}
	m.stepsFailed.WithLabelValues(normalizeLabel(kind)).Inc()
}

// RecordChainUnwound increments the unwind counter for a verse.
func (m *chainMetrics) RecordChainUnwound(verse string) {
	if m == nil {
		return
	}
	m.chainsUnwound.WithLabelValues(normalizeLabel(verse)).Inc()
}

// SetCommittedExposure publishes the reserved exposure of a verse. Precision
// loss past float64 is acceptable for a gauge.
func (m *chainMetrics) SetCommittedExposure(verse string, committed *big.Int) {
	if m == nil || committed == nil {
		return
	}
	value, _ := new(big.Float).SetInt(committed).Float64()
	m.committedBudget.WithLabelValues(normalizeLabel(verse)).Set(value)
}

// ObserveRPC records the latency of one RPC call and counts failures.
func (m *chainMetrics) ObserveRPC(method string, start time.Time, failed bool) {
	if m == nil {
		return
	}
	method = normalizeLabel(method)
	m.rpcLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if failed {
		m.rpcErrors.WithLabelValues(method).Inc()
	}
}
