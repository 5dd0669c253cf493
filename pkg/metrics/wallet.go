package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// WalletMetrics records ledger operation outcomes and guard contention.
type WalletMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	lockWait   prometheus.Histogram
	drift      prometheus.Counter
	cache      *prometheus.CounterVec
}

// NewWalletMetrics registers the wallet metrics on the provided registerer.
func NewWalletMetrics(reg prometheus.Registerer) *WalletMetrics {
	if reg == nil {
		return &WalletMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_operations_total",
		Help: "Wallet ledger operations by type and outcome.",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_operation_duration_seconds",
		Help:    "Latency of guarded wallet operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wallet_lock_wait_seconds",
		Help:    "Time spent waiting for the per-wallet guard.",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
	})
	drift := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wallet_reconcile_drift_total",
		Help: "Cached balance projections that disagreed with a full replay.",
	})
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_balance_cache_total",
		Help: "Balance cache lookups by result.",
	}, []string{"result"})
	reg.MustRegister(operations, duration, lockWait, drift, cache)
	return &WalletMetrics{
		operations: operations,
		duration:   duration,
		lockWait:   lockWait,
		drift:      drift,
		cache:      cache,
	}
}

// ObserveOperation records the outcome and latency of one wallet operation.
func (m *WalletMetrics) ObserveOperation(operation, outcome string, duration time.Duration) {
	if m == nil || m.operations == nil {
		return
	}
	operation = normalizeLabel(operation)
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveLockWait records how long a caller waited on the wallet guard.
func (m *WalletMetrics) ObserveLockWait(wait time.Duration) {
	if m == nil || m.lockWait == nil {
		return
	}
	m.lockWait.Observe(wait.Seconds())
}

// IncDrift counts a repaired cache projection.
func (m *WalletMetrics) IncDrift() {
	if m == nil || m.drift == nil {
		return
	}
	m.drift.Inc()
}

// IncCache counts a cache lookup result (hit, miss, stale).
func (m *WalletMetrics) IncCache(result string) {
	if m == nil || m.cache == nil {
		return
	}
	m.cache.WithLabelValues(result).Inc()
}
