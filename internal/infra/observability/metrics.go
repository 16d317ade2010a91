package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the ledger service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	operationDuration      *prometheus.HistogramVec
	transactionsExecuted   *prometheus.CounterVec
	transactionsRolledBack prometheus.Counter
	operationErrors        *prometheus.CounterVec
	cacheHits              *prometheus.CounterVec
	cacheMisses            *prometheus.CounterVec
}

// OpsSnapshot summarizes the counters for the metrics summary
// endpoint.
type OpsSnapshot struct {
	TransactionsExecuted   int64   `json:"transactions_executed"`
	TransactionsRolledBack int64   `json:"transactions_rolled_back"`
	CacheHitRate           float64 `json:"cache_hit_rate"`
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_operation_duration_seconds",
				Help:    "Duration of core operations by name.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		transactionsExecuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_transactions_executed_total",
				Help: "Total executed transactions by type.",
			},
			[]string{"type"},
		),
		transactionsRolledBack: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_transactions_rolled_back_total",
				Help: "Total rolled-back transactions.",
			},
		),
		operationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_operation_errors_total",
				Help: "Total failed core operations by name.",
			},
			[]string{"operation"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordOperationDuration records the duration of a core operation.
func (m *Metrics) RecordOperationDuration(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrTransactionExecuted increments the executed counter for a type.
func (m *Metrics) IncrTransactionExecuted(txType string) {
	m.transactionsExecuted.WithLabelValues(txType).Inc()
}

// IncrTransactionRolledBack increments the rollback counter.
func (m *Metrics) IncrTransactionRolledBack() {
	m.transactionsRolledBack.Inc()
}

// IncrOperationError increments the error counter for an operation.
func (m *Metrics) IncrOperationError(operation string) {
	m.operationErrors.WithLabelValues(operation).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// Snapshot gathers current counter values for the summary endpoint.
// Prometheus counters expose cumulative values.
func (m *Metrics) Snapshot() *OpsSnapshot {
	executed := getCounterValue(m.transactionsExecuted, "INCOME") +
		getCounterValue(m.transactionsExecuted, "EXPENSE") +
		getCounterValue(m.transactionsExecuted, "TRANSFER")
	hits := getCounterValue(m.cacheHits, "networth")
	misses := getCounterValue(m.cacheMisses, "networth")

	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	rolledBack := readCounter(m.transactionsRolledBack)

	return &OpsSnapshot{
		TransactionsExecuted:   int64(executed),
		TransactionsRolledBack: int64(rolledBack),
		CacheHitRate:           hitRate,
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	return readCounter(cv.WithLabelValues(label))
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
