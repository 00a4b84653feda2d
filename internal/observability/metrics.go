package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pledge pool engine.
type Metrics struct {
	// --- Engine operations ---
	OpsApplied    *prometheus.CounterVec
	OpsRejected   *prometheus.CounterVec
	OpDuration    *prometheus.HistogramVec
	AuditSequence prometheus.Gauge

	// --- Pool lifecycle ---
	PoolsCreated    prometheus.Counter
	PoolTransitions *prometheus.CounterVec
	SlippageAborts  prometheus.Counter
	LiquidationsDue prometheus.Gauge
	FeesSkimmed     *prometheus.CounterVec

	// --- Adapters ---
	OracleReads       *prometheus.CounterVec
	OracleUnavailable prometheus.Counter
	SwapDuration      prometheus.Histogram

	// --- Persistence ---
	PersistRecordsWritten prometheus.Counter
	PersistBatchDur       prometheus.Histogram
	PersistBatchSize      prometheus.Histogram
	PersistErrors         *prometheus.CounterVec
	PersistRetry          prometheus.Counter
	PersistLastSequence   prometheus.Gauge
	PersistBackpressure   prometheus.Counter

	// --- Publishing ---
	PublishedRecords prometheus.Counter
	PublishDrops     prometheus.Counter

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.00001, 0.00005, 0.0001, 0.00025, 0.0005,
		0.001, 0.0025, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0,
	}

	return &Metrics{
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pledge_ops_applied_total",
			Help: "Operations successfully applied by the engine",
		}, []string{"op"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pledge_ops_rejected_total",
			Help: "Operations rejected (state, window, auth, slippage)",
		}, []string{"op", "reason"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pledge_op_duration_seconds",
			Help:    "Time to apply a single operation, adapters included",
			Buckets: opBuckets,
		}, []string{"op"}),

		AuditSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pledge_audit_sequence",
			Help: "Current audit log sequence number",
		}),

		PoolsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pledge_pools_created_total",
			Help: "Pools created",
		}),

		PoolTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pledge_pool_transitions_total",
			Help: "Lifecycle transitions",
		}, []string{"from", "to"}),

		SlippageAborts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pledge_slippage_aborts_total",
			Help: "Settlement swaps aborted on shortfall",
		}),

		LiquidationsDue: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pledge_liquidations_due",
			Help: "Pools currently below the liquidation threshold",
		}),

		FeesSkimmed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pledge_fees_skimmed_total",
			Help: "Fee amounts sent to the fee recipient (base units)",
		}, []string{"asset"}),

		OracleReads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pledge_oracle_reads_total",
			Help: "Oracle price reads",
		}, []string{"status"}),

		OracleUnavailable: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pledge_oracle_unavailable_total",
			Help: "Operations rejected on a zero oracle price",
		}),

		SwapDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pledge_swap_duration_seconds",
			Help:    "External swap round-trip time",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),

		PersistRecordsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pledge_persist_records_written_total",
			Help: "Audit records written to Postgres",
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pledge_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pledge_persist_batch_size",
			Help:    "Audit records per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pledge_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pledge_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pledge_persist_last_sequence",
			Help: "Last persisted audit sequence",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pledge_persist_backpressure_total",
			Help: "Times the engine blocked on the persist channel",
		}),

		PublishedRecords: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pledge_published_records_total",
			Help: "Audit records published to NATS",
		}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pledge_publish_drops_total",
			Help: "Audit records dropped due to a full publish channel",
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pledge_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pledge_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pledge_query_errors_total",
			Help: "Query errors",
		}, []string{"endpoint", "code"}),
	}
}
