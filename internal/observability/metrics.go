package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for BidVault.
type Metrics struct {
	// --- Bidding ---
	BidsAccepted     prometheus.Counter
	BidsRejected     *prometheus.CounterVec
	BidApplyDuration prometheus.Histogram
	SnipeExtensions  prometheus.Counter

	// --- Auctions ---
	AuctionsCreated prometheus.Counter
	AuctionsSettled *prometheus.CounterVec
	AuctionsActive  prometheus.Gauge

	// --- Deposits & payments ---
	DepositLockedTotal   prometheus.Counter
	DepositRefundedTotal prometheus.Counter
	PaymentPendingTotal  prometheus.Counter

	// --- Channels & broadcast ---
	ChannelSize        *prometheus.GaugeVec
	ChannelCapacity    *prometheus.GaugeVec
	ChannelUtilization *prometheus.GaugeVec
	BroadcastDrops     prometheus.Counter

	// --- Audit persistence ---
	AuditRowsWritten prometheus.Counter
	AuditBatchSize   prometheus.Histogram
	AuditBatchDur    prometheus.Histogram
	AuditErrors      *prometheus.CounterVec
	AuditRetry       prometheus.Counter

	// --- HTTP API ---
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	applyBuckets := []float64{
		0.000005, 0.00001, 0.000025, 0.00005, 0.0001,
		0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		BidsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bidvault_bids_accepted_total",
			Help: "Bids validated, deposited and committed",
		}),

		BidsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bidvault_bids_rejected_total",
			Help: "Bids rejected (too_low, ended, insufficient_funds, ...)",
		}, []string{"reason"}),

		BidApplyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bidvault_bid_apply_duration_seconds",
			Help:    "Time spent inside the per-auction critical section",
			Buckets: applyBuckets,
		}),

		SnipeExtensions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bidvault_snipe_extensions_total",
			Help: "Deadline extensions from last-minute bids",
		}),

		AuctionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bidvault_auctions_created_total",
			Help: "Auctions registered",
		}),

		AuctionsSettled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bidvault_auctions_settled_total",
			Help: "Auctions closed (outcome: won/no_bids)",
		}, []string{"outcome"}),

		AuctionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "bidvault_auctions_active",
			Help: "Auctions currently accepting bids",
		}),

		DepositLockedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bidvault_deposit_locked_total",
			Help: "Sum of security deposits locked",
		}),

		DepositRefundedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bidvault_deposit_refunded_total",
			Help: "Sum of security deposits released at settlement",
		}),

		PaymentPendingTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bidvault_payment_pending_total",
			Help: "Sum of winner payment shortfalls recorded as receivables",
		}),

		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bidvault_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bidvault_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bidvault_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		BroadcastDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bidvault_broadcast_drops_total",
			Help: "Events dropped due to full broadcast buffer",
		}),

		AuditRowsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bidvault_audit_rows_written_total",
			Help: "Audit rows written to Postgres",
		}),

		AuditBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bidvault_audit_batch_size",
			Help:    "Rows per audit batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		AuditBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bidvault_audit_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		AuditErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bidvault_audit_errors_total",
			Help: "Audit persistence errors",
		}, []string{"error_type"}),

		AuditRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bidvault_audit_retry_total",
			Help: "Audit persistence retries",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bidvault_http_requests_total",
			Help: "API requests",
		}, []string{"endpoint", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bidvault_http_request_duration_seconds",
			Help:    "API request latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
