// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remittance_transfers_total",
			Help: "Transfers by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	TransferDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remittance_transfer_duration_seconds",
			Help:    "End to end duration of initiateTransfer",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"type"},
	)

	LedgerSubmitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remittance_ledger_submit_duration_seconds",
			Help:    "Duration of ledger payment submissions",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"ledger", "outcome"},
	)

	ReconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remittance_reconcile_total",
			Help: "Reconciliation runs by result",
		},
		[]string{"result"},
	)

	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remittance_webhooks_total",
			Help: "Inbound provider webhooks by provider and result",
		},
		[]string{"provider", "result"},
	)

	PublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remittance_publish_errors_total",
			Help: "Failed event publications by sink",
		},
		[]string{"sink"},
	)

	RateSnapshotAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "remittance_rate_snapshot_age_seconds",
			Help: "Age of the rate table currently served",
		},
	)
)
