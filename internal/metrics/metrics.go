package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "yieldflow_build_info",
			Help: "Build information of the YieldFlow engine",
		},
		[]string{"version", "commit", "date"},
	)

	ClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yieldflow_claims_total",
			Help: "Total number of claims by mode and outcome",
		},
		[]string{"mode", "status"},
	)

	PayoutLamportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yieldflow_payout_lamports_total",
			Help: "Total lamports settled, fee included",
		},
		[]string{"mode"},
	)

	FeeLamportsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "yieldflow_fee_lamports_total",
			Help: "Total lamports withheld as protocol fee",
		},
	)

	RateFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yieldflow_rate_fetch_total",
			Help: "Total number of exchange rate fetches",
		},
		[]string{"source", "status"},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "yieldflow_sweep_duration_seconds",
			Help:    "Duration of automatic payout sweeps",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~41s
		},
	)

	PositionsNearThreshold = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "yieldflow_positions_near_threshold",
			Help: "Positions whose owed amount is close to their payout minimum",
		},
	)
)

// Claim status labels.
const (
	StatusPaid     = "paid"
	StatusNoop     = "noop"
	StatusRejected = "rejected"
	StatusError    = "error"
)
