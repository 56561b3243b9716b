package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		earnAttemptsTotal,
		earnRejectionsTotal,
		earnLatencyMs,
		rewardsUnlockedTotal,
	)
}

var (
	earnAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loyalty_earn_attempts_total",
			Help: "Scan attempts by outcome (valid/invalid).",
		},
		[]string{"outcome"},
	)

	earnRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loyalty_earn_rejections_total",
			Help: "Rejected scan attempts by reason code.",
		},
		[]string{"reason"},
	)

	earnLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "loyalty_earn_latency_ms",
			Help:    "recordEarn latency distribution in milliseconds.",
			Buckets: []float64{1, 2.5, 5, 10, 25, 50, 100, 200, 400, 800},
		},
	)

	rewardsUnlockedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "loyalty_rewards_unlocked_total",
			Help: "Count of earns that pushed a membership across its threshold.",
		},
	)
)

func IncEarnAttempt(valid bool) {
	outcome := "valid"
	if !valid {
		outcome = "invalid"
	}
	earnAttemptsTotal.WithLabelValues(outcome).Inc()
}

func IncEarnRejection(reason string) {
	earnRejectionsTotal.WithLabelValues(reason).Inc()
}

func ObserveEarnLatency(ms float64) {
	earnLatencyMs.Observe(ms)
}

func IncRewardUnlocked() {
	rewardsUnlockedTotal.Inc()
}
