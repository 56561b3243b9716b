package metrics

import (
	"loyalty-core/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		redemptionsConsumedTotal,
		redemptionsExpiredTotal,
		stampsDeductedTotal,
		programsTotal,
	)
}

var (
	redemptionsConsumedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "loyalty_redemptions_consumed_total",
			Help: "Total rewards consumed.",
		},
	)

	redemptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "loyalty_redemptions_display_expired_total",
			Help: "Redemptions whose verification display lapsed (sweeper plus on-read).",
		},
	)

	stampsDeductedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "loyalty_stamps_deducted_total",
			Help: "Sum of balance deducted across all redemptions.",
		},
	)

	programsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "loyalty_programs_total",
			Help: "Current number of programs by lifecycle status.",
		},
		[]string{"status"},
	)
)

func IncRedemptionConsumed(deducted int) {
	redemptionsConsumedTotal.Inc()
	stampsDeductedTotal.Add(float64(deducted))
}

func IncRedemptionsExpired(count int) {
	redemptionsExpiredTotal.Add(float64(count))
}

func SetProgramsTotal(counts map[model.ProgramStatus]int) {
	statuses := []model.ProgramStatus{
		model.ProgramStatusDraft,
		model.ProgramStatusSubmitted,
		model.ProgramStatusActive,
		model.ProgramStatusPaused,
		model.ProgramStatusEnded,
	}
	for _, status := range statuses {
		if count, ok := counts[status]; ok {
			programsTotal.WithLabelValues(string(status)).Set(float64(count))
		}
	}
}
