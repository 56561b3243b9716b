package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"loyalty-core/internal/infra/metrics"
	"loyalty-core/internal/usecase"
)

// DisplayExpiryWorker periodically closes lapsed redemption verification
// screens. The on-read check in the use case is authoritative; this sweep
// just keeps the table from accumulating stale "consumed" rows.
type DisplayExpiryWorker struct {
	interval time.Duration
	redeemUC *usecase.RedemptionUseCase
	log      *zerolog.Logger
}

func NewDisplayExpiryWorker(interval time.Duration, redeemUC *usecase.RedemptionUseCase, logger *zerolog.Logger) *DisplayExpiryWorker {
	wlog := logger.With().Str("component", "DisplayExpiryWorker").Logger()
	return &DisplayExpiryWorker{
		interval: interval,
		redeemUC: redeemUC,
		log:      &wlog,
	}
}

func (w *DisplayExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting display expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping display expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.redeemUC.SweepExpiredDisplays(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("display expiry sweep error")
			}
			if n > 0 {
				metrics.IncRedemptionsExpired(n)
				w.log.Info().Int("count", n).Msg("redemption displays expired")
			}
		}
	}
}
