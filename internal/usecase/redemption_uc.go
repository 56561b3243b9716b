// File: internal/usecase/redemption_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"loyalty-core/internal/domain"
	"loyalty-core/internal/domain/model"
	"loyalty-core/internal/domain/ports/adapter"
	"loyalty-core/internal/domain/ports/repository"
	"loyalty-core/internal/infra/logging"
	"loyalty-core/internal/infra/metrics"
	red "loyalty-core/internal/infra/redis"
)

// ConsumeResult is what the staff verification screen renders.
type ConsumeResult struct {
	RedemptionID      string            `json:"redemption_id"`
	RewardDescription string            `json:"reward_description"`
	ConsumedAt        time.Time         `json:"consumed_at"`
	DisplayExpiresAt  time.Time         `json:"display_expires_at"`
	NewBalance        int               `json:"new_balance"`
	Threshold         int               `json:"threshold"`
	PassFields        map[string]string `json:"pass_fields,omitempty"`
}

// RedemptionView is a redemption plus its lazily evaluated display state.
type RedemptionView struct {
	Redemption *model.Redemption `json:"redemption"`
	IsActive   bool              `json:"is_active"`
}

// RedemptionUseCase consumes an eligible membership's balance for its
// reward. Consume-on-create: there is no confirm step, so the whole
// operation runs under the same per-membership advisory lock the earn path
// uses, and an optional redis tap guard short-circuits duplicate taps before
// they reach the database.
type RedemptionUseCase struct {
	programs    repository.ProgramRepository
	members     repository.MembershipRepository
	redemptions repository.RedemptionRepository
	txm         repository.TransactionManager
	locker      red.Locker
	passSync    adapter.PassSyncNotifier
	log         *zerolog.Logger
}

func NewRedemptionUseCase(
	programs repository.ProgramRepository,
	members repository.MembershipRepository,
	redemptions repository.RedemptionRepository,
	txm repository.TransactionManager,
	locker red.Locker,
	passSync adapter.PassSyncNotifier,
	logger *zerolog.Logger,
) *RedemptionUseCase {
	ucLog := logger.With().Str("component", "RedemptionUC").Logger()
	return &RedemptionUseCase{
		programs:    programs,
		members:     members,
		redemptions: redemptions,
		txm:         txm,
		locker:      locker,
		passSync:    passSync,
		log:         &ucLog,
	}
}

// Consume deducts the reward threshold from the membership and creates the
// time-boxed verification record. Excess balance carries over.
func (uc *RedemptionUseCase) Consume(ctx context.Context, membershipID string) (*ConsumeResult, error) {
	defer logging.TraceDuration(uc.log, "RedemptionUC.Consume")()

	if uc.locker != nil {
		token, err := uc.locker.TryLock(ctx, red.RedeemKey(membershipID), 10*time.Second)
		if err != nil {
			if errors.Is(err, domain.ErrRedeemInProgress) {
				return nil, err
			}
			// degraded redis never blocks a legitimate redemption; the
			// advisory lock below stays authoritative
			uc.log.Warn().Err(err).Msg("redeem tap guard unavailable")
		} else {
			defer func() { _ = uc.locker.Unlock(ctx, red.RedeemKey(membershipID), token) }()
		}
	}

	now := time.Now()
	var result *ConsumeResult
	var customerPassID string
	apply := func(ctx context.Context, tx repository.Tx) error {
		if pgTx, ok := tx.(pgx.Tx); ok {
			if _, err := pgTx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", hashToInt64(membershipID)); err != nil {
				return err
			}
		}

		m, err := uc.members.FindByID(ctx, tx, membershipID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrMembershipNotFound
		}
		if err != nil {
			return err
		}
		program, err := uc.programs.FindByID(ctx, tx, m.ProgramID)
		if err != nil {
			return err
		}
		if !program.CanEarn() {
			return domain.ErrProgramNotActive
		}

		deducted, err := m.ApplyRedeem(program.Rules.Type, program.Rules.RewardThreshold, now)
		if err != nil {
			return err
		}
		if err := uc.members.Save(ctx, tx, m); err != nil {
			return err
		}

		rd := model.NewRedemption(m.ID, program, deducted, now)
		if err := uc.redemptions.Save(ctx, tx, rd); err != nil {
			return err
		}

		customerPassID = m.CustomerPassID
		balance := m.Balance(program.Rules.Type)
		result = &ConsumeResult{
			RedemptionID:      rd.ID,
			RewardDescription: program.Branding.RewardDescription,
			ConsumedAt:        rd.ConsumedAt,
			DisplayExpiresAt:  rd.DisplayExpiresAt,
			NewBalance:        balance,
			Threshold:         program.Rules.RewardThreshold,
			PassFields:        model.PassFieldValues(balance, program),
		}
		return nil
	}

	var err error
	if uc.txm != nil {
		err = uc.txm.WithTx(ctx, pgx.TxOptions{}, apply)
	} else {
		err = apply(ctx, nil)
	}
	if err != nil {
		return nil, err
	}

	metrics.IncRedemptionConsumed(result.Threshold)
	if uc.passSync != nil {
		if err := uc.passSync.NotifyFieldUpdate(ctx, customerPassID, result.PassFields); err != nil {
			uc.log.Warn().Err(err).Msg("pass field sync failed")
		}
	}
	logging.With(logging.WithMembershipID(ctx, membershipID), uc.log).Info().
		Str("redemption_id", result.RedemptionID).
		Int("new_balance", result.NewBalance).
		Msg("reward consumed")
	return result, nil
}

// Get loads a redemption for the verification screen, applying the lazy
// display-expiry check on read. The expiry is cosmetic; the deduction never
// reverses.
func (uc *RedemptionUseCase) Get(ctx context.Context, redemptionID string) (*RedemptionView, error) {
	rd, err := uc.redemptions.FindByID(ctx, repository.NoTX, redemptionID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if rd.ObserveAt(now) {
		if err := uc.redemptions.Save(ctx, repository.NoTX, rd); err != nil {
			uc.log.Warn().Err(err).Str("redemption_id", rd.ID).Msg("could not persist display expiry")
		}
		metrics.IncRedemptionsExpired(1)
	}
	return &RedemptionView{Redemption: rd, IsActive: rd.IsDisplayActive(now)}, nil
}

// Flag marks a redemption for out-of-band fraud review. Balances stay
// untouched.
func (uc *RedemptionUseCase) Flag(ctx context.Context, redemptionID, reason string) error {
	if reason == "" {
		return domain.ErrInvalidArgument
	}
	rd, err := uc.redemptions.FindByID(ctx, repository.NoTX, redemptionID)
	if err != nil {
		return err
	}
	rd.Flag(reason, time.Now())
	return uc.redemptions.Save(ctx, repository.NoTX, rd)
}

// ListByMembership returns a membership's redemption history.
func (uc *RedemptionUseCase) ListByMembership(ctx context.Context, membershipID string) ([]*model.Redemption, error) {
	return uc.redemptions.ListByMembership(ctx, repository.NoTX, membershipID)
}

// SweepExpiredDisplays closes all lapsed verification windows in one pass.
func (uc *RedemptionUseCase) SweepExpiredDisplays(ctx context.Context) (int, error) {
	return uc.redemptions.ExpireDisplayBefore(ctx, repository.NoTX, time.Now())
}
