// File: internal/usecase/earn_uc.go
package usecase

import (
	"context"
	"errors"
	"hash/fnv"
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

// IPHasher keys scan attempts by requester address without persisting the
// raw IP.
type IPHasher interface {
	Hash(addr string) string
}

// ScanLimiter throttles scans per hashed source address.
type ScanLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// TaskRunner accepts fire-and-forget work. Rejected-attempt audit appends go
// through it so they never extend the membership critical section. A nil
// runner appends inline (tests, single-process dev).
type TaskRunner interface {
	Submit(task func(ctx context.Context) error) error
}

// EarnResult is the full outcome of one scan, valid or rejected.
type EarnResult struct {
	Success          bool            `json:"success"`
	MembershipID     string          `json:"membership_id,omitempty"`
	NewBalance       int             `json:"new_balance"`
	Threshold        int             `json:"threshold"`
	RewardUnlocked   bool            `json:"reward_unlocked"`
	ProximityMessage string          `json:"proximity_message,omitempty"`
	NextEligibleAt   *time.Time      `json:"next_eligible_at,omitempty"`
	Reason           model.EarnReason `json:"reason,omitempty"`
	PassFields       map[string]string `json:"pass_fields,omitempty"`
}

// LimiterSettings carries the per-IP window config into the use case.
type LimiterSettings struct {
	Limit  int
	Window time.Duration
}

// EarnUseCase validates a counter scan and atomically advances a
// membership's balance. Steps 4-7 of the earn flow run inside one
// transaction holding a per-membership advisory lock, so two concurrent
// scans for the same customer cannot both pass the eligibility checks.
type EarnUseCase struct {
	programs repository.ProgramRepository
	members  repository.MembershipRepository
	events   repository.EarnEventRepository
	txm      repository.TransactionManager
	hasher   IPHasher
	limiter  ScanLimiter
	limits   LimiterSettings
	runner   TaskRunner
	passSync adapter.PassSyncNotifier
	log      *zerolog.Logger
}

func NewEarnUseCase(
	programs repository.ProgramRepository,
	members repository.MembershipRepository,
	events repository.EarnEventRepository,
	txm repository.TransactionManager,
	hasher IPHasher,
	limiter ScanLimiter,
	limits LimiterSettings,
	runner TaskRunner,
	passSync adapter.PassSyncNotifier,
	logger *zerolog.Logger,
) *EarnUseCase {
	ucLog := logger.With().Str("component", "EarnUC").Logger()
	return &EarnUseCase{
		programs: programs,
		members:  members,
		events:   events,
		txm:      txm,
		hasher:   hasher,
		limiter:  limiter,
		limits:   limits,
		runner:   runner,
		passSync: passSync,
		log:      &ucLog,
	}
}

func hashToInt64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64() & ((1 << 63) - 1))
}

// membershipLockKey derives the advisory-lock key for one (program, pass)
// pair. Cross-membership scans never contend.
func membershipLockKey(programID, customerPassID string) int64 {
	return hashToInt64(programID + "|" + customerPassID)
}

// RecordEarn runs the full scan flow: program status, token, rate limit,
// min-gap, daily cap, then the atomic balance mutation. Every attempt lands
// in the audit ledger, rejected ones with their reason code.
func (uc *EarnUseCase) RecordEarn(ctx context.Context, programID, customerPassID, providedToken, requestIP string) (*EarnResult, error) {
	defer logging.TraceDuration(uc.log, "EarnUC.RecordEarn")()
	start := time.Now()

	program, err := uc.programs.FindByID(ctx, repository.NoTX, programID)
	if err != nil {
		return nil, err
	}

	ipHash := ""
	if uc.hasher != nil {
		ipHash = uc.hasher.Hash(requestIP)
	}
	now := time.Now()
	threshold := program.Rules.RewardThreshold

	// Pre-checks that need no membership state. Rejections are audited
	// outside any lock.
	if uc.limiter != nil && ipHash != "" {
		allowed, lerr := uc.limiter.Allow(ctx, red.ScanKey(ipHash), uc.limits.Limit, uc.limits.Window)
		if lerr != nil {
			// Degraded limiter never blocks legitimate scans.
			uc.log.Warn().Err(lerr).Msg("scan limiter unavailable")
		} else if !allowed {
			return uc.reject(ctx, program, "", customerPassID, ipHash, model.EarnReasonRateLimited, nil, threshold, domain.ErrRateLimited)
		}
	}
	if !program.CanEarn() {
		return uc.reject(ctx, program, "", customerPassID, ipHash, model.EarnReasonProgramNotActive, nil, threshold, domain.ErrProgramNotActive)
	}
	if !program.Tokens.IsValid(providedToken, now) {
		return uc.reject(ctx, program, "", customerPassID, ipHash, model.EarnReasonInvalidToken, nil, threshold, domain.ErrInvalidToken)
	}

	var result *EarnResult
	apply := func(ctx context.Context, tx repository.Tx) error {
		if pgTx, ok := tx.(pgx.Tx); ok {
			if _, err := pgTx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", membershipLockKey(programID, customerPassID)); err != nil {
				return err
			}
		}

		m, err := uc.members.FindByProgramAndPass(ctx, tx, programID, customerPassID)
		if errors.Is(err, domain.ErrNotFound) {
			m, err = model.NewMembership(programID, customerPassID)
		}
		if err != nil {
			return err
		}

		today := program.Today(now)

		if next := m.NextEligibleAfterGap(program.Rules.MinGapMinutes); !next.IsZero() && next.After(now) {
			res, rerr := uc.reject(ctx, program, m.ID, customerPassID, ipHash, model.EarnReasonTooSoon, &next, threshold, domain.ErrTooSoon)
			result = res
			return rerr
		}
		if limit := program.Rules.MaxEarnsPerDay; limit > 0 && m.EffectiveTodayCount(today) >= limit {
			next := program.NextMidnight(now)
			res, rerr := uc.reject(ctx, program, m.ID, customerPassID, ipHash, model.EarnReasonDailyLimit, &next, threshold, domain.ErrDailyLimitReached)
			result = res
			return rerr
		}

		before := m.Balance(program.Rules.Type)
		m.ApplyEarn(program.Rules.Type, program.Rules.EarnIncrement, today, now)
		after := m.Balance(program.Rules.Type)

		if err := uc.members.Save(ctx, tx, m); err != nil {
			return err
		}
		event := model.NewEarnEvent(program, m.ID, customerPassID, ipHash, true, model.EarnReasonOK, after)
		if err := uc.events.Append(ctx, tx, event); err != nil {
			return err
		}

		result = &EarnResult{
			Success:          true,
			MembershipID:     m.ID,
			NewBalance:       after,
			Threshold:        threshold,
			RewardUnlocked:   before < threshold && after >= threshold,
			ProximityMessage: model.ProximityMessage(after, threshold),
			PassFields:       model.PassFieldValues(after, program),
		}
		return nil
	}

	if uc.txm != nil {
		err = uc.txm.WithTx(ctx, pgx.TxOptions{}, apply)
	} else {
		err = apply(ctx, nil)
	}
	if err != nil {
		if result != nil {
			// eligibility rejection: audited already, tx rolled back
			return result, err
		}
		return nil, err
	}

	metrics.IncEarnAttempt(true)
	metrics.ObserveEarnLatency(float64(time.Since(start).Milliseconds()))
	if result.RewardUnlocked {
		metrics.IncRewardUnlocked()
	}
	// balance is committed; pass delivery is best effort
	if uc.passSync != nil {
		if err := uc.passSync.NotifyFieldUpdate(ctx, customerPassID, result.PassFields); err != nil {
			uc.log.Warn().Err(err).Msg("pass field sync failed")
		}
	}
	ctx = logging.WithMembershipID(logging.WithProgramID(ctx, programID), result.MembershipID)
	logging.With(ctx, uc.log).Info().
		Int("balance", result.NewBalance).
		Bool("reward_unlocked", result.RewardUnlocked).
		Msg("earn recorded")
	return result, nil
}

// reject builds the failure result, audits the attempt off the critical
// path and returns the matching sentinel error.
func (uc *EarnUseCase) reject(ctx context.Context, program *model.Program, membershipID, customerPassID, ipHash string, reason model.EarnReason, nextEligibleAt *time.Time, threshold int, cause error) (*EarnResult, error) {
	metrics.IncEarnAttempt(false)
	metrics.IncEarnRejection(string(reason))

	event := model.NewEarnEvent(program, membershipID, customerPassID, ipHash, false, reason, 0)
	uc.appendAsync(event)

	logging.With(logging.WithProgramID(ctx, program.ID), uc.log).Info().
		Str("reason", string(reason)).
		Msg("earn rejected")

	return &EarnResult{
		Success:        false,
		MembershipID:   membershipID,
		Threshold:      threshold,
		NextEligibleAt: nextEligibleAt,
		Reason:         reason,
	}, cause
}

// appendAsync writes an audit row outside the caller's transaction. The
// ledger append for invalid attempts is fire-and-forget.
func (uc *EarnUseCase) appendAsync(event *model.EarnEvent) {
	write := func(ctx context.Context) error {
		return uc.events.Append(ctx, repository.NoTX, event)
	}
	if uc.runner != nil {
		if err := uc.runner.Submit(write); err == nil {
			return
		}
		// queue saturated, fall through to inline append
	}
	if err := write(context.Background()); err != nil {
		uc.log.Error().Err(err).Str("event_id", event.ID).Msg("audit append failed")
	}
}

// History returns the audit ledger slice for a membership.
func (uc *EarnUseCase) History(ctx context.Context, membershipID string, offset, limit int) ([]*model.EarnEvent, error) {
	return uc.events.ListByMembership(ctx, repository.NoTX, membershipID, offset, limit)
}

// InvalidAttempts lists rejected scans for anti-abuse review.
func (uc *EarnUseCase) InvalidAttempts(ctx context.Context, programID string, offset, limit int) ([]*model.EarnEvent, error) {
	return uc.events.ListInvalidByProgram(ctx, repository.NoTX, programID, offset, limit)
}
