package model

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// EarnReason is the reason code recorded for a rejected scan attempt.
type EarnReason string

const (
	EarnReasonOK               EarnReason = ""
	EarnReasonProgramNotActive EarnReason = "program_not_active"
	EarnReasonInvalidToken     EarnReason = "invalid_token"
	EarnReasonTooSoon          EarnReason = "too_soon"
	EarnReasonDailyLimit       EarnReason = "daily_limit_reached"
	EarnReasonRateLimited      EarnReason = "rate_limited"
)

// EarnEvent is one append-only audit ledger row per scan attempt, valid or
// not. Rejected attempts are signal for anti-abuse review, not noise.
// Never mutated after creation.
type EarnEvent struct {
	ID             string // ULID, sortable by creation time
	ProgramID      string
	BusinessID     string
	MembershipID   string // empty when the attempt never resolved a membership
	CustomerPassID string
	Valid          bool
	Reason         EarnReason
	IPHash         string // HMAC of the requester IP; the raw IP is never persisted
	BalanceAfter   int
	CreatedAt      time.Time
}

// NewEarnEvent records one scan attempt outcome.
func NewEarnEvent(p *Program, membershipID, customerPassID, ipHash string, valid bool, reason EarnReason, balanceAfter int) *EarnEvent {
	now := time.Now()
	return &EarnEvent{
		ID:             ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		ProgramID:      p.ID,
		BusinessID:     p.BusinessID,
		MembershipID:   membershipID,
		CustomerPassID: customerPassID,
		Valid:          valid,
		Reason:         reason,
		IPHash:         ipHash,
		BalanceAfter:   balanceAfter,
		CreatedAt:      now,
	}
}
