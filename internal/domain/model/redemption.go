package model

import (
	"time"

	"github.com/google/uuid"
)

// DisplayWindow is how long the staff verification screen treats a
// redemption as active after consumption.
const DisplayWindow = 10 * time.Minute

type RedemptionStatus string

const (
	RedemptionStatusConsumed       RedemptionStatus = "consumed"
	RedemptionStatusExpiredDisplay RedemptionStatus = "expired_display"
)

// Redemption is consume-on-create: the balance deduction happened the moment
// this row was written. The expired_display transition is cosmetic, it closes
// stale verification screens and never reverses the deduction.
type Redemption struct {
	ID              string // UUID
	MembershipID    string
	ProgramID       string
	BusinessID      string
	StampsDeducted  int
	Status          RedemptionStatus
	ConsumedAt      time.Time
	DisplayExpiresAt time.Time
	FlaggedAt       *time.Time
	FlaggedReason   string
}

// NewRedemption records a consumed reward with its display window.
func NewRedemption(membershipID string, p *Program, deducted int, now time.Time) *Redemption {
	return &Redemption{
		ID:               uuid.NewString(),
		MembershipID:     membershipID,
		ProgramID:        p.ID,
		BusinessID:       p.BusinessID,
		StampsDeducted:   deducted,
		Status:           RedemptionStatusConsumed,
		ConsumedAt:       now,
		DisplayExpiresAt: now.Add(DisplayWindow),
	}
}

// IsDisplayActive reports whether the verification screen should still show
// this redemption as valid.
func (r *Redemption) IsDisplayActive(now time.Time) bool {
	return r.Status == RedemptionStatusConsumed && now.Before(r.DisplayExpiresAt)
}

// ObserveAt applies the lazy display-expiry check and reports whether the
// status changed (callers persist the terminal state when it did).
func (r *Redemption) ObserveAt(now time.Time) bool {
	if r.Status == RedemptionStatusConsumed && !now.Before(r.DisplayExpiresAt) {
		r.Status = RedemptionStatusExpiredDisplay
		return true
	}
	return false
}

// Flag marks the redemption for out-of-band fraud review. Balances are never
// altered by flagging.
func (r *Redemption) Flag(reason string, now time.Time) {
	r.FlaggedAt = &now
	r.FlaggedReason = reason
}
