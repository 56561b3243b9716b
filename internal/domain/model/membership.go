package model

import (
	"time"

	"github.com/google/uuid"

	"loyalty-core/internal/domain"
)

type MembershipStatus string

const (
	MembershipStatusActive   MembershipStatus = "active"
	MembershipStatusInactive MembershipStatus = "inactive"
)

// Membership is the balance state between one program and one customer pass.
// Created lazily on the customer's first scan.
type Membership struct {
	ID             string // UUID
	ProgramID      string
	CustomerPassID string

	StampsBalance int
	PointsBalance int
	TotalEarned   int // monotonic, never decreases
	TotalRedeemed int // monotonic, never decreases

	EarnedTodayCount int
	EarnedTodayDate  string // calendar date in the program's timezone, not UTC
	LastEarnedAt     *time.Time

	Status    MembershipStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewMembership creates a zero-balance membership for a first-time scanner.
func NewMembership(programID, customerPassID string) (*Membership, error) {
	if programID == "" || customerPassID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Membership{
		ID:             uuid.NewString(),
		ProgramID:      programID,
		CustomerPassID: customerPassID,
		Status:         MembershipStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Balance returns the authoritative balance for the program's type.
func (m *Membership) Balance(t ProgramType) int {
	if t == ProgramTypePoints {
		return m.PointsBalance
	}
	return m.StampsBalance
}

// EffectiveTodayCount is the daily counter after stateless reset detection:
// a stored date different from today-in-program-timezone means the counter
// is stale and reads as zero. No cron job involved.
func (m *Membership) EffectiveTodayCount(today string) int {
	if m.EarnedTodayDate != today {
		return 0
	}
	return m.EarnedTodayCount
}

// ApplyEarn mutates the membership for one accepted scan. Callers hold the
// per-membership lock; this only encodes the arithmetic.
func (m *Membership) ApplyEarn(t ProgramType, increment int, today string, now time.Time) {
	if t == ProgramTypePoints {
		m.PointsBalance += increment
	} else {
		m.StampsBalance += increment
	}
	m.TotalEarned += increment
	m.EarnedTodayCount = m.EffectiveTodayCount(today) + 1
	m.EarnedTodayDate = today
	m.LastEarnedAt = &now
	m.UpdatedAt = now
}

// ApplyRedeem deducts the reward threshold, keeping any excess balance.
// Returns the amount deducted.
func (m *Membership) ApplyRedeem(t ProgramType, threshold int, now time.Time) (int, error) {
	if m.Balance(t) < threshold {
		return 0, domain.ErrInsufficientBalance
	}
	if t == ProgramTypePoints {
		m.PointsBalance -= threshold
	} else {
		m.StampsBalance -= threshold
	}
	m.TotalRedeemed += threshold
	m.UpdatedAt = now
	return threshold, nil
}

// NextEligibleAfterGap returns when the membership may earn again under the
// min-gap rule, or the zero time when no gap applies.
func (m *Membership) NextEligibleAfterGap(minGapMinutes int) time.Time {
	if minGapMinutes <= 0 || m.LastEarnedAt == nil {
		return time.Time{}
	}
	return m.LastEarnedAt.Add(time.Duration(minGapMinutes) * time.Minute)
}
