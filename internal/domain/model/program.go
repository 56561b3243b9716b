package model

import (
	"time"

	"loyalty-core/internal/domain"
)

type ProgramStatus string

const (
	ProgramStatusDraft     ProgramStatus = "draft"
	ProgramStatusSubmitted ProgramStatus = "submitted"
	ProgramStatusActive    ProgramStatus = "active"
	ProgramStatusPaused    ProgramStatus = "paused"
	ProgramStatusEnded     ProgramStatus = "ended"
)

type ProgramType string

const (
	ProgramTypeStamps ProgramType = "stamps"
	ProgramTypePoints ProgramType = "points"
)

type EarnMode string

const (
	EarnModePerVisit       EarnMode = "per-visit"
	EarnModePerTransaction EarnMode = "per-transaction"
)

// legal lifecycle transitions: draft → submitted → active → paused ⇄ active → ended
var programTransitions = map[ProgramStatus][]ProgramStatus{
	ProgramStatusDraft:     {ProgramStatusSubmitted},
	ProgramStatusSubmitted: {ProgramStatusActive},
	ProgramStatusActive:    {ProgramStatusPaused, ProgramStatusEnded},
	ProgramStatusPaused:    {ProgramStatusActive, ProgramStatusEnded},
	ProgramStatusEnded:     {},
}

// ProgramRules holds the earn constraints a business configured for its program.
type ProgramRules struct {
	Type            ProgramType
	RewardThreshold int
	EarnMode        EarnMode
	EarnIncrement   int
	MaxEarnsPerDay  int // 0 = uncapped, only when AllowUncapped was set
	AllowUncapped   bool
	MinGapMinutes   int
	Timezone        string // IANA zone name, e.g. "Europe/London"
}

// Validate checks rule sanity at program creation/update time.
func (r ProgramRules) Validate() error {
	if r.Type != ProgramTypeStamps && r.Type != ProgramTypePoints {
		return domain.ErrInvalidArgument
	}
	if r.EarnMode != EarnModePerVisit && r.EarnMode != EarnModePerTransaction {
		return domain.ErrInvalidArgument
	}
	if r.RewardThreshold <= 0 {
		return domain.ErrInvalidArgument
	}
	if r.EarnIncrement <= 0 {
		return domain.ErrInvalidArgument
	}
	if r.MinGapMinutes < 0 {
		return domain.ErrInvalidArgument
	}
	if r.MaxEarnsPerDay < 0 {
		return domain.ErrInvalidArgument
	}
	if r.MaxEarnsPerDay == 0 && !r.AllowUncapped {
		return domain.ErrInvalidArgument
	}
	if _, err := time.LoadLocation(r.Timezone); err != nil {
		return domain.ErrInvalidArgument
	}
	return nil
}

// Location resolves the program's IANA timezone. Rules are validated on
// write, so a stored program always resolves; UTC is the lame-duck fallback
// for rows that predate validation.
func (r ProgramRules) Location() *time.Location {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Branding carries the display fields supplied by the design-approval
// workflow. The engine reads them, never writes them.
type Branding struct {
	RewardDescription string
	StampLabel        string
	IconRef           string
}

// PassCredentials are the opaque identifiers needed to push field updates to
// a customer's digital pass. The engine only checks their presence.
type PassCredentials struct {
	TemplateID string
	APIKey     string
	PassTypeID string
}

func (c PassCredentials) Complete() bool {
	return c.TemplateID != "" && c.APIKey != "" && c.PassTypeID != ""
}

// Program is one business's configured loyalty offering.
type Program struct {
	ID         string // public short code, shareable
	BusinessID string
	Rules      ProgramRules
	Tokens     TokenSet
	Branding   Branding
	PassCreds  PassCredentials
	Status     ProgramStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewProgram constructs a draft program after validating its rules.
func NewProgram(id, businessID string, rules ProgramRules, branding Branding) (*Program, error) {
	if id == "" || businessID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	return &Program{
		ID:         id,
		BusinessID: businessID,
		Rules:      rules,
		Tokens:     NewTokenSet(),
		Branding:   branding,
		Status:     ProgramStatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// CanEarn reports whether the program accepts earn/redeem operations.
// Only the exact "active" state qualifies; submitted, paused and ended all
// surface the same ErrProgramNotActive to keep the earn path simple.
func (p *Program) CanEarn() bool {
	return p.Status == ProgramStatusActive
}

// Transition moves the program to the requested lifecycle state, rejecting
// anything outside the legal edges.
func (p *Program) Transition(to ProgramStatus) error {
	for _, next := range programTransitions[p.Status] {
		if next == to {
			p.Status = to
			p.UpdatedAt = time.Now()
			return nil
		}
	}
	return domain.ErrInvalidTransition
}

// Today returns the current calendar date string (YYYY-MM-DD) in the
// program's timezone. This is the day the business operates in, not the
// server's wall-clock date.
func (p *Program) Today(now time.Time) string {
	return now.In(p.Rules.Location()).Format("2006-01-02")
}

// NextMidnight returns the start of the next calendar day in the program's
// timezone, used as nextEligibleAt when the daily cap is hit.
func (p *Program) NextMidnight(now time.Time) time.Time {
	loc := p.Rules.Location()
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
}
