//go:build !integration

package model

import (
	"errors"
	"testing"
	"time"

	"loyalty-core/internal/domain"
)

func testRules() ProgramRules {
	return ProgramRules{
		Type:            ProgramTypeStamps,
		RewardThreshold: 10,
		EarnMode:        EarnModePerVisit,
		EarnIncrement:   1,
		MaxEarnsPerDay:  1,
		MinGapMinutes:   0,
		Timezone:        "Europe/London",
	}
}

// --- Program Tests ---

func TestNewProgram(t *testing.T) {
	t.Run("should create a draft program with a counter token", func(t *testing.T) {
		p, err := NewProgram("ABCD-1234", "biz-1", testRules(), Branding{RewardDescription: "Free coffee"})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if p.Status != ProgramStatusDraft {
			t.Errorf("expected status draft, got %s", p.Status)
		}
		if p.Tokens.Current == "" {
			t.Error("expected a freshly minted counter token")
		}
		if p.Tokens.Previous != "" || p.Tokens.RotatedAt != nil {
			t.Error("expected no previous token before first rotation")
		}
	})

	t.Run("should reject empty identifiers", func(t *testing.T) {
		if _, err := NewProgram("", "biz-1", testRules(), Branding{}); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should reject an unknown timezone", func(t *testing.T) {
		r := testRules()
		r.Timezone = "Mars/Olympus_Mons"
		if _, err := NewProgram("ABCD-1234", "biz-1", r, Branding{}); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should reject uncapped days without explicit opt-in", func(t *testing.T) {
		r := testRules()
		r.MaxEarnsPerDay = 0
		if err := r.Validate(); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		r.AllowUncapped = true
		if err := r.Validate(); err != nil {
			t.Errorf("expected uncapped rules to validate with opt-in, got %v", err)
		}
	})
}

func TestProgramTransition(t *testing.T) {
	t.Run("walks the full lifecycle", func(t *testing.T) {
		p, _ := NewProgram("ABCD-1234", "biz-1", testRules(), Branding{})
		steps := []ProgramStatus{ProgramStatusSubmitted, ProgramStatusActive, ProgramStatusPaused, ProgramStatusActive, ProgramStatusEnded}
		for _, s := range steps {
			if err := p.Transition(s); err != nil {
				t.Fatalf("transition to %s: %v", s, err)
			}
		}
	})

	t.Run("rejects skipping approval", func(t *testing.T) {
		p, _ := NewProgram("ABCD-1234", "biz-1", testRules(), Branding{})
		if err := p.Transition(ProgramStatusActive); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("ended is terminal", func(t *testing.T) {
		p, _ := NewProgram("ABCD-1234", "biz-1", testRules(), Branding{})
		p.Status = ProgramStatusEnded
		if err := p.Transition(ProgramStatusActive); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("only active can earn", func(t *testing.T) {
		p, _ := NewProgram("ABCD-1234", "biz-1", testRules(), Branding{})
		for _, s := range []ProgramStatus{ProgramStatusDraft, ProgramStatusSubmitted, ProgramStatusPaused, ProgramStatusEnded} {
			p.Status = s
			if p.CanEarn() {
				t.Errorf("status %s must not earn", s)
			}
		}
		p.Status = ProgramStatusActive
		if !p.CanEarn() {
			t.Error("active program must earn")
		}
	})
}

// --- Token Tests ---

func TestTokenSetIsValid(t *testing.T) {
	now := time.Now()

	t.Run("current token is always valid", func(t *testing.T) {
		ts := NewTokenSet()
		if !ts.IsValid(ts.Current, now) {
			t.Error("expected current token to validate")
		}
		if !ts.IsValid(ts.Current, now.Add(100*time.Hour)) {
			t.Error("current token must not expire")
		}
	})

	t.Run("previous token honored within the grace window only", func(t *testing.T) {
		ts := NewTokenSet()
		old := ts.Current
		rotated := ts.Rotate(now)

		if rotated.Current == old {
			t.Fatal("rotation must mint a fresh token")
		}
		if !rotated.IsValid(old, now.Add(29*time.Minute)) {
			t.Error("old token at T+29min should succeed")
		}
		if rotated.IsValid(old, now.Add(31*time.Minute)) {
			t.Error("old token at T+31min should fail")
		}
	})

	t.Run("second rotation discards the oldest token", func(t *testing.T) {
		ts := NewTokenSet()
		first := ts.Current
		once := ts.Rotate(now)
		twice := once.Rotate(now.Add(5 * time.Minute))

		if twice.IsValid(first, now.Add(6*time.Minute)) {
			t.Error("token before previous must be rejected")
		}
		if !twice.IsValid(once.Current, now.Add(6*time.Minute)) {
			t.Error("previous token from second rotation should still be honored")
		}
	})

	t.Run("empty and unknown tokens rejected", func(t *testing.T) {
		ts := NewTokenSet()
		if ts.IsValid("", now) || ts.IsValid("not-a-token", now) {
			t.Error("expected rejection")
		}
	})
}

// --- Membership Tests ---

func TestMembershipDailyReset(t *testing.T) {
	m, err := NewMembership("ABCD-1234", "pass-1")
	if err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}

	m.EarnedTodayCount = 3
	m.EarnedTodayDate = "2026-08-30"

	t.Run("same stored date keeps the counter", func(t *testing.T) {
		if got := m.EffectiveTodayCount("2026-08-30"); got != 3 {
			t.Errorf("expected 3, got %d", got)
		}
	})

	t.Run("different stored date reads as zero", func(t *testing.T) {
		if got := m.EffectiveTodayCount("2026-08-31"); got != 0 {
			t.Errorf("expected 0, got %d", got)
		}
	})
}

func TestMembershipApplyEarn(t *testing.T) {
	now := time.Now()
	m, _ := NewMembership("ABCD-1234", "pass-1")
	m.EarnedTodayCount = 2
	m.EarnedTodayDate = "2026-08-30"

	m.ApplyEarn(ProgramTypeStamps, 1, "2026-08-31", now)

	if m.StampsBalance != 1 || m.TotalEarned != 1 {
		t.Errorf("expected balance/total 1/1, got %d/%d", m.StampsBalance, m.TotalEarned)
	}
	if m.EarnedTodayCount != 1 {
		t.Errorf("expected counter reset to 1 on new day, got %d", m.EarnedTodayCount)
	}
	if m.EarnedTodayDate != "2026-08-31" {
		t.Errorf("expected stored date advanced, got %s", m.EarnedTodayDate)
	}
	if m.LastEarnedAt == nil || !m.LastEarnedAt.Equal(now) {
		t.Error("expected LastEarnedAt stamped")
	}

	m.ApplyEarn(ProgramTypePoints, 5, "2026-08-31", now)
	if m.PointsBalance != 5 {
		t.Errorf("expected points balance 5, got %d", m.PointsBalance)
	}
	if m.EarnedTodayCount != 2 {
		t.Errorf("expected counter 2 on same day, got %d", m.EarnedTodayCount)
	}
}

func TestMembershipApplyRedeem(t *testing.T) {
	now := time.Now()

	t.Run("keeps excess balance", func(t *testing.T) {
		m, _ := NewMembership("ABCD-1234", "pass-1")
		m.StampsBalance = 12
		deducted, err := m.ApplyRedeem(ProgramTypeStamps, 10, now)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if deducted != 10 {
			t.Errorf("expected 10 deducted, got %d", deducted)
		}
		if m.StampsBalance != 2 {
			t.Errorf("expected carry-over of 2, got %d", m.StampsBalance)
		}
		if m.TotalRedeemed != 10 {
			t.Errorf("expected TotalRedeemed 10, got %d", m.TotalRedeemed)
		}
	})

	t.Run("rejects below threshold", func(t *testing.T) {
		m, _ := NewMembership("ABCD-1234", "pass-1")
		m.StampsBalance = 9
		if _, err := m.ApplyRedeem(ProgramTypeStamps, 10, now); !errors.Is(err, domain.ErrInsufficientBalance) {
			t.Errorf("expected ErrInsufficientBalance, got %v", err)
		}
		if m.StampsBalance != 9 || m.TotalRedeemed != 0 {
			t.Error("rejected redeem must not mutate balances")
		}
	})
}

// --- Redemption Tests ---

func TestRedemptionDisplayExpiry(t *testing.T) {
	now := time.Now()
	p, _ := NewProgram("ABCD-1234", "biz-1", testRules(), Branding{})
	r := NewRedemption("mem-1", p, 10, now)

	if r.Status != RedemptionStatusConsumed {
		t.Fatalf("expected consumed, got %s", r.Status)
	}
	if !r.DisplayExpiresAt.Equal(now.Add(10 * time.Minute)) {
		t.Errorf("expected display window of 10 minutes")
	}
	if !r.IsDisplayActive(now.Add(9 * time.Minute)) {
		t.Error("expected display active inside the window")
	}

	if changed := r.ObserveAt(now.Add(11 * time.Minute)); !changed {
		t.Error("expected lazy expiry to fire at T+11min")
	}
	if r.Status != RedemptionStatusExpiredDisplay {
		t.Errorf("expected expired_display, got %s", r.Status)
	}
	if r.IsDisplayActive(now.Add(11 * time.Minute)) {
		t.Error("expected display inactive after the window")
	}
	if changed := r.ObserveAt(now.Add(12 * time.Minute)); changed {
		t.Error("expired_display is terminal, no further change expected")
	}
}

func TestRedemptionFlag(t *testing.T) {
	now := time.Now()
	p, _ := NewProgram("ABCD-1234", "biz-1", testRules(), Branding{})
	r := NewRedemption("mem-1", p, 10, now)

	r.Flag("duplicate receipt", now)
	if r.FlaggedAt == nil || r.FlaggedReason != "duplicate receipt" {
		t.Error("expected fraud flag recorded")
	}
	if r.StampsDeducted != 10 {
		t.Error("flagging must not alter the deduction")
	}
}

// --- Proximity Tests ---

func TestProximityMessage(t *testing.T) {
	cases := []struct {
		name      string
		balance   int
		threshold int
		want      string
	}{
		{"reward reached", 10, 10, "Reward available!"},
		{"reward exceeded", 12, 10, "Reward available!"},
		{"one remaining", 9, 10, "Just 1 more visit!"},
		{"two remaining", 8, 10, "Only 2 more to go!"},
		{"three remaining", 7, 10, "Almost there — 3 more!"},
		{"exactly halfway with remaining over three", 5, 10, "You're over halfway!"},
		{"over halfway", 11, 20, "You're over halfway!"},
		{"early days", 2, 10, ""},
		{"zero balance", 0, 10, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ProximityMessage(tc.balance, tc.threshold); got != tc.want {
				t.Errorf("ProximityMessage(%d, %d) = %q, want %q", tc.balance, tc.threshold, got, tc.want)
			}
		})
	}
}

// --- Pass Field Tests ---

func TestPassFieldValues(t *testing.T) {
	p, _ := NewProgram("ABCD-1234", "biz-1", testRules(), Branding{
		RewardDescription: "Free coffee",
		StampLabel:        "coffees",
	})

	fields := PassFieldValues(7, p)
	if fields["Points"] != "7" {
		t.Errorf("expected Points 7, got %s", fields["Points"])
	}
	if fields["Threshold"] != "10" {
		t.Errorf("expected Threshold 10, got %s", fields["Threshold"])
	}
	if fields["Status"] != "7/10 coffees" {
		t.Errorf("unexpected Status field: %s", fields["Status"])
	}
	if fields["Reward"] != "Free coffee" {
		t.Errorf("unexpected Reward field: %s", fields["Reward"])
	}
}

// --- Timezone day arithmetic ---

func TestProgramToday(t *testing.T) {
	p, _ := NewProgram("ABCD-1234", "biz-1", testRules(), Branding{})

	// 23:30 UTC on Jun 1 is 00:30 Jun 2 in London (BST).
	utc := time.Date(2026, 6, 1, 23, 30, 0, 0, time.UTC)
	if got := p.Today(utc); got != "2026-06-02" {
		t.Errorf("expected business-local date 2026-06-02, got %s", got)
	}

	next := p.NextMidnight(utc)
	london, _ := time.LoadLocation("Europe/London")
	want := time.Date(2026, 6, 3, 0, 0, 0, 0, london)
	if !next.Equal(want) {
		t.Errorf("expected next midnight %v, got %v", want, next)
	}
}
