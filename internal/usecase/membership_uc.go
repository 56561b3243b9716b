// File: internal/usecase/membership_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"loyalty-core/internal/domain"
	"loyalty-core/internal/domain/model"
	"loyalty-core/internal/domain/ports/repository"
)

// MembershipView pairs a membership with its program-type balance for staff
// screens.
type MembershipView struct {
	Membership       *model.Membership `json:"membership"`
	Balance          int               `json:"balance"`
	Threshold        int               `json:"threshold"`
	ProximityMessage string            `json:"proximity_message,omitempty"`
}

// MembershipUseCase is the read side for staff dashboards; mutation goes
// through the earn and redemption use cases only.
type MembershipUseCase struct {
	programs repository.ProgramRepository
	members  repository.MembershipRepository
	log      *zerolog.Logger
}

func NewMembershipUseCase(programs repository.ProgramRepository, members repository.MembershipRepository, logger *zerolog.Logger) *MembershipUseCase {
	ucLog := logger.With().Str("component", "MembershipUC").Logger()
	return &MembershipUseCase{programs: programs, members: members, log: &ucLog}
}

// Get resolves one membership with its current standing.
func (uc *MembershipUseCase) Get(ctx context.Context, membershipID string) (*MembershipView, error) {
	m, err := uc.members.FindByID(ctx, repository.NoTX, membershipID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrMembershipNotFound
	}
	if err != nil {
		return nil, err
	}
	p, err := uc.programs.FindByID(ctx, repository.NoTX, m.ProgramID)
	if err != nil {
		return nil, err
	}
	balance := m.Balance(p.Rules.Type)
	return &MembershipView{
		Membership:       m,
		Balance:          balance,
		Threshold:        p.Rules.RewardThreshold,
		ProximityMessage: model.ProximityMessage(balance, p.Rules.RewardThreshold),
	}, nil
}

// ListByProgram pages through a program's memberships.
func (uc *MembershipUseCase) ListByProgram(ctx context.Context, programID string, offset, limit int) ([]*model.Membership, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return uc.members.ListByProgram(ctx, repository.NoTX, programID, offset, limit)
}
