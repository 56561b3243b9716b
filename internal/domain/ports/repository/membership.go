package repository

import (
	"context"

	"loyalty-core/internal/domain/model"
)

// MembershipRepository is the port for per-(program, customer) balance rows.
type MembershipRepository interface {
	Save(ctx context.Context, tx Tx, m *model.Membership) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Membership, error)
	FindByProgramAndPass(ctx context.Context, tx Tx, programID, customerPassID string) (*model.Membership, error)
	ListByProgram(ctx context.Context, tx Tx, programID string, offset, limit int) ([]*model.Membership, error)
}
