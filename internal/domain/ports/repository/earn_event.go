package repository

import (
	"context"

	"loyalty-core/internal/domain/model"
)

// EarnEventRepository is the port for the append-only scan audit ledger.
// There is deliberately no update or delete.
type EarnEventRepository interface {
	Append(ctx context.Context, tx Tx, e *model.EarnEvent) error
	ListByMembership(ctx context.Context, tx Tx, membershipID string, offset, limit int) ([]*model.EarnEvent, error)
	ListInvalidByProgram(ctx context.Context, tx Tx, programID string, offset, limit int) ([]*model.EarnEvent, error)
}
