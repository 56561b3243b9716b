package repository

import (
	"context"

	"loyalty-core/internal/domain/model"
)

// ProgramRepository is the port for loyalty program configuration.
type ProgramRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Program) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Program, error)
	ListByBusiness(ctx context.Context, tx Tx, businessID string) ([]*model.Program, error)

	// CountByStatus feeds the program status gauge.
	CountByStatus(ctx context.Context, tx Tx) (map[model.ProgramStatus]int, error)
}
