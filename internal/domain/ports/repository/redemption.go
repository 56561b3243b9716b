package repository

import (
	"context"
	"time"

	"loyalty-core/internal/domain/model"
)

// RedemptionRepository is the port for consumed reward records.
type RedemptionRepository interface {
	Save(ctx context.Context, tx Tx, r *model.Redemption) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Redemption, error)
	ListByMembership(ctx context.Context, tx Tx, membershipID string) ([]*model.Redemption, error)

	// ExpireDisplayBefore marks consumed redemptions whose display window
	// lapsed before cutoff. Cosmetic state only; used by the sweeper.
	ExpireDisplayBefore(ctx context.Context, tx Tx, cutoff time.Time) (int, error)
}
