package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"loyalty-core/internal/domain"
	"loyalty-core/internal/domain/model"
	"loyalty-core/internal/domain/ports/repository"
)

// Ensure redemptionRepo implements repository.RedemptionRepository
var _ repository.RedemptionRepository = (*redemptionRepo)(nil)

type redemptionRepo struct {
	pool *pgxpool.Pool
}

func NewRedemptionRepo(pool *pgxpool.Pool) *redemptionRepo {
	return &redemptionRepo{pool: pool}
}

const redemptionColumns = `
  id, membership_id, program_id, business_id, stamps_deducted,
  status, consumed_at, display_expires_at, flagged_at, flagged_reason`

func (r *redemptionRepo) Save(ctx context.Context, tx repository.Tx, rd *model.Redemption) error {
	const q = `
INSERT INTO redemptions (
  id, membership_id, program_id, business_id, stamps_deducted,
  status, consumed_at, display_expires_at, flagged_at, flagged_reason
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
  status=$6, flagged_at=$9, flagged_reason=$10;`

	_, err := execSQL(ctx, r.pool, tx, q,
		rd.ID, rd.MembershipID, rd.ProgramID, rd.BusinessID, rd.StampsDeducted,
		rd.Status, rd.ConsumedAt, rd.DisplayExpiresAt, rd.FlaggedAt, rd.FlaggedReason,
	)
	return mapExecErr(err)
}

func (r *redemptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Redemption, error) {
	const q = `SELECT` + redemptionColumns + ` FROM redemptions WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanRedemption(row)
}

func (r *redemptionRepo) ListByMembership(ctx context.Context, tx repository.Tx, membershipID string) ([]*model.Redemption, error) {
	const q = `SELECT` + redemptionColumns + ` FROM redemptions WHERE membership_id=$1 ORDER BY consumed_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, membershipID)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()
	var out []*model.Redemption
	for rows.Next() {
		rd, err := scanRedemption(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *redemptionRepo) ExpireDisplayBefore(ctx context.Context, tx repository.Tx, cutoff time.Time) (int, error) {
	const q = `
UPDATE redemptions
   SET status='expired_display'
 WHERE status='consumed' AND display_expires_at <= $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, cutoff)
	if err != nil {
		return 0, mapExecErr(err)
	}
	return int(tag.RowsAffected()), nil
}

func scanRedemption(row pgx.Row) (*model.Redemption, error) {
	var rd model.Redemption
	var flaggedReason *string
	err := row.Scan(
		&rd.ID, &rd.MembershipID, &rd.ProgramID, &rd.BusinessID, &rd.StampsDeducted,
		&rd.Status, &rd.ConsumedAt, &rd.DisplayExpiresAt, &rd.FlaggedAt, &flaggedReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if flaggedReason != nil {
		rd.FlaggedReason = *flaggedReason
	}
	return &rd, nil
}
