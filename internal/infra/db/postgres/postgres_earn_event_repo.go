package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"loyalty-core/internal/domain"
	"loyalty-core/internal/domain/model"
	"loyalty-core/internal/domain/ports/repository"
)

// Ensure earnEventRepo implements repository.EarnEventRepository
var _ repository.EarnEventRepository = (*earnEventRepo)(nil)

// earnEventRepo is append-only: rows are inserted once and never updated or
// deleted. The ledger is the anti-fraud audit trail.
type earnEventRepo struct {
	pool *pgxpool.Pool
}

func NewEarnEventRepo(pool *pgxpool.Pool) *earnEventRepo {
	return &earnEventRepo{pool: pool}
}

const earnEventColumns = `
  id, program_id, business_id, membership_id, customer_pass_id,
  valid, reason, ip_hash, balance_after, created_at`

func (r *earnEventRepo) Append(ctx context.Context, tx repository.Tx, e *model.EarnEvent) error {
	const q = `
INSERT INTO earn_events (
  id, program_id, business_id, membership_id, customer_pass_id,
  valid, reason, ip_hash, balance_after, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`

	var membershipID *string
	if e.MembershipID != "" {
		membershipID = &e.MembershipID
	}
	_, err := execSQL(ctx, r.pool, tx, q,
		e.ID, e.ProgramID, e.BusinessID, membershipID, e.CustomerPassID,
		e.Valid, e.Reason, e.IPHash, e.BalanceAfter, e.CreatedAt,
	)
	return mapExecErr(err)
}

func (r *earnEventRepo) ListByMembership(ctx context.Context, tx repository.Tx, membershipID string, offset, limit int) ([]*model.EarnEvent, error) {
	const q = `SELECT` + earnEventColumns + ` FROM earn_events WHERE membership_id=$1 ORDER BY id DESC OFFSET $2 LIMIT $3;`
	return r.list(ctx, tx, q, membershipID, offset, limit)
}

func (r *earnEventRepo) ListInvalidByProgram(ctx context.Context, tx repository.Tx, programID string, offset, limit int) ([]*model.EarnEvent, error) {
	const q = `SELECT` + earnEventColumns + ` FROM earn_events WHERE program_id=$1 AND valid=FALSE ORDER BY id DESC OFFSET $2 LIMIT $3;`
	return r.list(ctx, tx, q, programID, offset, limit)
}

func (r *earnEventRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.EarnEvent, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()
	var out []*model.EarnEvent
	for rows.Next() {
		e, err := scanEarnEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanEarnEvent(row pgx.Row) (*model.EarnEvent, error) {
	var e model.EarnEvent
	var membershipID *string
	err := row.Scan(
		&e.ID, &e.ProgramID, &e.BusinessID, &membershipID, &e.CustomerPassID,
		&e.Valid, &e.Reason, &e.IPHash, &e.BalanceAfter, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if membershipID != nil {
		e.MembershipID = *membershipID
	}
	return &e, nil
}
