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

// Ensure membershipRepo implements repository.MembershipRepository
var _ repository.MembershipRepository = (*membershipRepo)(nil)

type membershipRepo struct {
	pool *pgxpool.Pool
}

func NewMembershipRepo(pool *pgxpool.Pool) *membershipRepo {
	return &membershipRepo{pool: pool}
}

const membershipColumns = `
  id, program_id, customer_pass_id,
  stamps_balance, points_balance, total_earned, total_redeemed,
  earned_today_count, earned_today_date, last_earned_at,
  status, created_at, updated_at`

func (r *membershipRepo) Save(ctx context.Context, tx repository.Tx, m *model.Membership) error {
	const q = `
INSERT INTO memberships (
  id, program_id, customer_pass_id,
  stamps_balance, points_balance, total_earned, total_redeemed,
  earned_today_count, earned_today_date, last_earned_at,
  status, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO UPDATE SET
  stamps_balance=$4, points_balance=$5, total_earned=$6, total_redeemed=$7,
  earned_today_count=$8, earned_today_date=$9, last_earned_at=$10,
  status=$11, updated_at=$13;`

	_, err := execSQL(ctx, r.pool, tx, q,
		m.ID, m.ProgramID, m.CustomerPassID,
		m.StampsBalance, m.PointsBalance, m.TotalEarned, m.TotalRedeemed,
		m.EarnedTodayCount, m.EarnedTodayDate, m.LastEarnedAt,
		m.Status, m.CreatedAt, m.UpdatedAt,
	)
	return mapExecErr(err)
}

func (r *membershipRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Membership, error) {
	const q = `SELECT` + membershipColumns + ` FROM memberships WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanMembership(row)
}

func (r *membershipRepo) FindByProgramAndPass(ctx context.Context, tx repository.Tx, programID, customerPassID string) (*model.Membership, error) {
	const q = `SELECT` + membershipColumns + ` FROM memberships WHERE program_id=$1 AND customer_pass_id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, programID, customerPassID)
	if err != nil {
		return nil, err
	}
	return scanMembership(row)
}

func (r *membershipRepo) ListByProgram(ctx context.Context, tx repository.Tx, programID string, offset, limit int) ([]*model.Membership, error) {
	const q = `SELECT` + membershipColumns + ` FROM memberships WHERE program_id=$1 ORDER BY created_at ASC OFFSET $2 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, programID, offset, limit)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()
	var out []*model.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanMembership(row pgx.Row) (*model.Membership, error) {
	var m model.Membership
	err := row.Scan(
		&m.ID, &m.ProgramID, &m.CustomerPassID,
		&m.StampsBalance, &m.PointsBalance, &m.TotalEarned, &m.TotalRedeemed,
		&m.EarnedTodayCount, &m.EarnedTodayDate, &m.LastEarnedAt,
		&m.Status, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &m, nil
}
