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

// Ensure programRepo implements repository.ProgramRepository
var _ repository.ProgramRepository = (*programRepo)(nil)

type programRepo struct {
	pool *pgxpool.Pool
}

func NewProgramRepo(pool *pgxpool.Pool) *programRepo {
	return &programRepo{pool: pool}
}

const programColumns = `
  id, business_id, type, reward_threshold, earn_mode, earn_increment,
  max_earns_per_day, allow_uncapped, min_gap_minutes, timezone,
  counter_qr_token, previous_counter_qr_token, token_rotated_at,
  reward_description, stamp_label, icon_ref,
  pass_template_id, pass_api_key, pass_type_id,
  status, created_at, updated_at`

func (r *programRepo) Save(ctx context.Context, tx repository.Tx, p *model.Program) error {
	const q = `
INSERT INTO programs (
  id, business_id, type, reward_threshold, earn_mode, earn_increment,
  max_earns_per_day, allow_uncapped, min_gap_minutes, timezone,
  counter_qr_token, previous_counter_qr_token, token_rotated_at,
  reward_description, stamp_label, icon_ref,
  pass_template_id, pass_api_key, pass_type_id,
  status, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
ON CONFLICT (id) DO UPDATE SET
  type=$3, reward_threshold=$4, earn_mode=$5, earn_increment=$6,
  max_earns_per_day=$7, allow_uncapped=$8, min_gap_minutes=$9, timezone=$10,
  counter_qr_token=$11, previous_counter_qr_token=$12, token_rotated_at=$13,
  reward_description=$14, stamp_label=$15, icon_ref=$16,
  pass_template_id=$17, pass_api_key=$18, pass_type_id=$19,
  status=$20, updated_at=$22;`

	var prev *string
	if p.Tokens.Previous != "" {
		prev = &p.Tokens.Previous
	}
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.BusinessID, p.Rules.Type, p.Rules.RewardThreshold, p.Rules.EarnMode, p.Rules.EarnIncrement,
		p.Rules.MaxEarnsPerDay, p.Rules.AllowUncapped, p.Rules.MinGapMinutes, p.Rules.Timezone,
		p.Tokens.Current, prev, p.Tokens.RotatedAt,
		p.Branding.RewardDescription, p.Branding.StampLabel, p.Branding.IconRef,
		p.PassCreds.TemplateID, p.PassCreds.APIKey, p.PassCreds.PassTypeID,
		p.Status, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// public id collision, caller regenerates and retries
			return domain.ErrAlreadyExists
		}
		return mapExecErr(err)
	}
	return nil
}

func (r *programRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Program, error) {
	const q = `SELECT` + programColumns + ` FROM programs WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanProgram(row)
}

func (r *programRepo) ListByBusiness(ctx context.Context, tx repository.Tx, businessID string) ([]*model.Program, error) {
	const q = `SELECT` + programColumns + ` FROM programs WHERE business_id=$1 ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, businessID)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()
	var out []*model.Program
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *programRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.ProgramStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM programs GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()
	out := make(map[model.ProgramStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[model.ProgramStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanProgram(row pgx.Row) (*model.Program, error) {
	var p model.Program
	var prev *string
	var rotatedAt *time.Time
	err := row.Scan(
		&p.ID, &p.BusinessID, &p.Rules.Type, &p.Rules.RewardThreshold, &p.Rules.EarnMode, &p.Rules.EarnIncrement,
		&p.Rules.MaxEarnsPerDay, &p.Rules.AllowUncapped, &p.Rules.MinGapMinutes, &p.Rules.Timezone,
		&p.Tokens.Current, &prev, &rotatedAt,
		&p.Branding.RewardDescription, &p.Branding.StampLabel, &p.Branding.IconRef,
		&p.PassCreds.TemplateID, &p.PassCreds.APIKey, &p.PassCreds.PassTypeID,
		&p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if prev != nil {
		p.Tokens.Previous = *prev
	}
	p.Tokens.RotatedAt = rotatedAt
	return &p, nil
}
