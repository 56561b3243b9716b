// File: internal/usecase/program_uc.go
package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"loyalty-core/internal/domain"
	"loyalty-core/internal/domain/model"
	"loyalty-core/internal/domain/ports/repository"
	"loyalty-core/internal/infra/logging"
)

// ProgramUseCase owns program configuration: creation, lifecycle
// transitions, and counter token rotation.
type ProgramUseCase struct {
	programs repository.ProgramRepository
	txm      repository.TransactionManager
	log      *zerolog.Logger
}

func NewProgramUseCase(programs repository.ProgramRepository, txm repository.TransactionManager, logger *zerolog.Logger) *ProgramUseCase {
	ucLog := logger.With().Str("component", "ProgramUC").Logger()
	return &ProgramUseCase{programs: programs, txm: txm, log: &ucLog}
}

// Create validates the rules and inserts a draft program under a fresh
// public id. Id collisions are resolved by regenerate-and-retry against the
// unique insert, never by check-then-insert.
func (uc *ProgramUseCase) Create(ctx context.Context, businessID string, rules model.ProgramRules, branding model.Branding) (*model.Program, error) {
	const maxAttempts = 5
	for attempt := 0; attempt < maxAttempts; attempt++ {
		id, err := generateProgramID()
		if err != nil {
			return nil, err
		}
		p, err := model.NewProgram(id, businessID, rules, branding)
		if err != nil {
			return nil, err
		}
		err = uc.programs.Save(ctx, repository.NoTX, p)
		if errors.Is(err, domain.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return nil, err
		}
		uc.log.Info().Str("program_id", p.ID).Str("business_id", businessID).Msg("program created")
		return p, nil
	}
	return nil, domain.ErrOperationFailed
}

// Get resolves a program by its public id.
func (uc *ProgramUseCase) Get(ctx context.Context, programID string) (*model.Program, error) {
	return uc.programs.FindByID(ctx, repository.NoTX, programID)
}

// ListByBusiness returns all programs a business configured.
func (uc *ProgramUseCase) ListByBusiness(ctx context.Context, businessID string) ([]*model.Program, error) {
	return uc.programs.ListByBusiness(ctx, repository.NoTX, businessID)
}

// RotateToken swaps current to previous, stamps the rotation time and mints
// a fresh current token, all in one transaction so there is never a window
// without a consistent token pair. The prior token stays valid for the
// grace window.
func (uc *ProgramUseCase) RotateToken(ctx context.Context, programID string) (string, error) {
	var newToken string
	rotate := func(ctx context.Context, tx repository.Tx) error {
		p, err := uc.programs.FindByID(ctx, tx, programID)
		if err != nil {
			return err
		}
		p.Tokens = p.Tokens.Rotate(time.Now())
		p.UpdatedAt = time.Now()
		if err := uc.programs.Save(ctx, tx, p); err != nil {
			return err
		}
		newToken = p.Tokens.Current
		return nil
	}

	var err error
	if uc.txm != nil {
		err = uc.txm.WithTx(ctx, pgx.TxOptions{}, rotate)
	} else {
		err = rotate(ctx, nil)
	}
	if err != nil {
		return "", err
	}
	logging.With(logging.WithProgramID(ctx, programID), uc.log).Info().Msg("counter token rotated")
	return newToken, nil
}

// Transition moves a program through its lifecycle. Illegal edges are
// rejected by the model.
func (uc *ProgramUseCase) Transition(ctx context.Context, programID string, to model.ProgramStatus) (*model.Program, error) {
	var out *model.Program
	step := func(ctx context.Context, tx repository.Tx) error {
		p, err := uc.programs.FindByID(ctx, tx, programID)
		if err != nil {
			return err
		}
		if err := p.Transition(to); err != nil {
			return err
		}
		if err := uc.programs.Save(ctx, tx, p); err != nil {
			return err
		}
		out = p
		return nil
	}

	var err error
	if uc.txm != nil {
		err = uc.txm.WithTx(ctx, pgx.TxOptions{}, step)
	} else {
		err = step(ctx, nil)
	}
	if err != nil {
		return nil, err
	}
	logging.With(logging.WithProgramID(ctx, programID), uc.log).Info().
		Str("status", string(to)).
		Msg("program transitioned")
	return out, nil
}

// CountByStatus feeds the program status gauge.
func (uc *ProgramUseCase) CountByStatus(ctx context.Context) (map[model.ProgramStatus]int, error) {
	return uc.programs.CountByStatus(ctx, repository.NoTX)
}

// generateProgramID creates a short, human-safe public program id.
// Format: XXXX-XXXX over a character set without ambiguous glyphs.
func generateProgramID() (string, error) {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	const codeLength = 8

	buffer := make([]byte, codeLength)
	if _, err := io.ReadFull(rand.Reader, buffer); err != nil {
		return "", err
	}
	for i := 0; i < codeLength; i++ {
		buffer[i] = chars[int(buffer[i])%len(chars)]
	}
	return string(buffer[0:4]) + "-" + string(buffer[4:8]), nil
}
