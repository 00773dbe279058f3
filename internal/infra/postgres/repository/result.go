package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/idanlevi/theory-exam/internal/domain/entities"
	"github.com/idanlevi/theory-exam/internal/infra/postgres"
)

// ResultRepository commits the terminal state of a session. The answer
// batch and the session update share one transaction, so a reader
// never observes a completed session with a partial answer set.
type ResultRepository struct {
	transactor *postgres.Transactor
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(transactor *postgres.Transactor) *ResultRepository {
	return &ResultRepository{transactor: transactor}
}

// SaveResult persists the answer records and the session's terminal
// fields atomically.
func (r *ResultRepository) SaveResult(ctx context.Context, session *entities.ExamSession, answers []*entities.AnswerRecord) error {
	err := r.transactor.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := NewAnswerRepository(tx).SaveBatch(ctx, answers); err != nil {
			return err
		}
		return NewSessionRepository(tx).Finalize(ctx, session)
	})
	if err != nil {
		return fmt.Errorf("save exam result: %w", err)
	}
	return nil
}

// DeleteSession removes a session and its answers on the owner's
// explicit request.
func (r *ResultRepository) DeleteSession(ctx context.Context, sessionID, userID uuid.UUID) error {
	return r.transactor.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := NewAnswerRepository(tx).DeleteBySession(ctx, sessionID); err != nil {
			return err
		}
		return NewSessionRepository(tx).Delete(ctx, sessionID, userID)
	})
}
