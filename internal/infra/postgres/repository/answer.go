package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/idanlevi/theory-exam/internal/domain/entities"
	"github.com/idanlevi/theory-exam/internal/infra/postgres"
)

// AnswerRepository provides access to persisted answer records.
type AnswerRepository struct {
	db postgres.DBTX
}

// NewAnswerRepository creates a new AnswerRepository with the provided database pool.
func NewAnswerRepository(db postgres.DBTX) *AnswerRepository {
	return &AnswerRepository{db: db}
}

// SaveBatch inserts all answer records of a session in a single batch
// round trip. Run it inside a transaction so a partial write never
// becomes visible.
func (r *AnswerRepository) SaveBatch(ctx context.Context, answers []*entities.AnswerRecord) error {
	if len(answers) == 0 {
		return nil
	}

	query := `
		INSERT INTO user_answers (
			id, session_id, question_id, user_answer, correct_answer,
			is_correct, time_spent_seconds, answered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	batch := &pgx.Batch{}
	for _, answer := range answers {
		batch.Queue(
			query,
			answer.ID,
			answer.SessionID,
			answer.QuestionID,
			answer.Submitted,
			answer.Correct,
			answer.IsCorrect,
			answer.TimeSpentSeconds,
			answer.AnsweredAt,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for range answers {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert answer record: %w", err)
		}
	}

	return nil
}

// ListIncorrectQuestionIDs returns the ids of questions the user most
// recently answered incorrectly, feeding the errors-review exam.
func (r *AnswerRepository) ListIncorrectQuestionIDs(ctx context.Context, userID uuid.UUID, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT ua.question_id
		FROM user_answers ua
		JOIN exam_sessions es ON es.id = ua.session_id
		WHERE es.user_id = $1 AND NOT ua.is_correct
		GROUP BY ua.question_id
		ORDER BY MAX(ua.answered_at) DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list incorrect question ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan question id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate question ids: %w", err)
	}

	return ids, nil
}

// DeleteBySession removes all answer records of a session.
func (r *AnswerRepository) DeleteBySession(ctx context.Context, sessionID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM user_answers WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("delete answer records: %w", err)
	}
	return nil
}
