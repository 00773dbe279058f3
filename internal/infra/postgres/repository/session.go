package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/idanlevi/theory-exam/internal/domain/entities"
	"github.com/idanlevi/theory-exam/internal/infra/postgres"
)

var ErrSessionNotFound = errors.New("exam session not found")

// SessionRepository provides access to exam session rows.
type SessionRepository struct {
	db postgres.DBTX
}

// NewSessionRepository creates a new SessionRepository with the provided database pool.
func NewSessionRepository(db postgres.DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a session row at exam start.
func (r *SessionRepository) Create(ctx context.Context, session *entities.ExamSession) error {
	query := `
		INSERT INTO exam_sessions (
			id, user_id, exam_type, total_questions, time_limit_seconds,
			status, started_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(
		ctx,
		query,
		session.ID,
		session.UserID,
		session.Type,
		session.TotalQuestions,
		session.TimeLimitSeconds,
		session.Status,
		session.StartedAt,
		session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create exam session: %w", err)
	}

	return nil
}

// Finalize writes the terminal fields of a completed session.
func (r *SessionRepository) Finalize(ctx context.Context, session *entities.ExamSession) error {
	query := `
		UPDATE exam_sessions
		SET status = $1,
		    ended_at = $2,
		    score = $3,
		    passed = $4,
		    time_spent_seconds = $5
		WHERE id = $6
	`

	result, err := r.db.Exec(
		ctx,
		query,
		session.Status,
		session.EndedAt,
		session.Score,
		session.Passed,
		session.TimeSpentSeconds,
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("finalize exam session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// GetByID retrieves a session row.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.ExamSession, error) {
	query := `
		SELECT id, user_id, exam_type, total_questions, time_limit_seconds,
		       status, started_at, ended_at, score, passed, time_spent_seconds, created_at
		FROM exam_sessions
		WHERE id = $1
	`

	var session entities.ExamSession
	err := r.db.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.Type,
		&session.TotalQuestions,
		&session.TimeLimitSeconds,
		&session.Status,
		&session.StartedAt,
		&session.EndedAt,
		&session.Score,
		&session.Passed,
		&session.TimeSpentSeconds,
		&session.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get exam session: %w", err)
	}

	return &session, nil
}

// ListByUser retrieves a user's completed sessions, most recent first.
// Abandoned attempts keep a null ended_at and are excluded.
func (r *SessionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*entities.ExamSession, error) {
	query := `
		SELECT id, user_id, exam_type, total_questions, time_limit_seconds,
		       status, started_at, ended_at, score, passed, time_spent_seconds, created_at
		FROM exam_sessions
		WHERE user_id = $1 AND ended_at IS NOT NULL
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list exam sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*entities.ExamSession
	for rows.Next() {
		var session entities.ExamSession
		err := rows.Scan(
			&session.ID,
			&session.UserID,
			&session.Type,
			&session.TotalQuestions,
			&session.TimeLimitSeconds,
			&session.Status,
			&session.StartedAt,
			&session.EndedAt,
			&session.Score,
			&session.Passed,
			&session.TimeSpentSeconds,
			&session.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan exam session: %w", err)
		}
		sessions = append(sessions, &session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exam sessions: %w", err)
	}

	return sessions, nil
}

// SummaryByUser aggregates a user's completed exams.
func (r *SessionRepository) SummaryByUser(ctx context.Context, userID uuid.UUID) (*entities.UserSummary, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE passed),
		       COALESCE(AVG(score), 0)
		FROM exam_sessions
		WHERE user_id = $1 AND status = 'completed'
	`

	var summary entities.UserSummary
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&summary.TotalExams,
		&summary.PassedExams,
		&summary.AverageScore,
	)
	if err != nil {
		return nil, fmt.Errorf("summarize exam sessions: %w", err)
	}

	return &summary, nil
}

// Delete removes a session row owned by the user.
func (r *SessionRepository) Delete(ctx context.Context, sessionID, userID uuid.UUID) error {
	query := `DELETE FROM exam_sessions WHERE id = $1 AND user_id = $2`

	result, err := r.db.Exec(ctx, query, sessionID, userID)
	if err != nil {
		return fmt.Errorf("delete exam session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrSessionNotFound
	}

	return nil
}
