package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/idanlevi/theory-exam/internal/domain/entities"
)

// QuestionRepository provides read access to the question bank.
type QuestionRepository interface {
	ListByChapter(ctx context.Context, chapter int, limit int) ([]*entities.Question, error)
	ListAll(ctx context.Context) ([]*entities.Question, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*entities.Question, error)
}

// SessionRepository persists exam sessions for authenticated users.
type SessionRepository interface {
	Create(ctx context.Context, session *entities.ExamSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.ExamSession, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*entities.ExamSession, error)
	SummaryByUser(ctx context.Context, userID uuid.UUID) (*entities.UserSummary, error)
}

// AnswerRepository provides read access to persisted answer records.
type AnswerRepository interface {
	ListIncorrectQuestionIDs(ctx context.Context, userID uuid.UUID, limit int) ([]uuid.UUID, error)
}

// ResultStore writes the terminal state of a session. SaveResult must
// commit the answer batch and the session's terminal fields atomically.
type ResultStore interface {
	SaveResult(ctx context.Context, session *entities.ExamSession, answers []*entities.AnswerRecord) error
	DeleteSession(ctx context.Context, sessionID, userID uuid.UUID) error
}
