package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/idanlevi/theory-exam/internal/domain/entities"
	"github.com/idanlevi/theory-exam/internal/infra/postgres"
)

const questionColumns = `
	id, question_text, option_a, option_b, option_c, option_d,
	correct_answer, chapter, explanation, image_url, created_at
`

// QuestionRepository provides read access to the question bank.
type QuestionRepository struct {
	db postgres.DBTX
}

// NewQuestionRepository creates a new QuestionRepository with the provided database pool.
func NewQuestionRepository(db postgres.DBTX) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// ListByChapter retrieves the questions of one syllabus chapter.
// A non-positive limit retrieves the whole chapter.
func (r *QuestionRepository) ListByChapter(ctx context.Context, chapter int, limit int) ([]*entities.Question, error) {
	query := `
		SELECT ` + questionColumns + `
		FROM questions
		WHERE chapter = $1
		ORDER BY created_at, id
	`
	args := []any{chapter}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list questions by chapter: %w", err)
	}
	defer rows.Close()

	return scanQuestions(rows)
}

// ListAll retrieves the full question pool.
func (r *QuestionRepository) ListAll(ctx context.Context) ([]*entities.Question, error) {
	query := `
		SELECT ` + questionColumns + `
		FROM questions
		ORDER BY created_at, id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	return scanQuestions(rows)
}

// ListByIDs retrieves the questions with the given ids. Unknown ids
// are silently absent from the result.
func (r *QuestionRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*entities.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + questionColumns + `
		FROM questions
		WHERE id = ANY($1)
	`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("list questions by ids: %w", err)
	}
	defer rows.Close()

	return scanQuestions(rows)
}

type questionRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanQuestions(rows questionRows) ([]*entities.Question, error) {
	var questions []*entities.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return questions, nil
}

func scanQuestion(row interface{ Scan(dest ...any) error }) (*entities.Question, error) {
	var (
		q           entities.Question
		optionTexts [4]string
		explanation *string
		imageURL    *string
		createdAt   time.Time
	)

	err := row.Scan(
		&q.ID,
		&q.Text,
		&optionTexts[0],
		&optionTexts[1],
		&optionTexts[2],
		&optionTexts[3],
		&q.CorrectLabel,
		&q.Chapter,
		&explanation,
		&imageURL,
		&createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan question: %w", err)
	}

	labels := entities.Labels()
	q.Options = make([]entities.Option, len(labels))
	for i, label := range labels {
		q.Options[i] = entities.Option{Label: label, Text: optionTexts[i]}
	}
	if explanation != nil {
		q.Explanation = *explanation
	}
	if imageURL != nil {
		q.ImageURL = *imageURL
	}
	q.CreatedAt = createdAt

	return &q, nil
}
