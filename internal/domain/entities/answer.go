package entities

import (
	"time"

	"github.com/google/uuid"
)

// AnswerRecord is a user's final answer to one exam question. Records
// are written once, in bulk, when the session is submitted and never
// updated afterward. Labels are stored in the storage frame of the
// question, not the shuffled presentation frame.
type AnswerRecord struct {
	ID               uuid.UUID
	SessionID        uuid.UUID
	QuestionID       uuid.UUID
	Submitted        *AnswerLabel // nil when the question was left unanswered
	Correct          AnswerLabel  // answer key as resolved at scoring time
	IsCorrect        bool
	TimeSpentSeconds int // additive across revisits of the question
	AnsweredAt       time.Time
}
