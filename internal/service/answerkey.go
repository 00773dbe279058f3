package service

import (
	"errors"
	"fmt"

	"github.com/idanlevi/theory-exam/internal/domain/entities"
)

// ErrNoAnswerKey marks a question whose correct answer cannot be
// resolved. Such a question must never reach a test-taker; scoring it
// by defaulting to an arbitrary option is a data-integrity violation.
var ErrNoAnswerKey = errors.New("question has no resolvable answer key")

// ResolveCorrectLabel returns the canonical correct label of a
// question, tolerating the label encodings found in the question bank.
func ResolveCorrectLabel(q *entities.Question) (entities.AnswerLabel, error) {
	label, err := entities.ParseLabel(q.CorrectLabel)
	if err != nil {
		return "", fmt.Errorf("%w: question %s: %v", ErrNoAnswerKey, q.ID, err)
	}
	if _, ok := q.OptionByLabel(label); !ok {
		return "", fmt.Errorf("%w: question %s: label %q not among options", ErrNoAnswerKey, q.ID, label)
	}
	return label, nil
}
