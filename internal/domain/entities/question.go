package entities

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AnswerLabel is the canonical label of an answer option.
// Everything entering the system (storage reads, user submissions)
// is normalized to this set before any comparison.
type AnswerLabel string

const (
	LabelA AnswerLabel = "A"
	LabelB AnswerLabel = "B"
	LabelC AnswerLabel = "C"
	LabelD AnswerLabel = "D"
)

var (
	ErrInvalidLabel    = errors.New("invalid answer label")
	ErrInvalidQuestion = errors.New("invalid question")
)

// labelAliases maps every accepted label encoding to the canonical set.
// The question bank mixes Latin and Hebrew labels across imports.
var labelAliases = map[string]AnswerLabel{
	"A": LabelA, "B": LabelB, "C": LabelC, "D": LabelD,
	"א": LabelA, "ב": LabelB, "ג": LabelC, "ד": LabelD,
}

// Labels returns the canonical labels in positional order.
func Labels() []AnswerLabel {
	return []AnswerLabel{LabelA, LabelB, LabelC, LabelD}
}

// ParseLabel normalizes a raw answer label to the canonical set.
func ParseLabel(raw string) (AnswerLabel, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if label, ok := labelAliases[normalized]; ok {
		return label, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLabel, raw)
}

// Option is a single answer option of a question in storage order.
type Option struct {
	Label AnswerLabel
	Text  string
}

// Question is a theory question as stored in the question bank.
// It is immutable for the life of an exam.
type Question struct {
	ID           uuid.UUID
	Text         string
	Options      []Option // always four, labelled A..D in storage order
	CorrectLabel string   // label as stored; may be Latin or Hebrew
	Chapter      int      // syllabus chapter the question belongs to
	Explanation  string
	ImageURL     string
	CreatedAt    time.Time
}

// OptionByLabel returns the option carrying the given canonical label.
func (q *Question) OptionByLabel(label AnswerLabel) (Option, bool) {
	for _, opt := range q.Options {
		if opt.Label == label {
			return opt, true
		}
	}
	return Option{}, false
}

// Validate checks the structural invariants of a question: four
// non-empty options and a correct label that resolves to one of them.
func (q *Question) Validate() error {
	if q.Text == "" {
		return fmt.Errorf("%w: empty question text", ErrInvalidQuestion)
	}
	if len(q.Options) != len(Labels()) {
		return fmt.Errorf("%w: expected %d options, got %d", ErrInvalidQuestion, len(Labels()), len(q.Options))
	}
	for i, opt := range q.Options {
		if opt.Text == "" {
			return fmt.Errorf("%w: option %d has empty text", ErrInvalidQuestion, i)
		}
		if opt.Label != Labels()[i] {
			return fmt.Errorf("%w: option %d carries label %q", ErrInvalidQuestion, i, opt.Label)
		}
	}
	correct, err := ParseLabel(q.CorrectLabel)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuestion, err)
	}
	if _, ok := q.OptionByLabel(correct); !ok {
		return fmt.Errorf("%w: correct label %q not among options", ErrInvalidQuestion, correct)
	}
	return nil
}

// ShuffledOption is an answer option in its presentation position.
type ShuffledOption struct {
	Label         AnswerLabel // label in the shuffled frame, as shown to the user
	Text          string
	OriginalLabel AnswerLabel // label the option carried in storage order
}

// ShuffledQuestion is a presentation-only view of a Question with the
// option order randomized. Correct holds the correct label in the
// shuffled frame; OriginalCorrect keeps the storage-order label so the
// answer key survives the shuffle for audit and scoring.
type ShuffledQuestion struct {
	QuestionID      uuid.UUID
	Text            string
	Options         []ShuffledOption
	Correct         AnswerLabel
	OriginalCorrect AnswerLabel
	Chapter         int
	Explanation     string
	ImageURL        string
}

// OptionByLabel returns the shuffled option shown under the given label.
func (q *ShuffledQuestion) OptionByLabel(label AnswerLabel) (ShuffledOption, bool) {
	for _, opt := range q.Options {
		if opt.Label == label {
			return opt, true
		}
	}
	return ShuffledOption{}, false
}
