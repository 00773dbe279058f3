package service

import (
	"math/rand"
	"time"

	"github.com/idanlevi/theory-exam/internal/domain/entities"
)

// OptionShuffler randomizes the presentation order of a question's
// options so answer positions cannot be memorized across attempts.
type OptionShuffler struct {
	rng *rand.Rand
}

// NewOptionShuffler creates a shuffler with a non-reproducible random source.
func NewOptionShuffler() *OptionShuffler {
	return NewOptionShufflerWithSeed(time.Now().UnixNano())
}

// NewOptionShufflerWithSeed creates a shuffler with deterministic output.
func NewOptionShufflerWithSeed(seed int64) *OptionShuffler {
	return &OptionShuffler{rng: rand.New(rand.NewSource(seed))}
}

// Shuffle returns a presentation view of the question with its options
// under a uniform random permutation. Labels are reassigned
// positionally and the correct label is recomputed by following the
// originally-correct option to its new position, so scoring in the
// shuffled frame and in the storage frame agree.
func (s *OptionShuffler) Shuffle(q *entities.Question) (*entities.ShuffledQuestion, error) {
	correct, err := ResolveCorrectLabel(q)
	if err != nil {
		return nil, err
	}

	permuted := make([]entities.Option, len(q.Options))
	copy(permuted, q.Options)
	s.rng.Shuffle(len(permuted), func(i, j int) {
		permuted[i], permuted[j] = permuted[j], permuted[i]
	})

	labels := entities.Labels()
	options := make([]entities.ShuffledOption, len(permuted))
	newCorrect := correct
	for i, opt := range permuted {
		options[i] = entities.ShuffledOption{
			Label:         labels[i],
			Text:          opt.Text,
			OriginalLabel: opt.Label,
		}
		if opt.Label == correct {
			newCorrect = labels[i]
		}
	}

	return &entities.ShuffledQuestion{
		QuestionID:      q.ID,
		Text:            q.Text,
		Options:         options,
		Correct:         newCorrect,
		OriginalCorrect: correct,
		Chapter:         q.Chapter,
		Explanation:     q.Explanation,
		ImageURL:        q.ImageURL,
	}, nil
}
