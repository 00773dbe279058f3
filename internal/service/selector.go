package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/idanlevi/theory-exam/internal/domain/entities"
)

var (
	ErrInsufficientPool       = errors.New("question pool is smaller than the exam size")
	ErrNoQuestionsAvailable   = errors.New("no questions available")
	ErrEmptyChapter           = errors.New("chapter has no eligible questions")
	errDuplicatePoolQuestions = errors.New("question pool contains duplicate ids")
)

// ExamSelector assembles quota-balanced exams from the question bank.
// All randomness flows through a single rng so a seeded selector
// reproduces the exact same exam for the same pool.
type ExamSelector struct {
	questionRepo QuestionRepository

	rng *rand.Rand
}

// NewExamSelector creates a selector with a non-reproducible random source.
func NewExamSelector(questionRepo QuestionRepository) *ExamSelector {
	return NewExamSelectorWithSeed(questionRepo, time.Now().UnixNano())
}

// NewExamSelectorWithSeed creates a selector whose output is fully
// determined by the seed and the pool contents.
func NewExamSelectorWithSeed(questionRepo QuestionRepository, seed int64) *ExamSelector {
	return &ExamSelector{
		questionRepo: questionRepo,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

// BuildExam selects exactly size questions according to the chapter
// quota table: each chapter contributes up to its quota after a
// uniform shuffle, sparse chapters are compensated by random backfill
// from the rest of the pool, and the combined set is shuffled once
// more so chapter order is not observable. A pool with fewer than
// size distinct eligible questions is an error, never a duplicate fill.
func (s *ExamSelector) BuildExam(ctx context.Context, quotas entities.QuotaTable, size int) ([]*entities.Question, error) {
	if err := quotas.Validate(size); err != nil {
		return nil, fmt.Errorf("validate quota table: %w", err)
	}

	selected := make([]*entities.Question, 0, size)
	seen := make(map[uuid.UUID]struct{}, size)

	// Chapters are walked in ascending order so a fixed seed yields a
	// fixed exam.
	for _, chapter := range quotas.Chapters() {
		quota := quotas[chapter]

		available, err := s.questionRepo.ListByChapter(ctx, chapter, 0)
		if err != nil {
			return nil, fmt.Errorf("list chapter %d questions: %w", chapter, err)
		}

		eligible, err := validQuestions(available)
		if err != nil {
			return nil, err
		}

		s.shuffle(eligible)
		for _, q := range takeFirst(eligible, quota) {
			if _, ok := seen[q.ID]; ok {
				return nil, fmt.Errorf("%w: %s", errDuplicatePoolQuestions, q.ID)
			}
			seen[q.ID] = struct{}{}
			selected = append(selected, q)
		}
	}

	// Sparse chapters leave the exam short; backfill from the whole
	// pool, skipping questions already picked.
	if len(selected) < size {
		backfilled, err := s.backfill(ctx, seen, size-len(selected))
		if err != nil {
			return nil, err
		}
		selected = append(selected, backfilled...)
	}

	if len(selected) < size {
		return nil, fmt.Errorf("%w: need %d, found %d", ErrInsufficientPool, size, len(selected))
	}

	s.shuffle(selected)
	return selected[:size], nil
}

// BuildRandom selects size questions uniformly from the whole pool,
// used by the free-practice variant.
func (s *ExamSelector) BuildRandom(ctx context.Context, size int) ([]*entities.Question, error) {
	if size <= 0 {
		return nil, nil
	}

	pool, err := s.questionRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	eligible, err := validQuestions(pool)
	if err != nil {
		return nil, err
	}
	if len(eligible) < size {
		return nil, fmt.Errorf("%w: need %d, found %d", ErrInsufficientPool, size, len(eligible))
	}

	s.shuffle(eligible)
	return eligible[:size], nil
}

// BuildFromIDs returns the stored questions for the given ids, in a
// shuffled order. It is used by the errors-review variant, where the
// exam is exactly the set of previously missed questions.
func (s *ExamSelector) BuildFromIDs(ctx context.Context, ids []uuid.UUID) ([]*entities.Question, error) {
	if len(ids) == 0 {
		return nil, ErrNoQuestionsAvailable
	}

	questions, err := s.questionRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list questions by ids: %w", err)
	}

	eligible, err := validQuestions(questions)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, ErrNoQuestionsAvailable
	}

	s.shuffle(eligible)
	return eligible, nil
}

// backfill draws count random questions from the pool that are not in
// seen, marking everything it picks.
func (s *ExamSelector) backfill(ctx context.Context, seen map[uuid.UUID]struct{}, count int) ([]*entities.Question, error) {
	pool, err := s.questionRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	eligible, err := validQuestions(pool)
	if err != nil {
		return nil, err
	}

	candidates := make([]*entities.Question, 0, len(eligible))
	for _, q := range eligible {
		if _, ok := seen[q.ID]; ok {
			continue
		}
		candidates = append(candidates, q)
	}

	s.shuffle(candidates)
	picked := takeFirst(candidates, count)
	for _, q := range picked {
		seen[q.ID] = struct{}{}
	}
	return picked, nil
}

// shuffle applies an in-place Fisher-Yates shuffle from the selector's rng.
func (s *ExamSelector) shuffle(questions []*entities.Question) {
	s.rng.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
}

// validQuestions filters nil entries and surfaces the first
// data-integrity violation instead of silently dropping it: a broken
// question bank must be fixed, not worked around at exam time.
func validQuestions(questions []*entities.Question) ([]*entities.Question, error) {
	out := make([]*entities.Question, 0, len(questions))
	for _, q := range questions {
		if q == nil {
			continue
		}
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("question %s: %w", q.ID, err)
		}
		out = append(out, q)
	}
	return out, nil
}

// takeFirst returns the first n elements, or the whole slice if it is shorter.
func takeFirst(questions []*entities.Question, n int) []*entities.Question {
	if n <= 0 {
		return nil
	}
	if len(questions) <= n {
		return questions
	}
	return questions[:n]
}
