package service

import (
	"math"

	"github.com/google/uuid"

	"github.com/idanlevi/theory-exam/internal/domain/entities"
)

// ScoredAnswer is one (question, submitted label) pair tagged with its
// answer key, in the storage frame of the question.
type ScoredAnswer struct {
	QuestionID       uuid.UUID
	Submitted        *entities.AnswerLabel // nil when unanswered
	Correct          entities.AnswerLabel
	TimeSpentSeconds int
}

// ScoringResult summarizes a finished exam. Passed is nil when the
// exam variant has no pass/fail concept.
type ScoringResult struct {
	CorrectCount     int
	TotalCount       int
	Percentage       int
	WrongQuestionIDs []uuid.UUID
	Passed           *bool
}

// Score compares submitted answers to their answer keys.
// passingScore is the minimum correct count required to pass; zero or
// less means the result carries no pass/fail verdict. Unanswered
// questions count as incorrect.
func Score(answers []ScoredAnswer, passingScore int) ScoringResult {
	result := ScoringResult{TotalCount: len(answers)}

	for _, answer := range answers {
		if answer.Submitted != nil && *answer.Submitted == answer.Correct {
			result.CorrectCount++
			continue
		}
		result.WrongQuestionIDs = append(result.WrongQuestionIDs, answer.QuestionID)
	}

	if result.TotalCount > 0 {
		ratio := float64(result.CorrectCount) / float64(result.TotalCount)
		result.Percentage = int(math.Round(ratio * 100))
	}

	if passingScore > 0 {
		passed := result.CorrectCount >= passingScore
		result.Passed = &passed
	}

	return result
}
