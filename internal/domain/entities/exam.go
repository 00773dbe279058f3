package entities

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ExamType determines how an exam is assembled and scored.
type ExamType string

const (
	ExamSimulation ExamType = "simulation" // timed, quota-balanced, pass/fail
	ExamPractice   ExamType = "practice"   // untimed free practice
	ExamErrors     ExamType = "errors"     // untimed review of previously missed questions
)

var ErrUnknownExamType = errors.New("unknown exam type")

// ParseExamType validates a raw exam type string.
func ParseExamType(raw string) (ExamType, error) {
	switch ExamType(raw) {
	case ExamSimulation, ExamPractice, ExamErrors:
		return ExamType(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownExamType, raw)
	}
}

// ExamConfig describes one exam variant. PassingScore is the minimum
// number of correct answers required to pass; zero means the variant
// has no pass/fail concept.
type ExamConfig struct {
	Type           ExamType
	TotalQuestions int
	TimeLimit      time.Duration // zero for untimed variants
	PassingScore   int
}

// Timed reports whether the exam runs against a countdown.
func (c ExamConfig) Timed() bool {
	return c.TimeLimit > 0
}

// examConfigs holds the built-in exam variants.
var examConfigs = map[ExamType]ExamConfig{
	ExamSimulation: {
		Type:           ExamSimulation,
		TotalQuestions: 30,
		TimeLimit:      40 * time.Minute,
		PassingScore:   26,
	},
	ExamPractice: {
		Type:           ExamPractice,
		TotalQuestions: 15,
	},
	ExamErrors: {
		Type:           ExamErrors,
		TotalQuestions: 10,
	},
}

// ConfigFor returns the built-in configuration of an exam type.
func ConfigFor(examType ExamType) (ExamConfig, error) {
	cfg, ok := examConfigs[examType]
	if !ok {
		return ExamConfig{}, fmt.Errorf("%w: %q", ErrUnknownExamType, examType)
	}
	return cfg, nil
}

// QuotaTable maps a syllabus chapter to the number of questions it
// contributes to one exam.
type QuotaTable map[int]int

// SimulationQuotas is the chapter distribution of the official theory
// exam: 13 chapters contributing 30 questions in total.
var SimulationQuotas = QuotaTable{
	1: 6, 2: 2, 3: 2, 4: 1, 5: 3, 6: 3, 7: 3,
	8: 2, 9: 2, 10: 2, 11: 2, 12: 1, 13: 1,
}

// Total returns the sum of all chapter quotas.
func (t QuotaTable) Total() int {
	total := 0
	for _, quota := range t {
		total += quota
	}
	return total
}

// Chapters returns the chapters of the table in ascending order, so
// iteration order is stable under a fixed random seed.
func (t QuotaTable) Chapters() []int {
	chapters := make([]int, 0, len(t))
	for chapter := range t {
		chapters = append(chapters, chapter)
	}
	sort.Ints(chapters)
	return chapters
}

// Validate checks that every quota is positive and the table sums to
// the target exam size.
func (t QuotaTable) Validate(target int) error {
	if len(t) == 0 {
		return errors.New("quota table is empty")
	}
	for chapter, quota := range t {
		if quota <= 0 {
			return fmt.Errorf("chapter %d has non-positive quota %d", chapter, quota)
		}
	}
	if total := t.Total(); total != target {
		return fmt.Errorf("quota table sums to %d, target exam size is %d", total, target)
	}
	return nil
}
