package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of an exam session.
// Transitions are strictly forward:
// initializing -> in_progress -> submitting -> completed.
type SessionStatus string

const (
	StatusInitializing SessionStatus = "initializing"
	StatusInProgress   SessionStatus = "in_progress"
	StatusSubmitting   SessionStatus = "submitting"
	StatusCompleted    SessionStatus = "completed"
)

var (
	ErrSessionNotActive  = errors.New("exam session is not active")
	ErrSessionNotStarted = errors.New("exam session has not started")
	ErrAlreadyCompleted  = errors.New("exam session is already completed")
)

// ExamSession represents a single exam attempt.
// Guest attempts carry a nil UserID and are never persisted.
type ExamSession struct {
	ID               uuid.UUID     // unique session ID
	UserID           *uuid.UUID    // owning user; nil for guest sessions
	Type             ExamType      // simulation, practice or errors
	TotalQuestions   int           // number of questions in the exam
	TimeLimitSeconds *int          // countdown length; nil for untimed variants
	Status           SessionStatus // current lifecycle state
	StartedAt        time.Time     // when the attempt began
	EndedAt          *time.Time    // set on submission; nil while in progress
	Score            *int          // correct-answer count; nil until completed
	Passed           *bool         // nil until completed, and always nil for untimed variants
	TimeSpentSeconds *int          // total wall time of the attempt
	CreatedAt        time.Time
}

// NewExamSession creates a session in the initializing state for the
// given exam configuration.
func NewExamSession(userID *uuid.UUID, cfg ExamConfig, startedAt time.Time) *ExamSession {
	session := &ExamSession{
		ID:             uuid.New(),
		UserID:         userID,
		Type:           cfg.Type,
		TotalQuestions: cfg.TotalQuestions,
		Status:         StatusInitializing,
		StartedAt:      startedAt,
		CreatedAt:      startedAt,
	}
	if cfg.Timed() {
		limit := int(cfg.TimeLimit / time.Second)
		session.TimeLimitSeconds = &limit
	}
	return session
}

// IsGuest reports whether the session belongs to no persisted identity.
func (s *ExamSession) IsGuest() bool {
	return s.UserID == nil
}

// IsActive reports whether the session still accepts answers and navigation.
func (s *ExamSession) IsActive() bool {
	return s.Status == StatusInProgress
}

// Begin moves the session from initializing to in_progress.
func (s *ExamSession) Begin() error {
	if s.Status != StatusInitializing {
		return ErrSessionNotActive
	}
	s.Status = StatusInProgress
	return nil
}

// BeginSubmit performs the one-way transition out of in_progress.
// Only the first caller succeeds; a session already submitting may
// retry (a previous persistence attempt failed), a completed session
// may not.
func (s *ExamSession) BeginSubmit() error {
	switch s.Status {
	case StatusInProgress, StatusSubmitting:
		s.Status = StatusSubmitting
		return nil
	case StatusCompleted:
		return ErrAlreadyCompleted
	default:
		return ErrSessionNotStarted
	}
}

// UserSummary aggregates a user's completed exam history.
type UserSummary struct {
	TotalExams   int
	PassedExams  int
	AverageScore float64
}

// Complete finalizes the session with its terminal fields.
// Passed stays nil for variants without a pass/fail concept.
func (s *ExamSession) Complete(score int, passed *bool, timeSpentSeconds int, endedAt time.Time) {
	s.Status = StatusCompleted
	s.Score = &score
	s.Passed = passed
	s.TimeSpentSeconds = &timeSpentSeconds
	s.EndedAt = &endedAt
}
