package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idanlevi/theory-exam/internal/domain/entities"
)

var (
	ErrSessionNotFound   = errors.New("exam session not found")
	ErrUserRequired      = errors.New("exam type requires an authenticated user")
	ErrQuestionNotInExam = errors.New("question is not part of this exam")
	ErrIndexOutOfRange   = errors.New("question index out of range")
)

const submitTimeout = 10 * time.Second

// ExamService drives exam sessions: assembly, navigation, answer
// collection, timing and submission. Live sessions are held in memory;
// authenticated sessions additionally persist a row at start and their
// terminal state at submit. Guest sessions never touch the store.
type ExamService struct {
	selector    *ExamSelector
	shuffler    *OptionShuffler
	sessionRepo SessionRepository
	answerRepo  AnswerRepository
	resultStore ResultStore
	logger      *zap.Logger

	now func() time.Time

	mu     sync.RWMutex
	active map[uuid.UUID]*runtimeSession
}

// runtimeSession is the in-memory state of one live exam attempt.
// Its mutex serializes user actions and the expiry timer.
type runtimeSession struct {
	mu sync.Mutex

	session   *entities.ExamSession
	cfg       entities.ExamConfig
	questions []*entities.ShuffledQuestion
	answers   []answerState
	persisted bool // a session row exists in the store

	current      int       // index of the question currently shown
	shownAt      time.Time // when the current question was shown
	deadline     time.Time // zero for untimed exams
	timer        *time.Timer
	lastActivity time.Time

	result *ScoringResult // cached once submission succeeds
}

// answerState tracks the user's selection for one question in the
// shuffled presentation frame. Time spent accumulates across revisits.
type answerState struct {
	selected  *entities.AnswerLabel
	timeSpent time.Duration
}

// SessionView is a read snapshot of a live session for the delivery layer.
type SessionView struct {
	SessionID        uuid.UUID
	Type             entities.ExamType
	Status           entities.SessionStatus
	TotalQuestions   int
	CurrentIndex     int
	AnsweredCount    int
	RemainingSeconds *int // nil for untimed exams
	Questions        []*entities.ShuffledQuestion
	Selected         []*entities.AnswerLabel // per-question selection, shuffled frame
}

// NewExamService creates the exam service.
func NewExamService(
	selector *ExamSelector,
	shuffler *OptionShuffler,
	sessionRepo SessionRepository,
	answerRepo AnswerRepository,
	resultStore ResultStore,
	logger *zap.Logger,
) *ExamService {
	return &ExamService{
		selector:    selector,
		shuffler:    shuffler,
		sessionRepo: sessionRepo,
		answerRepo:  answerRepo,
		resultStore: resultStore,
		logger:      logger,
		now:         time.Now,
		active:      make(map[uuid.UUID]*runtimeSession),
	}
}

// StartSession assembles an exam for the given configuration and opens
// a session. A nil userID starts a guest session that exists only in
// memory. If the session row cannot be created the attempt degrades to
// a guest session with a logged warning, so a storage outage does not
// block taking an exam; results of such attempts are not persisted.
func (s *ExamService) StartSession(ctx context.Context, userID *uuid.UUID, cfg entities.ExamConfig) (*SessionView, error) {
	questions, err := s.assembleQuestions(ctx, userID, cfg)
	if err != nil {
		return nil, err
	}

	shuffled := make([]*entities.ShuffledQuestion, len(questions))
	for i, q := range questions {
		sq, err := s.shuffler.Shuffle(q)
		if err != nil {
			return nil, fmt.Errorf("shuffle options: %w", err)
		}
		shuffled[i] = sq
	}

	now := s.now()
	cfg.TotalQuestions = len(shuffled) // errors mode may run below the nominal size
	session := entities.NewExamSession(userID, cfg, now)

	persisted := false
	if !session.IsGuest() {
		if err := s.sessionRepo.Create(ctx, session); err != nil {
			s.logger.Warn("create session row failed, continuing as guest",
				zap.String("session_id", session.ID.String()),
				zap.Error(err))
			session.UserID = nil
		} else {
			persisted = true
		}
	}

	if err := session.Begin(); err != nil {
		return nil, err
	}

	rt := &runtimeSession{
		session:      session,
		cfg:          cfg,
		questions:    shuffled,
		answers:      make([]answerState, len(shuffled)),
		persisted:    persisted,
		shownAt:      now,
		lastActivity: now,
	}
	if cfg.Timed() {
		rt.deadline = now.Add(cfg.TimeLimit)
		rt.timer = time.AfterFunc(cfg.TimeLimit, func() { s.autoSubmit(session.ID) })
	}

	s.mu.Lock()
	s.active[session.ID] = rt
	s.mu.Unlock()

	s.logger.Info("exam session started",
		zap.String("session_id", session.ID.String()),
		zap.String("exam_type", string(cfg.Type)),
		zap.Int("questions", len(shuffled)),
		zap.Bool("guest", session.IsGuest()))

	rt.mu.Lock()
	defer rt.mu.Unlock()
	return s.viewLocked(rt), nil
}

// GetSession returns a snapshot of a live session.
func (s *ExamService) GetSession(sessionID uuid.UUID) (*SessionView, error) {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return nil, err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	return s.viewLocked(rt), nil
}

// RecordAnswer stores the user's selection for a question. The label
// is interpreted in the shuffled frame the question was shown in, and
// may be changed any number of times while the session is in progress.
func (s *ExamService) RecordAnswer(_ context.Context, sessionID, questionID uuid.UUID, rawLabel string) error {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return err
	}

	label, err := entities.ParseLabel(rawLabel)
	if err != nil {
		return err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if !rt.session.IsActive() {
		return entities.ErrSessionNotActive
	}

	index := -1
	for i, q := range rt.questions {
		if q.QuestionID == questionID {
			index = i
			break
		}
	}
	if index == -1 {
		return fmt.Errorf("%w: %s", ErrQuestionNotInExam, questionID)
	}

	now := s.now()
	rt.accrue(now)
	rt.current = index
	rt.answers[index].selected = &label
	rt.lastActivity = now
	return nil
}

// Navigate moves the session to the question at index. Navigation is
// non-linear: any question may be visited in any order.
func (s *ExamService) Navigate(_ context.Context, sessionID uuid.UUID, index int) (*SessionView, error) {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return nil, err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if !rt.session.IsActive() {
		return nil, entities.ErrSessionNotActive
	}
	if index < 0 || index >= len(rt.questions) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	now := s.now()
	rt.accrue(now)
	rt.current = index
	rt.lastActivity = now
	return s.viewLocked(rt), nil
}

// SubmitSession finalizes the session: unanswered questions count as
// incorrect, answers are scored against the answer key, and for
// authenticated sessions the answer batch and the session's terminal
// fields are committed in one transaction. Submission is idempotent:
// the first transition out of in_progress wins, a submit on a
// completed session returns the cached result, and a failed
// persistence attempt leaves the session in submitting so the whole
// batch can be retried.
func (s *ExamService) SubmitSession(ctx context.Context, sessionID uuid.UUID) (*ScoringResult, error) {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return nil, err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	return s.submitLocked(ctx, rt)
}

func (s *ExamService) submitLocked(ctx context.Context, rt *runtimeSession) (*ScoringResult, error) {
	if rt.session.Status == entities.StatusCompleted {
		return rt.result, nil
	}
	if err := rt.session.BeginSubmit(); err != nil {
		return nil, err
	}
	if rt.timer != nil {
		rt.timer.Stop()
	}

	now := s.now()
	rt.accrue(now)

	scored := make([]ScoredAnswer, len(rt.questions))
	for i, q := range rt.questions {
		state := rt.answers[i]

		// Translate the selection back to the storage frame so the
		// record compares against the resolver's answer key directly.
		var submitted *entities.AnswerLabel
		if state.selected != nil {
			opt, ok := q.OptionByLabel(*state.selected)
			if !ok {
				return nil, fmt.Errorf("%w: label %q on question %s", entities.ErrInvalidLabel, *state.selected, q.QuestionID)
			}
			original := opt.OriginalLabel
			submitted = &original
		}

		scored[i] = ScoredAnswer{
			QuestionID:       q.QuestionID,
			Submitted:        submitted,
			Correct:          q.OriginalCorrect,
			TimeSpentSeconds: int(state.timeSpent / time.Second),
		}
	}

	result := Score(scored, rt.cfg.PassingScore)
	timeSpent := int(now.Sub(rt.session.StartedAt) / time.Second)

	if rt.persisted {
		records := make([]*entities.AnswerRecord, len(scored))
		for i, answer := range scored {
			records[i] = &entities.AnswerRecord{
				ID:               uuid.New(),
				SessionID:        rt.session.ID,
				QuestionID:       answer.QuestionID,
				Submitted:        answer.Submitted,
				Correct:          answer.Correct,
				IsCorrect:        answer.Submitted != nil && *answer.Submitted == answer.Correct,
				TimeSpentSeconds: answer.TimeSpentSeconds,
				AnsweredAt:       now,
			}
		}

		final := *rt.session
		final.Complete(result.CorrectCount, result.Passed, timeSpent, now)

		if err := s.resultStore.SaveResult(ctx, &final, records); err != nil {
			s.logger.Error("persist exam result failed",
				zap.String("session_id", rt.session.ID.String()),
				zap.Error(err))
			return nil, fmt.Errorf("persist exam result: %w", err)
		}
	}

	rt.session.Complete(result.CorrectCount, result.Passed, timeSpent, now)
	rt.result = &result
	rt.lastActivity = now

	s.logger.Info("exam session completed",
		zap.String("session_id", rt.session.ID.String()),
		zap.Int("score", result.CorrectCount),
		zap.Int("total", result.TotalCount),
		zap.Int("percentage", result.Percentage))

	return rt.result, nil
}

// autoSubmit fires on timer expiry and races with a manual submit; the
// session mutex and the one-way status transition make it a no-op when
// the user got there first.
func (s *ExamService) autoSubmit(sessionID uuid.UUID) {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.session.Status == entities.StatusCompleted {
		return
	}

	s.logger.Info("time limit reached, auto-submitting",
		zap.String("session_id", sessionID.String()))

	if _, err := s.submitLocked(ctx, rt); err != nil {
		s.logger.Error("auto-submit failed",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
	}
}

// DeleteSession removes a persisted session and its answers on the
// owner's explicit request, and drops any in-memory state.
func (s *ExamService) DeleteSession(ctx context.Context, sessionID, userID uuid.UUID) error {
	s.mu.Lock()
	if rt, ok := s.active[sessionID]; ok {
		if rt.timer != nil {
			rt.timer.Stop()
		}
		delete(s.active, sessionID)
	}
	s.mu.Unlock()

	if err := s.resultStore.DeleteSession(ctx, sessionID, userID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// History returns the user's persisted sessions, most recent first.
func (s *ExamService) History(ctx context.Context, userID uuid.UUID, limit int) ([]*entities.ExamSession, error) {
	return s.sessionRepo.ListByUser(ctx, userID, limit)
}

// Summary returns aggregate counts over the user's completed exams.
func (s *ExamService) Summary(ctx context.Context, userID uuid.UUID) (*entities.UserSummary, error) {
	return s.sessionRepo.SummaryByUser(ctx, userID)
}

// RemoveStale drops abandoned in-memory sessions: anything idle past
// maxIdle whose deadline, if any, has passed. Persisted rows of
// abandoned attempts keep their null end_time and simply never show up
// as completed. Returns the number of sessions removed.
func (s *ExamService) RemoveStale(maxIdle time.Duration) int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rt := range s.active {
		rt.mu.Lock()
		idle := now.Sub(rt.lastActivity) > maxIdle
		expired := rt.deadline.IsZero() || now.After(rt.deadline)
		rt.mu.Unlock()

		if idle && expired {
			if rt.timer != nil {
				rt.timer.Stop()
			}
			delete(s.active, id)
			removed++
		}
	}
	return removed
}

func (s *ExamService) assembleQuestions(ctx context.Context, userID *uuid.UUID, cfg entities.ExamConfig) ([]*entities.Question, error) {
	switch cfg.Type {
	case entities.ExamSimulation:
		return s.selector.BuildExam(ctx, entities.SimulationQuotas, cfg.TotalQuestions)
	case entities.ExamPractice:
		return s.selector.BuildRandom(ctx, cfg.TotalQuestions)
	case entities.ExamErrors:
		if userID == nil {
			return nil, ErrUserRequired
		}
		ids, err := s.answerRepo.ListIncorrectQuestionIDs(ctx, *userID, cfg.TotalQuestions)
		if err != nil {
			return nil, fmt.Errorf("list missed questions: %w", err)
		}
		return s.selector.BuildFromIDs(ctx, ids)
	default:
		return nil, fmt.Errorf("%w: %q", entities.ErrUnknownExamType, cfg.Type)
	}
}

func (s *ExamService) runtime(sessionID uuid.UUID) (*runtimeSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rt, ok := s.active[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return rt, nil
}

// viewLocked builds a snapshot; the caller holds rt.mu.
func (s *ExamService) viewLocked(rt *runtimeSession) *SessionView {
	view := &SessionView{
		SessionID:      rt.session.ID,
		Type:           rt.session.Type,
		Status:         rt.session.Status,
		TotalQuestions: len(rt.questions),
		CurrentIndex:   rt.current,
		Questions:      rt.questions,
		Selected:       make([]*entities.AnswerLabel, len(rt.answers)),
	}
	for i, state := range rt.answers {
		if state.selected != nil {
			label := *state.selected
			view.Selected[i] = &label
			view.AnsweredCount++
		}
	}
	if !rt.deadline.IsZero() {
		remaining := int(rt.deadline.Sub(s.now()) / time.Second)
		if remaining < 0 {
			remaining = 0
		}
		view.RemainingSeconds = &remaining
	}
	return view
}

// accrue charges the elapsed display time to the current question.
// Time is additive across revisits. The caller holds rt.mu.
func (rt *runtimeSession) accrue(now time.Time) {
	if rt.current >= 0 && rt.current < len(rt.answers) {
		rt.answers[rt.current].timeSpent += now.Sub(rt.shownAt)
	}
	rt.shownAt = now
}
