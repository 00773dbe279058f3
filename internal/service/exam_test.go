package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/idanlevi/theory-exam/internal/domain/entities"
)

type fakeSessionRepo struct {
	created   map[uuid.UUID]*entities.ExamSession
	createErr error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{created: make(map[uuid.UUID]*entities.ExamSession)}
}

func (f *fakeSessionRepo) Create(_ context.Context, session *entities.ExamSession) error {
	if f.createErr != nil {
		return f.createErr
	}
	clone := *session
	f.created[session.ID] = &clone
	return nil
}

func (f *fakeSessionRepo) GetByID(_ context.Context, id uuid.UUID) (*entities.ExamSession, error) {
	session, ok := f.created[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (f *fakeSessionRepo) ListByUser(_ context.Context, userID uuid.UUID, _ int) ([]*entities.ExamSession, error) {
	var out []*entities.ExamSession
	for _, session := range f.created {
		if session.UserID != nil && *session.UserID == userID && session.EndedAt != nil {
			out = append(out, session)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) SummaryByUser(_ context.Context, _ uuid.UUID) (*entities.UserSummary, error) {
	return &entities.UserSummary{}, nil
}

type fakeAnswerRepo struct {
	incorrect []uuid.UUID
}

func (f *fakeAnswerRepo) ListIncorrectQuestionIDs(_ context.Context, _ uuid.UUID, limit int) ([]uuid.UUID, error) {
	if limit > 0 && len(f.incorrect) > limit {
		return f.incorrect[:limit], nil
	}
	return f.incorrect, nil
}

type fakeResultStore struct {
	saveErr   error
	saveCalls int
	saved     map[uuid.UUID][]*entities.AnswerRecord
	finalized map[uuid.UUID]*entities.ExamSession
	deleted   []uuid.UUID
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{
		saved:     make(map[uuid.UUID][]*entities.AnswerRecord),
		finalized: make(map[uuid.UUID]*entities.ExamSession),
	}
}

func (f *fakeResultStore) SaveResult(_ context.Context, session *entities.ExamSession, answers []*entities.AnswerRecord) error {
	f.saveCalls++
	if f.saveErr != nil {
		return f.saveErr
	}
	clone := *session
	f.finalized[session.ID] = &clone
	f.saved[session.ID] = answers
	return nil
}

func (f *fakeResultStore) DeleteSession(_ context.Context, sessionID, _ uuid.UUID) error {
	f.deleted = append(f.deleted, sessionID)
	return nil
}

type examFixture struct {
	svc      *ExamService
	bank     *fakeQuestionRepo
	sessions *fakeSessionRepo
	answers  *fakeAnswerRepo
	results  *fakeResultStore
}

func newExamFixture(t *testing.T) *examFixture {
	t.Helper()
	bank := bankWithQuotaCoverage(10)
	sessions := newFakeSessionRepo()
	answers := &fakeAnswerRepo{}
	results := newFakeResultStore()
	svc := NewExamService(
		NewExamSelectorWithSeed(bank, 42),
		NewOptionShufflerWithSeed(42),
		sessions,
		answers,
		results,
		zap.NewNop(),
	)
	return &examFixture{svc: svc, bank: bank, sessions: sessions, answers: answers, results: results}
}

func simulationConfig(t *testing.T) entities.ExamConfig {
	t.Helper()
	cfg, err := entities.ConfigFor(entities.ExamSimulation)
	require.NoError(t, err)
	return cfg
}

// answerAll submits the correct (or an incorrect) shuffled label for
// every question of the session.
func answerAll(t *testing.T, svc *ExamService, view *SessionView, correct bool) {
	t.Helper()
	for _, q := range view.Questions {
		label := q.Correct
		if !correct {
			for _, candidate := range entities.Labels() {
				if candidate != q.Correct {
					label = candidate
					break
				}
			}
		}
		require.NoError(t, svc.RecordAnswer(context.Background(), view.SessionID, q.QuestionID, string(label)))
	}
}

func TestGuestSimulationFullMarks(t *testing.T) {
	f := newExamFixture(t)

	view, err := f.svc.StartSession(context.Background(), nil, simulationConfig(t))
	require.NoError(t, err)
	assert.Equal(t, entities.StatusInProgress, view.Status)
	assert.Len(t, view.Questions, 30)
	require.NotNil(t, view.RemainingSeconds)
	assert.InDelta(t, 2400, *view.RemainingSeconds, 2)

	answerAll(t, f.svc, view, true)

	result, err := f.svc.SubmitSession(context.Background(), view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 30, result.CorrectCount)
	assert.Equal(t, 100, result.Percentage)
	require.NotNil(t, result.Passed)
	assert.True(t, *result.Passed)

	// Guest attempts never touch the store.
	assert.Empty(t, f.sessions.created)
	assert.Zero(t, f.results.saveCalls)
}

func TestAuthenticatedSubmitPersistsAtomically(t *testing.T) {
	f := newExamFixture(t)
	userID := uuid.New()

	view, err := f.svc.StartSession(context.Background(), &userID, simulationConfig(t))
	require.NoError(t, err)
	require.Contains(t, f.sessions.created, view.SessionID)

	answerAll(t, f.svc, view, true)

	result, err := f.svc.SubmitSession(context.Background(), view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.results.saveCalls)

	records := f.results.saved[view.SessionID]
	require.Len(t, records, 30)

	// Round trip: every record's answer key matches the resolver's
	// output for the stored question.
	byID := make(map[uuid.UUID]*entities.Question)
	for _, q := range f.bank.questions {
		byID[q.ID] = q
	}
	for _, record := range records {
		q := byID[record.QuestionID]
		require.NotNil(t, q)
		resolved, err := ResolveCorrectLabel(q)
		require.NoError(t, err)
		assert.Equal(t, resolved, record.Correct)
		assert.True(t, record.IsCorrect)
	}

	finalized := f.results.finalized[view.SessionID]
	require.NotNil(t, finalized)
	assert.Equal(t, entities.StatusCompleted, finalized.Status)
	require.NotNil(t, finalized.Score)
	assert.Equal(t, result.CorrectCount, *finalized.Score)
	require.NotNil(t, finalized.EndedAt)
}

func TestSubmitIsIdempotent(t *testing.T) {
	f := newExamFixture(t)
	userID := uuid.New()

	view, err := f.svc.StartSession(context.Background(), &userID, simulationConfig(t))
	require.NoError(t, err)
	answerAll(t, f.svc, view, true)

	first, err := f.svc.SubmitSession(context.Background(), view.SessionID)
	require.NoError(t, err)
	second, err := f.svc.SubmitSession(context.Background(), view.SessionID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.results.saveCalls, "one persisted result, not two")
}

func TestSubmitRetriesAfterPersistenceFailure(t *testing.T) {
	f := newExamFixture(t)
	userID := uuid.New()

	view, err := f.svc.StartSession(context.Background(), &userID, simulationConfig(t))
	require.NoError(t, err)
	answerAll(t, f.svc, view, true)

	f.results.saveErr = errors.New("connection reset")
	_, err = f.svc.SubmitSession(context.Background(), view.SessionID)
	require.Error(t, err)

	// The session must not look completed after a partial write.
	current, err := f.svc.GetSession(view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusSubmitting, current.Status)

	// Retrying replays the whole batch.
	f.results.saveErr = nil
	result, err := f.svc.SubmitSession(context.Background(), view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 30, result.CorrectCount)
	assert.Equal(t, 2, f.results.saveCalls)
	assert.Len(t, f.results.saved[view.SessionID], 30)
}

func TestSessionRowFailureDegradesToGuest(t *testing.T) {
	f := newExamFixture(t)
	f.sessions.createErr = errors.New("database down")
	userID := uuid.New()

	view, err := f.svc.StartSession(context.Background(), &userID, simulationConfig(t))
	require.NoError(t, err)
	answerAll(t, f.svc, view, true)

	_, err = f.svc.SubmitSession(context.Background(), view.SessionID)
	require.NoError(t, err)
	assert.Zero(t, f.results.saveCalls, "degraded session stays in memory")
}

func TestAutoSubmitOnExpiry(t *testing.T) {
	f := newExamFixture(t)
	cfg := simulationConfig(t)
	cfg.TimeLimit = 50 * time.Millisecond

	view, err := f.svc.StartSession(context.Background(), nil, cfg)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		current, err := f.svc.GetSession(view.SessionID)
		return err == nil && current.Status == entities.StatusCompleted
	}, time.Second, 10*time.Millisecond)

	result, err := f.svc.SubmitSession(context.Background(), view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.CorrectCount)
	assert.Equal(t, 0, result.Percentage)
	require.NotNil(t, result.Passed)
	assert.False(t, *result.Passed)
}

func TestRecordAnswer(t *testing.T) {
	f := newExamFixture(t)

	view, err := f.svc.StartSession(context.Background(), nil, simulationConfig(t))
	require.NoError(t, err)
	ctx := context.Background()
	q := view.Questions[0]

	t.Run("answer can change any number of times", func(t *testing.T) {
		require.NoError(t, f.svc.RecordAnswer(ctx, view.SessionID, q.QuestionID, "A"))
		require.NoError(t, f.svc.RecordAnswer(ctx, view.SessionID, q.QuestionID, "D"))

		current, err := f.svc.GetSession(view.SessionID)
		require.NoError(t, err)
		require.NotNil(t, current.Selected[0])
		assert.Equal(t, entities.LabelD, *current.Selected[0])
		assert.Equal(t, 1, current.AnsweredCount)
	})

	t.Run("hebrew label is accepted", func(t *testing.T) {
		require.NoError(t, f.svc.RecordAnswer(ctx, view.SessionID, q.QuestionID, "ב"))

		current, err := f.svc.GetSession(view.SessionID)
		require.NoError(t, err)
		assert.Equal(t, entities.LabelB, *current.Selected[0])
	})

	t.Run("invalid label", func(t *testing.T) {
		err := f.svc.RecordAnswer(ctx, view.SessionID, q.QuestionID, "Z")
		assert.ErrorIs(t, err, entities.ErrInvalidLabel)
	})

	t.Run("question outside the exam", func(t *testing.T) {
		err := f.svc.RecordAnswer(ctx, view.SessionID, uuid.New(), "A")
		assert.ErrorIs(t, err, ErrQuestionNotInExam)
	})

	t.Run("unknown session", func(t *testing.T) {
		err := f.svc.RecordAnswer(ctx, uuid.New(), q.QuestionID, "A")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("answering moves the cursor", func(t *testing.T) {
		q5 := view.Questions[5]
		require.NoError(t, f.svc.RecordAnswer(ctx, view.SessionID, q5.QuestionID, "A"))

		current, err := f.svc.GetSession(view.SessionID)
		require.NoError(t, err)
		assert.Equal(t, 5, current.CurrentIndex)
	})
}

func TestNavigate(t *testing.T) {
	f := newExamFixture(t)

	view, err := f.svc.StartSession(context.Background(), nil, simulationConfig(t))
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("non-linear navigation", func(t *testing.T) {
		current, err := f.svc.Navigate(ctx, view.SessionID, 29)
		require.NoError(t, err)
		assert.Equal(t, 29, current.CurrentIndex)

		current, err = f.svc.Navigate(ctx, view.SessionID, 3)
		require.NoError(t, err)
		assert.Equal(t, 3, current.CurrentIndex)
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := f.svc.Navigate(ctx, view.SessionID, 30)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
		_, err = f.svc.Navigate(ctx, view.SessionID, -1)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	})
}

func TestNoActionsAfterSubmission(t *testing.T) {
	f := newExamFixture(t)

	view, err := f.svc.StartSession(context.Background(), nil, simulationConfig(t))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = f.svc.SubmitSession(ctx, view.SessionID)
	require.NoError(t, err)

	err = f.svc.RecordAnswer(ctx, view.SessionID, view.Questions[0].QuestionID, "A")
	assert.ErrorIs(t, err, entities.ErrSessionNotActive)
	_, err = f.svc.Navigate(ctx, view.SessionID, 1)
	assert.ErrorIs(t, err, entities.ErrSessionNotActive)
}

func TestTimeAccrualAcrossRevisits(t *testing.T) {
	f := newExamFixture(t)
	now := time.Unix(1700000000, 0)
	f.svc.now = func() time.Time { return now }

	userID := uuid.New()
	cfg := simulationConfig(t)
	cfg.TimeLimit = 0 // keep the real timer out of a fake-clock test

	view, err := f.svc.StartSession(context.Background(), &userID, cfg)
	require.NoError(t, err)
	ctx := context.Background()
	q0 := view.Questions[0]
	q1 := view.Questions[1]

	now = now.Add(10 * time.Second)
	require.NoError(t, f.svc.RecordAnswer(ctx, view.SessionID, q0.QuestionID, string(q0.Correct)))

	now = now.Add(5 * time.Second)
	_, err = f.svc.Navigate(ctx, view.SessionID, 1)
	require.NoError(t, err)

	now = now.Add(7 * time.Second)
	require.NoError(t, f.svc.RecordAnswer(ctx, view.SessionID, q1.QuestionID, string(q1.Correct)))

	// Revisit the first question: its time keeps accumulating.
	now = now.Add(2 * time.Second)
	_, err = f.svc.Navigate(ctx, view.SessionID, 0)
	require.NoError(t, err)

	now = now.Add(6 * time.Second)
	_, err = f.svc.SubmitSession(ctx, view.SessionID)
	require.NoError(t, err)

	records := f.results.saved[view.SessionID]
	require.Len(t, records, 30)
	byQuestion := make(map[uuid.UUID]*entities.AnswerRecord)
	for _, record := range records {
		byQuestion[record.QuestionID] = record
	}

	// q0: 10s before answering, 5s before leaving, 6s on the revisit.
	assert.Equal(t, 21, byQuestion[q0.QuestionID].TimeSpentSeconds)
	// q1: 7s before answering, 2s before navigating back.
	assert.Equal(t, 9, byQuestion[q1.QuestionID].TimeSpentSeconds)

	finalized := f.results.finalized[view.SessionID]
	require.NotNil(t, finalized)
	require.NotNil(t, finalized.TimeSpentSeconds)
	assert.Equal(t, 30, *finalized.TimeSpentSeconds)
}

func TestErrorsModeUsesMissedQuestions(t *testing.T) {
	f := newExamFixture(t)
	userID := uuid.New()
	missed := []uuid.UUID{
		f.bank.questions[0].ID,
		f.bank.questions[11].ID,
		f.bank.questions[25].ID,
	}
	f.answers.incorrect = missed

	cfg, err := entities.ConfigFor(entities.ExamErrors)
	require.NoError(t, err)

	view, err := f.svc.StartSession(context.Background(), &userID, cfg)
	require.NoError(t, err)
	require.Len(t, view.Questions, 3)
	assert.Nil(t, view.RemainingSeconds)

	got := make(map[uuid.UUID]struct{})
	for _, q := range view.Questions {
		got[q.QuestionID] = struct{}{}
	}
	for _, id := range missed {
		assert.Contains(t, got, id)
	}

	// Untimed review carries no pass/fail verdict.
	answerAll(t, f.svc, view, false)
	result, err := f.svc.SubmitSession(context.Background(), view.SessionID)
	require.NoError(t, err)
	assert.Nil(t, result.Passed)
	assert.Equal(t, 0, result.CorrectCount)
}

func TestErrorsModeRequiresUser(t *testing.T) {
	f := newExamFixture(t)

	cfg, err := entities.ConfigFor(entities.ExamErrors)
	require.NoError(t, err)

	_, err = f.svc.StartSession(context.Background(), nil, cfg)
	assert.ErrorIs(t, err, ErrUserRequired)
}

func TestErrorsModeWithNoMistakes(t *testing.T) {
	f := newExamFixture(t)
	userID := uuid.New()

	cfg, err := entities.ConfigFor(entities.ExamErrors)
	require.NoError(t, err)

	_, err = f.svc.StartSession(context.Background(), &userID, cfg)
	assert.ErrorIs(t, err, ErrNoQuestionsAvailable)
}

func TestDeleteSessionDropsRuntimeAndRow(t *testing.T) {
	f := newExamFixture(t)
	userID := uuid.New()

	view, err := f.svc.StartSession(context.Background(), &userID, simulationConfig(t))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteSession(context.Background(), view.SessionID, userID))
	assert.Contains(t, f.results.deleted, view.SessionID)

	_, err = f.svc.GetSession(view.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRemoveStale(t *testing.T) {
	f := newExamFixture(t)
	now := time.Unix(1700000000, 0)
	f.svc.now = func() time.Time { return now }

	cfg, err := entities.ConfigFor(entities.ExamPractice)
	require.NoError(t, err)

	view, err := f.svc.StartSession(context.Background(), nil, cfg)
	require.NoError(t, err)

	// Still fresh: nothing to reap.
	assert.Zero(t, f.svc.RemoveStale(2*time.Hour))

	now = now.Add(3 * time.Hour)
	assert.Equal(t, 1, f.svc.RemoveStale(2*time.Hour))

	_, err = f.svc.GetSession(view.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
