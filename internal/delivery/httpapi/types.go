package httpapi

import (
	"time"

	"github.com/idanlevi/theory-exam/internal/domain/entities"
	"github.com/idanlevi/theory-exam/internal/service"
)

type startExamRequest struct {
	Type   string  `json:"type"`
	UserID *string `json:"user_id,omitempty"`
}

type answerRequest struct {
	QuestionID string `json:"question_id"`
	Label      string `json:"label"`
}

type navigateRequest struct {
	Index int `json:"index"`
}

// optionResponse is an answer option as shown to the test-taker.
// The correct label never leaves the server while an exam is running.
type optionResponse struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

type questionResponse struct {
	QuestionID string           `json:"question_id"`
	Text       string           `json:"text"`
	Chapter    int              `json:"chapter"`
	ImageURL   string           `json:"image_url,omitempty"`
	Options    []optionResponse `json:"options"`
}

type sessionResponse struct {
	SessionID        string             `json:"session_id"`
	Type             string             `json:"type"`
	Status           string             `json:"status"`
	TotalQuestions   int                `json:"total_questions"`
	CurrentIndex     int                `json:"current_index"`
	AnsweredCount    int                `json:"answered_count"`
	RemainingSeconds *int               `json:"remaining_seconds,omitempty"`
	Questions        []questionResponse `json:"questions"`
	Selected         []*string          `json:"selected"`
}

type resultResponse struct {
	CorrectCount     int      `json:"correct_count"`
	TotalCount       int      `json:"total_count"`
	Percentage       int      `json:"percentage"`
	Passed           *bool    `json:"passed"`
	WrongQuestionIDs []string `json:"wrong_question_ids"`
}

type historyEntry struct {
	SessionID        string     `json:"session_id"`
	Type             string     `json:"type"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	TotalQuestions   int        `json:"total_questions"`
	Score            *int       `json:"score,omitempty"`
	Passed           *bool      `json:"passed,omitempty"`
	TimeSpentSeconds *int       `json:"time_spent_seconds,omitempty"`
}

func toSessionResponse(view *service.SessionView) sessionResponse {
	resp := sessionResponse{
		SessionID:        view.SessionID.String(),
		Type:             string(view.Type),
		Status:           string(view.Status),
		TotalQuestions:   view.TotalQuestions,
		CurrentIndex:     view.CurrentIndex,
		AnsweredCount:    view.AnsweredCount,
		RemainingSeconds: view.RemainingSeconds,
		Questions:        make([]questionResponse, len(view.Questions)),
		Selected:         make([]*string, len(view.Selected)),
	}
	for i, q := range view.Questions {
		options := make([]optionResponse, len(q.Options))
		for j, opt := range q.Options {
			options[j] = optionResponse{Label: string(opt.Label), Text: opt.Text}
		}
		resp.Questions[i] = questionResponse{
			QuestionID: q.QuestionID.String(),
			Text:       q.Text,
			Chapter:    q.Chapter,
			ImageURL:   q.ImageURL,
			Options:    options,
		}
	}
	for i, label := range view.Selected {
		if label != nil {
			s := string(*label)
			resp.Selected[i] = &s
		}
	}
	return resp
}

func toResultResponse(result *service.ScoringResult) resultResponse {
	resp := resultResponse{
		CorrectCount:     result.CorrectCount,
		TotalCount:       result.TotalCount,
		Percentage:       result.Percentage,
		Passed:           result.Passed,
		WrongQuestionIDs: make([]string, len(result.WrongQuestionIDs)),
	}
	for i, id := range result.WrongQuestionIDs {
		resp.WrongQuestionIDs[i] = id.String()
	}
	return resp
}

func toHistoryEntry(session *entities.ExamSession) historyEntry {
	return historyEntry{
		SessionID:        session.ID.String(),
		Type:             string(session.Type),
		StartedAt:        session.StartedAt,
		EndedAt:          session.EndedAt,
		TotalQuestions:   session.TotalQuestions,
		Score:            session.Score,
		Passed:           session.Passed,
		TimeSpentSeconds: session.TimeSpentSeconds,
	}
}
