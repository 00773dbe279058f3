package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idanlevi/theory-exam/internal/domain/entities"
	"github.com/idanlevi/theory-exam/internal/service"
)

// Handler exposes the exam engine over a thin JSON API. It does
// request/response mapping only; all exam rules live in the service.
type Handler struct {
	exams  *service.ExamService
	logger *zap.Logger
}

// NewHandler creates the API handler.
func NewHandler(exams *service.ExamService, logger *zap.Logger) *Handler {
	return &Handler{exams: exams, logger: logger}
}

// Register mounts the API routes on the app.
func (h *Handler) Register(app *fiber.App) {
	api := app.Group("/api")

	api.Post("/exams", h.startExam)
	api.Get("/exams/:id", h.getExam)
	api.Post("/exams/:id/answer", h.recordAnswer)
	api.Post("/exams/:id/navigate", h.navigate)
	api.Post("/exams/:id/submit", h.submitExam)
	api.Delete("/sessions/:id", h.deleteSession)
	api.Get("/users/:userID/history", h.history)
	api.Get("/users/:userID/summary", h.summary)
}

func (h *Handler) startExam(c *fiber.Ctx) error {
	var req startExamRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	examType, err := entities.ParseExamType(req.Type)
	if err != nil {
		return h.fail(c, err)
	}
	cfg, err := entities.ConfigFor(examType)
	if err != nil {
		return h.fail(c, err)
	}

	var userID *uuid.UUID
	if req.UserID != nil {
		id, err := uuid.Parse(*req.UserID)
		if err != nil {
			return badRequest(c, "invalid user id")
		}
		userID = &id
	}

	view, err := h.exams.StartSession(c.Context(), userID, cfg)
	if err != nil {
		return h.fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(toSessionResponse(view))
}

func (h *Handler) getExam(c *fiber.Ctx) error {
	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid session id")
	}

	view, err := h.exams.GetSession(sessionID)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(toSessionResponse(view))
}

func (h *Handler) recordAnswer(c *fiber.Ctx) error {
	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid session id")
	}

	var req answerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		return badRequest(c, "invalid question id")
	}

	if err := h.exams.RecordAnswer(c.Context(), sessionID, questionID, req.Label); err != nil {
		return h.fail(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) navigate(c *fiber.Ctx) error {
	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid session id")
	}

	var req navigateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	view, err := h.exams.Navigate(c.Context(), sessionID, req.Index)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(toSessionResponse(view))
}

func (h *Handler) submitExam(c *fiber.Ctx) error {
	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid session id")
	}

	result, err := h.exams.SubmitSession(c.Context(), sessionID)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(toResultResponse(result))
}

func (h *Handler) deleteSession(c *fiber.Ctx) error {
	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid session id")
	}
	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		return badRequest(c, "invalid user id")
	}

	if err := h.exams.DeleteSession(c.Context(), sessionID, userID); err != nil {
		return h.fail(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) history(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userID"))
	if err != nil {
		return badRequest(c, "invalid user id")
	}
	limit := c.QueryInt("limit", 50)

	sessions, err := h.exams.History(c.Context(), userID, limit)
	if err != nil {
		return h.fail(c, err)
	}

	entries := make([]historyEntry, len(sessions))
	for i, session := range sessions {
		entries[i] = toHistoryEntry(session)
	}
	return c.JSON(entries)
}

func (h *Handler) summary(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userID"))
	if err != nil {
		return badRequest(c, "invalid user id")
	}

	summary, err := h.exams.Summary(c.Context(), userID)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(fiber.Map{
		"total_exams":   summary.TotalExams,
		"passed_exams":  summary.PassedExams,
		"average_score": summary.AverageScore,
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}

// fail maps service sentinels to HTTP statuses.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
	case errors.Is(err, service.ErrUserRequired):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "sign in to review your mistakes"})
	case errors.Is(err, entities.ErrSessionNotActive),
		errors.Is(err, entities.ErrAlreadyCompleted):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "session is no longer active"})
	case errors.Is(err, entities.ErrInvalidLabel),
		errors.Is(err, entities.ErrUnknownExamType),
		errors.Is(err, service.ErrIndexOutOfRange),
		errors.Is(err, service.ErrQuestionNotInExam):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNoQuestionsAvailable),
		errors.Is(err, service.ErrInsufficientPool),
		errors.Is(err, service.ErrNoAnswerKey),
		errors.Is(err, entities.ErrInvalidQuestion):
		// The question bank cannot produce a valid exam right now;
		// the client shows a failure screen with a way back home.
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "no questions available"})
	default:
		h.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
