package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/placement-backend/internal/model"
	"github.com/stemsi/placement-backend/internal/response"
	"github.com/stemsi/placement-backend/internal/service"
	"github.com/stemsi/placement-backend/internal/validator"
)

// TestHandler exposes the test session lifecycle.
type TestHandler struct {
	sessionService  *service.TestSessionService
	questionService *service.QuestionService
	log             zerolog.Logger
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(sessionService *service.TestSessionService, questionService *service.QuestionService, log zerolog.Logger) *TestHandler {
	return &TestHandler{
		sessionService:  sessionService,
		questionService: questionService,
		log:             log.With().Str("component", "test_handler").Logger(),
	}
}

// StartTest godoc
// POST /api/v1/tests/start
func (h *TestHandler) StartTest(c *gin.Context) {
	var req model.StartTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.sessionService.Start(c.Request.Context(), req.UserID, req.ExamType)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, test)
}

// GetQuestions godoc
// GET /api/v1/tests/:test_id/questions
// Returns the question set of the test without answer keys.
func (h *TestHandler) GetQuestions(c *gin.Context) {
	testID, ok := paramID(c, "test_id")
	if !ok {
		return
	}

	questions, err := h.questionService.ForTest(c.Request.Context(), testID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// SubmitAnswers godoc
// POST /api/v1/tests/:test_id/answers
// Stores a page of answers. Later answers replace earlier ones.
func (h *TestHandler) SubmitAnswers(c *gin.Context) {
	testID, ok := paramID(c, "test_id")
	if !ok {
		return
	}

	var req model.SubmitAnswersRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessionService.SubmitAnswers(c.Request.Context(), testID, req.Answers); err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"ok": true})
}

// FinishAnswers godoc
// POST /api/v1/tests/:test_id/finish-answers
// Scores the multiple-choice phase.
func (h *TestHandler) FinishAnswers(c *gin.Context) {
	testID, ok := paramID(c, "test_id")
	if !ok {
		return
	}

	result, err := h.sessionService.FinishAnswers(c.Request.Context(), testID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// GetModuleScore godoc
// GET /api/v1/tests/:test_id/module-score?section=verbal|math
func (h *TestHandler) GetModuleScore(c *gin.Context) {
	testID, ok := paramID(c, "test_id")
	if !ok {
		return
	}

	score, err := h.sessionService.ModuleScore(c.Request.Context(), testID, c.Query("section"))
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, score)
}

// SaveEssay godoc
// POST /api/v1/tests/:test_id/essays/:which
func (h *TestHandler) SaveEssay(c *gin.Context) {
	testID, ok := paramID(c, "test_id")
	if !ok {
		return
	}
	which, ok := paramID(c, "which")
	if !ok {
		return
	}

	var req model.SaveEssayRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.sessionService.SaveEssay(c.Request.Context(), testID, which, req.Text)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// FinishTest godoc
// POST /api/v1/tests/:test_id/finish
func (h *TestHandler) FinishTest(c *gin.Context) {
	testID, ok := paramID(c, "test_id")
	if !ok {
		return
	}

	result, err := h.sessionService.Finish(c.Request.Context(), testID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// GetResult godoc
// GET /api/v1/tests/:test_id/result
func (h *TestHandler) GetResult(c *gin.Context) {
	testID, ok := paramID(c, "test_id")
	if !ok {
		return
	}

	result, err := h.sessionService.Result(c.Request.Context(), testID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}
