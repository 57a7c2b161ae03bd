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

// QuestionHandler serves question banks to test takers and admins.
type QuestionHandler struct {
	questionService *service.QuestionService
	log             zerolog.Logger
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService *service.QuestionService, log zerolog.Logger) *QuestionHandler {
	return &QuestionHandler{
		questionService: questionService,
		log:             log.With().Str("component", "question_handler").Logger(),
	}
}

// ListForExam godoc
// GET /api/v1/questions?exam_type=placement|sat
func (h *QuestionHandler) ListForExam(c *gin.Context) {
	examType := model.ParseExamType(c.Query("exam_type"))

	questions, err := h.questionService.ForDisplay(c.Request.Context(), examType)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam_type": examType, "questions": questions})
}

func bankParam(c *gin.Context) (model.Bank, bool) {
	bank, ok := model.ParseBank(c.Param("bank"))
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidBank)
	}
	return bank, ok
}

// ListBank godoc
// GET /api/v1/admin/questions/:bank
// Returns the bank including answer keys.
func (h *QuestionHandler) ListBank(c *gin.Context) {
	bank, ok := bankParam(c)
	if !ok {
		return
	}

	questions, err := h.questionService.ListBank(c.Request.Context(), bank)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"bank": bank, "questions": questions})
}

// UpsertQuestion godoc
// POST /api/v1/admin/questions/:bank
func (h *QuestionHandler) UpsertQuestion(c *gin.Context) {
	bank, ok := bankParam(c)
	if !ok {
		return
	}

	var req model.UpsertQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.Upsert(c.Request.Context(), bank, req)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, question)
}

// DeleteQuestion godoc
// DELETE /api/v1/admin/questions/:bank/:id
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	bank, ok := bankParam(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.questionService.Delete(c.Request.Context(), bank, id); err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"ok": true})
}
