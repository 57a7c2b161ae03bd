package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/placement-backend/internal/response"
	"github.com/stemsi/placement-backend/internal/service"
)

const (
	defaultPerPage = 50
	maxPerPage     = 200
)

// AdminHandler serves the admin dashboard data.
type AdminHandler struct {
	statsService *service.StatsService
	log          zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(statsService *service.StatsService, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		statsService: statsService,
		log:          log.With().Str("component", "admin_handler").Logger(),
	}
}

// GetStats godoc
// GET /api/v1/admin/stats
// Totals, average score and level distribution over completed tests.
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.statsService.Stats(c.Request.Context())
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// ListTests godoc
// GET /api/v1/admin/tests?page=1&per_page=50
func (h *AdminHandler) ListTests(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defaultPerPage)))

	tests, err := h.statsService.ListTests(c.Request.Context())
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	pagination := response.NewPagination(page, perPage, len(tests), defaultPerPage, maxPerPage)
	start, end := pagination.Bounds()
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"tests": tests[start:end]}, pagination)
}
