package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/placement-backend/internal/config"
	"github.com/stemsi/placement-backend/internal/response"
)

const healthRedisTimeout = 2 * time.Second

// HealthHandler reports liveness plus the storage backend and Redis state.
type HealthHandler struct {
	backend   string
	rdb       *redis.Client
	startTime time.Time
	log       zerolog.Logger
}

func NewHealthHandler(backend string, rdb *redis.Client, log zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		backend:   backend,
		rdb:       rdb,
		startTime: time.Now(),
		log:       log.With().Str("component", "health_handler").Logger(),
	}
}

type healthStatus struct {
	Status      string `json:"status"`
	Storage     string `json:"storage"`
	Redis       string `json:"redis"`
	NotifyQueue int64  `json:"notify_queue"`
	Uptime      string `json:"uptime"`
	Goroutines  int    `json:"goroutines"`
	GoVersion   string `json:"go_version"`
}

// Health godoc
// GET /health
// Redis being down degrades the service but does not fail the check.
func (h *HealthHandler) Health(c *gin.Context) {
	s := healthStatus{
		Status:     "ok",
		Storage:    h.backend,
		Redis:      "disabled",
		Uptime:     formatDuration(time.Since(h.startTime)),
		Goroutines: runtime.NumGoroutine(),
		GoVersion:  runtime.Version(),
	}

	if h.rdb != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthRedisTimeout)
		defer cancel()

		pipe := h.rdb.Pipeline()
		pingCmd := pipe.Ping(ctx)
		queueCmd := pipe.LLen(ctx, config.WorkerKey.NotifyResultsQueue)
		_, err := pipe.Exec(ctx)

		if err != nil || pingCmd.Err() != nil {
			h.log.Warn().Err(err).Msg("Redis health check failed")
			s.Status = "degraded"
			s.Redis = "down"
		} else {
			s.Redis = "ok"
			s.NotifyQueue, _ = queueCmd.Result()
		}
	}

	response.Success(c, http.StatusOK, s)
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
