package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/placement-backend/internal/config"
	"github.com/stemsi/placement-backend/internal/handler"
	"github.com/stemsi/placement-backend/internal/middleware"
	"github.com/stemsi/placement-backend/internal/response"
	"github.com/stemsi/placement-backend/internal/service"
)

// questionsMaxAge is how long browsers may reuse the public question list.
const questionsMaxAge = 60

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	User     *handler.UserHandler
	Test     *handler.TestHandler
	Question *handler.QuestionHandler
	Admin    *handler.AdminHandler
	WS       *handler.WSHandler
	Health   *handler.HealthHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// limiter may be nil, which disables rate limiting.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	limiter *middleware.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.Health.Health)

	api := router.Group("/api/v1")
	if limiter != nil {
		api.Use(limiter.Middleware())
	}

	// ─── 1. Auth Group ─────────────────────────────────────────────────
	auth := api.Group("/auth")
	{
		auth.POST("/admin/login", handlers.Auth.AdminLogin)
		auth.GET("/admin/me", middleware.RequireAdminJWT(authService), handlers.Auth.GetAdminProfile)
	}

	// ─── 2. Public Group (test takers) ─────────────────────────────────
	api.POST("/users", handlers.User.RegisterUser)
	api.GET("/questions", middleware.CacheControl(questionsMaxAge), handlers.Question.ListForExam)

	tests := api.Group("/tests")
	tests.Use(middleware.NoStore())
	{
		tests.POST("/start", handlers.Test.StartTest)
		tests.GET("/:test_id/questions", handlers.Test.GetQuestions)
		tests.POST("/:test_id/answers", handlers.Test.SubmitAnswers)
		tests.POST("/:test_id/finish-answers", handlers.Test.FinishAnswers)
		tests.GET("/:test_id/module-score", handlers.Test.GetModuleScore)
		tests.POST("/:test_id/essays/:which", handlers.Test.SaveEssay)
		tests.POST("/:test_id/finish", handlers.Test.FinishTest)
		tests.GET("/:test_id/result", handlers.Test.GetResult)
	}

	// ─── 3. Admin Group (JWT) ──────────────────────────────────────────
	adminAPI := api.Group("/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService), middleware.NoStore())
	{
		adminAPI.GET("/users", handlers.User.ListUsers)
		adminAPI.PUT("/users/:id", handlers.User.UpdateUser)
		adminAPI.DELETE("/users/:id", handlers.User.DeleteUser)

		adminAPI.GET("/tests", handlers.Admin.ListTests)
		adminAPI.GET("/stats", handlers.Admin.GetStats)

		adminAPI.GET("/questions/:bank", handlers.Question.ListBank)
		adminAPI.POST("/questions/:bank", handlers.Question.UpsertQuestion)
		adminAPI.DELETE("/questions/:bank/:id", handlers.Question.DeleteQuestion)
	}

	// ─── 4. WebSocket Group (Admin WS Auth) ────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireAdminWSAuth(authService))
	{
		ws.GET("/admin/results", handlers.WS.ResultsMonitor)
	}

	return router
}
