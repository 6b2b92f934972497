package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/classroom-backend/internal/config"
	"github.com/stemsi/classroom-backend/internal/handler"
	"github.com/stemsi/classroom-backend/internal/middleware"
	"github.com/stemsi/classroom-backend/internal/model"
	"github.com/stemsi/classroom-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Session   *handler.SessionHandler
	Classroom *handler.ClassroomHandler
	Exam      *handler.ExamHandler
	WS        *handler.WSHandler
	Monitor   *handler.MonitorHandler
	System    *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// loginLimiter may be nil to disable login rate limiting.
func SetupRouter(
	tokens middleware.TokenValidator,
	catalogs middleware.CatalogProvider,
	loginLimiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check, uncompressed for probes.
	router.GET("/health", handlers.System.Health)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(middleware.Brotli())
	{
		if loginLimiter != nil {
			auth.POST("/login", loginLimiter.Middleware(), handlers.Auth.Login)
		} else {
			auth.POST("/login", handlers.Auth.Login)
		}
		auth.GET("/me", middleware.RequireJWT(tokens), handlers.Auth.GetProfile)
	}

	// ─── 2. Classroom Group (JWT + Membership) ─────────────────────────
	classroomAPI := router.Group("/api/v1/classrooms/:classroom_id")
	classroomAPI.Use(
		middleware.Brotli(),
		middleware.RequireJWT(tokens),
		middleware.RequireRole(model.RoleStudent),
		middleware.RequireClassroomMember(catalogs),
		middleware.NoStore(),
	)
	{
		classroomAPI.GET("/exams", handlers.Session.ListExams)
		classroomAPI.POST("/exams/:exam_id/start", handlers.Session.StartExam)
		classroomAPI.POST("/exams/:exam_id/review", handlers.Session.ReviewExam)

		session := classroomAPI.Group("/session")
		session.GET("", handlers.Session.GetSession)
		session.POST("/answer", handlers.Session.SelectAnswer)
		session.POST("/next", handlers.Session.Next)
		session.POST("/previous", handlers.Session.Previous)
		session.POST("/submit", handlers.Session.Submit)
		session.POST("/close", handlers.Session.Close)
	}

	// ─── 3. WebSocket Group (WS Auth + Membership) ─────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireWSAuth(tokens),
		middleware.RequireRole(model.RoleStudent),
	)
	{
		ws.GET("/classrooms/:classroom_id/session/stream",
			middleware.RequireClassroomMember(catalogs),
			handlers.WS.SessionStream,
		)
	}

	// ─── 4. Teacher Group (JWT + Role) ─────────────────────────────────
	teacherAPI := router.Group("/api/v1/teacher")
	teacherAPI.Use(
		middleware.Brotli(),
		middleware.RequireJWT(tokens),
		middleware.RequireRole(model.RoleTeacher),
	)
	{
		teacherAPI.POST("/classrooms", handlers.Classroom.CreateClassroom)
		teacherAPI.POST("/classrooms/:classroom_id/members", handlers.Classroom.AddMember)
		teacherAPI.POST("/classrooms/:classroom_id/exams", handlers.Exam.CreateExam)
		teacherAPI.GET("/classrooms/:classroom_id/exams/:exam_id/submissions", handlers.Exam.ListSubmissions)
	}

	// SSE is streamed uncompressed.
	teacherStream := router.Group("/api/v1/teacher")
	teacherStream.Use(
		middleware.RequireJWT(tokens),
		middleware.RequireRole(model.RoleTeacher),
	)
	{
		teacherStream.GET("/classrooms/:classroom_id/exams/:exam_id/monitor", handlers.Monitor.MonitorExamSSE)
	}

	return router
}
