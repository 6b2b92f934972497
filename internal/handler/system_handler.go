package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/classroom-backend/internal/config"
)

const healthTimeout = 2 * time.Second

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SessionCounter reports how many exam sessions are open.
type SessionCounter interface {
	OpenSessions() int
}

// SystemHandler reports process and dependency health.
type SystemHandler struct {
	db        Pinger
	rdb       redis.UniversalClient
	sessions  SessionCounter
	startTime time.Time
	log       zerolog.Logger
}

func NewSystemHandler(db Pinger, rdb redis.UniversalClient, sessions SessionCounter, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		db:        db,
		rdb:       rdb,
		sessions:  sessions,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type healthReport struct {
	Status       string `json:"status"`
	Postgres     string `json:"postgres"`
	Redis        string `json:"redis"`
	Uptime       string `json:"uptime"`
	OpenSessions int    `json:"open_sessions"`
	GradeQueue   int64  `json:"grade_queue"`
	Goroutines   int    `json:"goroutines"`
	GoVersion    string `json:"go_version"`
}

// Health godoc
// GET /health
// Returns 503 when PostgreSQL or Redis is unreachable.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	report := healthReport{
		Status:     "ok",
		Postgres:   "ok",
		Redis:      "ok",
		Uptime:     formatDuration(time.Since(h.startTime)),
		Goroutines: runtime.NumGoroutine(),
		GoVersion:  runtime.Version(),
	}
	if h.sessions != nil {
		report.OpenSessions = h.sessions.OpenSessions()
	}

	if err := h.db.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("PostgreSQL ping failed")
		report.Postgres = "unreachable"
		report.Status = "degraded"
	}

	pipe := h.rdb.Pipeline()
	pipe.Ping(ctx)
	queueCmd := pipe.LLen(ctx, config.WorkerKey.GradeSubmissionsQueue)
	if _, err := pipe.Exec(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Redis ping failed")
		report.Redis = "unreachable"
		report.Status = "degraded"
	} else {
		report.GradeQueue, _ = queueCmd.Result()
	}

	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

func formatDuration(d time.Duration) string {
	return d.Truncate(time.Second).String()
}
