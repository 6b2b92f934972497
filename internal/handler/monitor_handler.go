package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/classroom-backend/internal/config"
	"github.com/stemsi/classroom-backend/internal/middleware"
	"github.com/stemsi/classroom-backend/internal/model"
	"github.com/stemsi/classroom-backend/internal/response"
	"github.com/stemsi/classroom-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// SubmissionLister lists an exam's submissions for its classroom owner.
type SubmissionLister interface {
	ListSubmissions(ctx context.Context, classroomID, examID uuid.UUID) ([]model.SubmissionResult, error)
}

// OwnerChecker verifies classroom ownership.
type OwnerChecker interface {
	RequireOwner(ctx context.Context, classroomID uuid.UUID, userID int) error
}

// MonitorHandler streams an exam's submissions and grades to its teacher via SSE.
type MonitorHandler struct {
	rdb         redis.UniversalClient
	submissions SubmissionLister
	owners      OwnerChecker
	log         zerolog.Logger
}

func NewMonitorHandler(
	rdb redis.UniversalClient,
	submissions SubmissionLister,
	owners OwnerChecker,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:         rdb,
		submissions: submissions,
		owners:      owners,
		log:         log.With().Str("component", "monitor_handler").Logger(),
	}
}

type monitorStats struct {
	TotalSubmitted int `json:"total_submitted"`
	TotalGraded    int `json:"total_graded"`
}

type monitorSnapshot struct {
	Type        string                   `json:"type"`
	ExamID      uuid.UUID                `json:"exam_id"`
	Stats       monitorStats             `json:"stats"`
	Submissions []model.SubmissionResult `json:"submissions"`
}

// MonitorExamSSE godoc
// GET /api/v1/teacher/classrooms/:classroom_id/exams/:exam_id/monitor
// Sends a snapshot, then forwards submitted and graded events as they happen.
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	classroomID, err := uuid.Parse(c.Param("classroom_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	reqCtx := c.Request.Context()

	if err := h.owners.RequireOwner(reqCtx, classroomID, claims.UserID); err != nil {
		if !failOwnership(c, err) {
			_ = c.Error(err)
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	// Validate the exam before switching to a stream.
	snapshot, err := h.snapshot(reqCtx, classroomID, examID)
	if err != nil {
		if errors.Is(err, service.ErrExamNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
			return
		}
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.SSEvent("message", snapshot)
	c.Writer.Flush()

	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.ExamMonitorChannel(examID.String()))
	defer pubsub.Close()
	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Refreshes are skipped until an event shows the exam is being taken.
	active := len(snapshot.Submissions) > 0

	h.log.Info().Str("exam_id", examID.String()).Msg("Teacher attached to exam monitor")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Teacher detached from exam monitor")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Forward raw JSON directly, no deserialization needed
			writeSSEData(c, []byte(msg.Payload))
			active = true

		case <-refreshTicker.C:
			if !active {
				continue
			}
			ctx, cancel := context.WithTimeout(reqCtx, refreshTimeout)
			snap, err := h.snapshot(ctx, classroomID, examID)
			cancel()
			if err != nil {
				h.log.Warn().Err(err).Msg("Failed to refresh exam monitor")
				continue
			}
			snap.Type = "refresh"
			c.SSEvent("message", snap)
			c.Writer.Flush()

		case <-keepAliveTicker.C:
			writeSSEData(c, pingPayload)
		}
	}
}

func (h *MonitorHandler) snapshot(ctx context.Context, classroomID, examID uuid.UUID) (*monitorSnapshot, error) {
	results, err := h.submissions.ListSubmissions(ctx, classroomID, examID)
	if err != nil {
		return nil, err
	}

	snap := &monitorSnapshot{
		Type:        "snapshot",
		ExamID:      examID,
		Submissions: results,
	}
	snap.Stats.TotalSubmitted = len(results)
	for _, r := range results {
		if r.Score != nil {
			snap.Stats.TotalGraded++
		}
	}
	return snap, nil
}

func writeSSEData(c *gin.Context, payload []byte) {
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(payload)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}
