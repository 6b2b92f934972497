package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/classroom-backend/internal/middleware"
	"github.com/stemsi/classroom-backend/internal/model"
	"github.com/stemsi/classroom-backend/internal/response"
	"github.com/stemsi/classroom-backend/internal/service"
)

type ownerFunc func(classroomID uuid.UUID, userID int) error

func (f ownerFunc) RequireOwner(_ context.Context, classroomID uuid.UUID, userID int) error {
	return f(classroomID, userID)
}

type listerFunc func(classroomID, examID uuid.UUID) ([]model.SubmissionResult, error)

func (f listerFunc) ListSubmissions(_ context.Context, classroomID, examID uuid.UUID) ([]model.SubmissionResult, error) {
	return f(classroomID, examID)
}

func TestMonitorRejectsBeforeStreaming(t *testing.T) {
	cases := []struct {
		name   string
		owner  error
		list   error
		path   string
		status int
		code   response.ErrCode
	}{
		{"bad exam id", nil, nil, "/nope", http.StatusBadRequest, response.ErrInvalidID},
		{"not owner", service.ErrNotClassroomOwner, nil, "/" + uuid.NewString(), http.StatusForbidden, response.ErrForbidden},
		{"no classroom", service.ErrClassroomNotFound, nil, "/" + uuid.NewString(), http.StatusNotFound, response.ErrNotFound},
		{"foreign exam", nil, service.ErrExamNotFound, "/" + uuid.NewString(), http.StatusNotFound, response.ErrExamNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewMonitorHandler(nil,
				listerFunc(func(uuid.UUID, uuid.UUID) ([]model.SubmissionResult, error) { return nil, tc.list }),
				ownerFunc(func(uuid.UUID, int) error { return tc.owner }),
				zerolog.Nop(),
			)
			r := gin.New()
			r.GET("/t/:classroom_id/:exam_id", func(c *gin.Context) {
				c.Set(middleware.ContextKeyClaims, &service.Claims{UserID: 9, Role: model.RoleTeacher})
			}, h.MonitorExamSSE)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t/"+uuid.NewString()+tc.path, nil))

			assert.Equal(t, tc.status, w.Code)
			var body response.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body.Error.Code)
		})
	}
}

func TestMonitorSnapshotCountsGraded(t *testing.T) {
	score := 7.5
	h := NewMonitorHandler(nil,
		listerFunc(func(uuid.UUID, uuid.UUID) ([]model.SubmissionResult, error) {
			return []model.SubmissionResult{
				{Submission: model.Submission{ID: uuid.New(), Score: &score}},
				{Submission: model.Submission{ID: uuid.New()}},
			}, nil
		}),
		nil, zerolog.Nop(),
	)

	snap, err := h.snapshot(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "snapshot", snap.Type)
	assert.Equal(t, 2, snap.Stats.TotalSubmitted)
	assert.Equal(t, 1, snap.Stats.TotalGraded)
}
