package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/classroom-backend/internal/catalog"
	"github.com/stemsi/classroom-backend/internal/config"
	"github.com/stemsi/classroom-backend/internal/handler"
	"github.com/stemsi/classroom-backend/internal/model"
	"github.com/stemsi/classroom-backend/internal/response"
	"github.com/stemsi/classroom-backend/internal/service"
)

type tokenTable map[string]*service.Claims

func (t tokenTable) ValidateToken(tok string) (*service.Claims, error) {
	if c, ok := t[tok]; ok {
		return c, nil
	}
	return nil, errors.New("bad token")
}

type noMembers struct{}

func (noMembers) Catalog(context.Context, int, uuid.UUID) (*catalog.Catalog, error) {
	return nil, service.ErrNotClassroomMember
}

func testRouter() *gin.Engine {
	tokens := tokenTable{
		"student": {UserID: 1, Role: model.RoleStudent},
		"teacher": {UserID: 2, Role: model.RoleTeacher},
	}
	h := &Handlers{
		Auth:      handler.NewAuthHandler(nil, zerolog.Nop()),
		Session:   handler.NewSessionHandler(zerolog.Nop()),
		Classroom: handler.NewClassroomHandler(nil),
		Exam:      handler.NewExamHandler(nil, nil),
		WS:        handler.NewWSHandler(nil, 0, zerolog.Nop(), nil),
		Monitor:   handler.NewMonitorHandler(nil, nil, nil, zerolog.Nop()),
		System:    handler.NewSystemHandler(nil, nil, nil, zerolog.Nop()),
	}
	return SetupRouter(tokens, noMembers{}, nil, h, &config.Config{GinMode: gin.TestMode})
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) response.ErrCode {
	t.Helper()
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error, w.Body.String())
	return body.Error.Code
}

func TestRouteGuards(t *testing.T) {
	classroom := "/api/v1/classrooms/" + uuid.NewString()
	cases := []struct {
		name   string
		method string
		path   string
		token  string
		status int
		code   response.ErrCode
	}{
		{"no token", http.MethodGet, classroom + "/exams", "", http.StatusUnauthorized, response.ErrTokenRequired},
		{"bad token", http.MethodGet, classroom + "/exams", "nope", http.StatusUnauthorized, response.ErrTokenInvalid},
		{"teacher on student route", http.MethodGet, classroom + "/exams", "teacher", http.StatusForbidden, response.ErrStudentAccessOnly},
		{"non-member", http.MethodPost, classroom + "/session/next", "student", http.StatusForbidden, response.ErrNotClassroomMember},
		{"bad classroom id", http.MethodGet, "/api/v1/classrooms/x/exams", "student", http.StatusBadRequest, response.ErrInvalidID},
		{"student on teacher route", http.MethodPost, "/api/v1/teacher/classrooms", "student", http.StatusForbidden, response.ErrTeacherAccessOnly},
		{"student on monitor", http.MethodGet, "/api/v1/teacher" + classroom[len("/api/v1"):] + "/exams/" + uuid.NewString() + "/monitor", "student", http.StatusForbidden, response.ErrTeacherAccessOnly},
		{"ws without token", http.MethodGet, "/ws/v1" + classroom[len("/api/v1"):] + "/session/stream", "", http.StatusUnauthorized, response.ErrTokenRequired},
	}

	r := testRouter()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, errCode(t, w))
		})
	}
}
