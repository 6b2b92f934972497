package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/classroom-backend/internal/catalog"
	"github.com/stemsi/classroom-backend/internal/clock"
	"github.com/stemsi/classroom-backend/internal/examsession"
	"github.com/stemsi/classroom-backend/internal/middleware"
	"github.com/stemsi/classroom-backend/internal/model"
	"github.com/stemsi/classroom-backend/internal/response"
	"github.com/stemsi/classroom-backend/internal/service"
	"github.com/stemsi/classroom-backend/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

/* ---------------- Fakes ---------------- */

type staticExams []model.Exam

func (s staticExams) ListExamsForContext(context.Context, uuid.UUID) ([]model.Exam, error) {
	return s, nil
}

type memStore struct {
	mu        sync.Mutex
	subs      map[uuid.UUID]model.Submission
	createErr error
}

func (m *memStore) ListSubmissionsForContext(context.Context, uuid.UUID, int) ([]model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Submission, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) CreateSubmission(_ context.Context, userID int, examID uuid.UUID, answers model.AnswerSet) (*model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	if _, ok := m.subs[examID]; ok {
		return nil, fmt.Errorf("insert submission: %w", model.ErrAlreadySubmitted)
	}
	s := model.Submission{ID: uuid.New(), ExamID: examID, UserID: userID, Answers: answers, SubmittedAt: time.Now()}
	m.subs[examID] = s
	return &s, nil
}

func quiz(n int) model.Exam {
	e := model.Exam{ID: uuid.New(), Topic: "Fractions", Marks: 10, TimeoutMinutes: 2}
	for i := 0; i < n; i++ {
		e.Questions = append(e.Questions, model.Question{
			ID:            uuid.New(),
			ExamID:        e.ID,
			Position:      i,
			Text:          fmt.Sprintf("Q%d", i+1),
			Options:       []string{"A", "B"},
			CorrectAnswer: "B",
		})
	}
	return e
}

func newCatalog(t *testing.T, store *memStore, exams ...model.Exam) *catalog.Catalog {
	t.Helper()
	cat := catalog.New(catalog.Config{
		UserID:      3,
		ClassroomID: uuid.New(),
		Exams:       staticExams(exams),
		Submissions: store,
		Clock:       clock.NewManual(time.Now()),
		Log:         zerolog.Nop(),
	})
	t.Cleanup(cat.Shutdown)
	return cat
}

// withCatalog stands in for RequireJWT and RequireClassroomMember.
func withCatalog(cat *catalog.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{UserID: 3, Role: model.RoleStudent})
		c.Set(middleware.ContextKeyCatalog, cat)
		c.Next()
	}
}

func sessionRouter(cat *catalog.Catalog) *gin.Engine {
	h := NewSessionHandler(zerolog.Nop())
	r := gin.New()
	g := r.Group("/c/:classroom_id", withCatalog(cat))
	g.GET("/exams", h.ListExams)
	g.POST("/exams/:exam_id/start", h.StartExam)
	g.POST("/exams/:exam_id/review", h.ReviewExam)
	g.GET("/session", h.GetSession)
	g.POST("/session/answer", h.SelectAnswer)
	g.POST("/session/next", h.Next)
	g.POST("/session/previous", h.Previous)
	g.POST("/session/submit", h.Submit)
	g.POST("/session/close", h.Close)
	return r
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

type sessionData struct {
	Session examsession.View `json:"session"`
}

func call(t *testing.T, r *gin.Engine, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/c/"+uuid.NewString()+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func viewOf(t *testing.T, env envelope) examsession.View {
	t.Helper()
	var d sessionData
	require.NoError(t, json.Unmarshal(env.Data, &d))
	return d.Session
}

/* ---------------- Tests ---------------- */

func TestSessionLifecycle(t *testing.T) {
	exam := quiz(2)
	store := &memStore{subs: map[uuid.UUID]model.Submission{}}
	r := sessionRouter(newCatalog(t, store, exam))
	start := "/exams/" + exam.ID.String() + "/start"

	code, env := call(t, r, http.MethodPost, start, nil)
	require.Equal(t, http.StatusCreated, code)
	v := viewOf(t, env)
	assert.Equal(t, examsession.ModeLive, v.Mode)
	assert.Equal(t, 0, v.QuestionIndex)
	require.NotNil(t, v.RemainingSeconds)
	assert.Equal(t, 120, *v.RemainingSeconds)

	code, env = call(t, r, http.MethodPost, "/session/answer", model.SelectAnswerRequest{Option: "Z"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, response.ErrActionIgnored, env.Error.Code)

	code, env = call(t, r, http.MethodPost, "/session/answer", model.SelectAnswerRequest{Option: "B"})
	require.Equal(t, http.StatusOK, code)
	assert.True(t, viewOf(t, env).Question.Options[1].Selected)

	code, env = call(t, r, http.MethodPost, "/session/submit", nil)
	assert.Equal(t, http.StatusConflict, code, "submit is only offered on the last question")
	assert.Equal(t, response.ErrActionIgnored, env.Error.Code)

	code, env = call(t, r, http.MethodPost, "/session/next", nil)
	require.Equal(t, http.StatusOK, code)
	v = viewOf(t, env)
	assert.True(t, v.IsLast)
	assert.True(t, v.CanSubmit)

	code, env = call(t, r, http.MethodPost, start, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, response.ErrSessionInProgress, env.Error.Code)

	code, _ = call(t, r, http.MethodPost, "/session/submit", nil)
	require.Equal(t, http.StatusCreated, code)
	require.Contains(t, store.subs, exam.ID)
	assert.Len(t, store.subs[exam.ID].Answers, 2)

	code, env = call(t, r, http.MethodGet, "/session", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, response.ErrNoActiveSession, env.Error.Code)

	code, env = call(t, r, http.MethodPost, start, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, response.ErrExamAlreadySubmitted, env.Error.Code)

	code, env = call(t, r, http.MethodGet, "/exams", nil)
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Exams []model.ExamSummary `json:"exams"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Exams, 1)
	assert.True(t, list.Exams[0].Submitted)
}

func TestReviewAndClose(t *testing.T) {
	exam := quiz(1)
	b := "A"
	store := &memStore{subs: map[uuid.UUID]model.Submission{
		exam.ID: {ID: uuid.New(), ExamID: exam.ID, Answers: model.AnswerSet{exam.Questions[0].ID: &b}},
	}}
	r := sessionRouter(newCatalog(t, store, exam))

	code, env := call(t, r, http.MethodPost, "/exams/"+exam.ID.String()+"/review", nil)
	require.Equal(t, http.StatusCreated, code)
	v := viewOf(t, env)
	assert.Equal(t, examsession.ModeReview, v.Mode)
	assert.Nil(t, v.RemainingSeconds)
	assert.Equal(t, examsession.OptionIncorrectSelected, v.Question.Options[0].Status)
	assert.Equal(t, examsession.OptionCorrect, v.Question.Options[1].Status)

	code, env = call(t, r, http.MethodPost, "/session/answer", model.SelectAnswerRequest{Option: "B"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, response.ErrActionIgnored, env.Error.Code)

	code, _ = call(t, r, http.MethodPost, "/session/close", nil)
	assert.Equal(t, http.StatusOK, code)
	code, env = call(t, r, http.MethodPost, "/session/close", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, response.ErrNoActiveSession, env.Error.Code)
}

func TestSessionRequestErrors(t *testing.T) {
	exam, empty := quiz(1), quiz(0)
	store := &memStore{subs: map[uuid.UUID]model.Submission{}}
	r := sessionRouter(newCatalog(t, store, exam, empty))

	cases := []struct {
		name   string
		path   string
		body   interface{}
		status int
		code   response.ErrCode
	}{
		{"malformed exam id", "/exams/nope/start", nil, http.StatusBadRequest, response.ErrInvalidID},
		{"unknown exam", "/exams/" + uuid.NewString() + "/start", nil, http.StatusNotFound, response.ErrExamNotFound},
		{"exam without questions", "/exams/" + empty.ID.String() + "/start", nil, http.StatusUnprocessableEntity, response.ErrInvalidExam},
		{"review without submission", "/exams/" + exam.ID.String() + "/review", nil, http.StatusNotFound, response.ErrNoSubmission},
		{"answer without session", "/session/answer", model.SelectAnswerRequest{Option: "A"}, http.StatusNotFound, response.ErrNoActiveSession},
		{"answer missing option", "/session/answer", map[string]string{}, http.StatusBadRequest, response.ErrValidation},
		{"submit without session", "/session/submit", nil, http.StatusNotFound, response.ErrNoActiveSession},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, env := call(t, r, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.status, code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestSubmitPersistenceFailure(t *testing.T) {
	exam := quiz(1)
	store := &memStore{subs: map[uuid.UUID]model.Submission{}, createErr: errors.New("connection reset")}
	cat := newCatalog(t, store, exam)
	r := sessionRouter(cat)

	code, _ := call(t, r, http.MethodPost, "/exams/"+exam.ID.String()+"/start", nil)
	require.Equal(t, http.StatusCreated, code)

	code, env := call(t, r, http.MethodPost, "/session/submit", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, response.ErrSubmissionFailed, env.Error.Code)
	assert.Nil(t, cat.Active(), "a failed write still closes the session")
	assert.False(t, cat.IsSubmitted(exam.ID))
}
