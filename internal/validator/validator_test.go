package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/classroom-backend/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
	Setup()
}

func bindBody(t *testing.T, body string, dst interface{}) map[string]string {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return Bind(c, dst)
}

func TestBindCreateExam(t *testing.T) {
	var req model.CreateExamRequest
	fields := bindBody(t, `{
		"topic": "Cells",
		"marks": 10,
		"timeout_minutes": "bogus",
		"questions": [{"text": "Powerhouse?", "options": ["Nucleus", "Mitochondria"], "correct_answer": "Mitochondria"}]
	}`, &req)

	require.Nil(t, fields)
	assert.Equal(t, 0, req.TimeoutMinutes.Seconds())
	assert.Len(t, req.Questions, 1)
}

func TestBindRejectsAnswerOutsideOptions(t *testing.T) {
	var req model.CreateExamRequest
	fields := bindBody(t, `{
		"topic": "Cells",
		"marks": 10,
		"questions": [{"text": "Powerhouse?", "options": ["Nucleus", "Nucleus"], "correct_answer": "Ribosome"}]
	}`, &req)

	require.NotNil(t, fields)
	assert.Contains(t, fields, "correct_answer")
	assert.Contains(t, fields, "options")
}

func TestBindReportsMissingFields(t *testing.T) {
	var req model.LoginRequest
	fields := bindBody(t, `{"email": "not-an-email"}`, &req)

	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
}

func TestBindSyntaxError(t *testing.T) {
	var req model.LoginRequest
	fields := bindBody(t, `{`, &req)
	assert.Contains(t, fields, "detail")
}
