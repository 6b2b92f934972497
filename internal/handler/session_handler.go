package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/classroom-backend/internal/catalog"
	"github.com/stemsi/classroom-backend/internal/examsession"
	"github.com/stemsi/classroom-backend/internal/middleware"
	"github.com/stemsi/classroom-backend/internal/model"
	"github.com/stemsi/classroom-backend/internal/response"
	"github.com/stemsi/classroom-backend/internal/validator"
)

// SessionHandler serves a student's exam list and their open exam session.
// Every route runs behind middleware.RequireClassroomMember.
type SessionHandler struct {
	log zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(log zerolog.Logger) *SessionHandler {
	return &SessionHandler{log: log.With().Str("component", "session_handler").Logger()}
}

// ListExams godoc
// GET /api/v1/classrooms/:classroom_id/exams
// Lists the classroom's exams with the caller's submission badges.
func (h *SessionHandler) ListExams(c *gin.Context) {
	cat := middleware.GetCatalog(c)

	exams, err := cat.ListExams(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("List exams failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// StartExam godoc
// POST /api/v1/classrooms/:classroom_id/exams/:exam_id/start
// Opens a timed attempt. Refused once the exam has been submitted.
func (h *SessionHandler) StartExam(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	sess, err := middleware.GetCatalog(c).StartExam(c.Request.Context(), examID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": sess.Snapshot()})
}

// ReviewExam godoc
// POST /api/v1/classrooms/:classroom_id/exams/:exam_id/review
// Opens a read-only replay of the caller's submission.
func (h *SessionHandler) ReviewExam(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	sess, err := middleware.GetCatalog(c).ViewAnswers(c.Request.Context(), examID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": sess.Snapshot()})
}

// GetSession godoc
// GET /api/v1/classrooms/:classroom_id/session
// Returns the open session's current view.
func (h *SessionHandler) GetSession(c *gin.Context) {
	sess, ok := activeSession(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": sess.Snapshot()})
}

// SelectAnswer godoc
// POST /api/v1/classrooms/:classroom_id/session/answer
// Records an option for the current question of a live session.
func (h *SessionHandler) SelectAnswer(c *gin.Context) {
	var req model.SelectAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, ok := activeSession(c)
	if !ok {
		return
	}
	if !sess.SelectAnswer(req.Option) {
		response.Fail(c, http.StatusConflict, response.ErrActionIgnored)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": sess.Snapshot()})
}

// Next godoc
// POST /api/v1/classrooms/:classroom_id/session/next
// Moves to the following question. A no-op on the last question.
func (h *SessionHandler) Next(c *gin.Context) {
	sess, ok := activeSession(c)
	if !ok {
		return
	}
	sess.Next()
	response.Success(c, http.StatusOK, gin.H{"session": sess.Snapshot()})
}

// Previous godoc
// POST /api/v1/classrooms/:classroom_id/session/previous
// Moves to the preceding question. A no-op on the first question.
func (h *SessionHandler) Previous(c *gin.Context) {
	sess, ok := activeSession(c)
	if !ok {
		return
	}
	sess.Previous()
	response.Success(c, http.StatusOK, gin.H{"session": sess.Snapshot()})
}

// Submit godoc
// POST /api/v1/classrooms/:classroom_id/session/submit
// Submits the live session from its last question and returns the saved submission.
func (h *SessionHandler) Submit(c *gin.Context) {
	out, err := middleware.GetCatalog(c).SubmitActive()
	if err != nil {
		// The session is closed either way; a write failure is reported as such.
		if out != nil && !errors.Is(err, model.ErrAlreadySubmitted) {
			h.log.Error().Err(err).Str("exam_id", out.ExamID.String()).Msg("Submission not saved")
			response.Fail(c, http.StatusInternalServerError, response.ErrSubmissionFailed)
			return
		}
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"outcome": out})
}

// Close godoc
// POST /api/v1/classrooms/:classroom_id/session/close
// Closes the open session. A live attempt is discarded without submitting.
func (h *SessionHandler) Close(c *gin.Context) {
	if !middleware.GetCatalog(c).CloseActive() {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"closed": true})
}

// ────────────────────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────────────────────

func parseExamID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

func activeSession(c *gin.Context) (*examsession.Session, bool) {
	sess := middleware.GetCatalog(c).Active()
	if sess == nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		return nil, false
	}
	return sess, true
}

// sessionErrCode maps catalog errors to HTTP status and API error code.
func sessionErrCode(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, catalog.ErrExamNotFound):
		return http.StatusNotFound, response.ErrExamNotFound
	case errors.Is(err, catalog.ErrInvalidExam):
		return http.StatusUnprocessableEntity, response.ErrInvalidExam
	case errors.Is(err, model.ErrAlreadySubmitted):
		return http.StatusConflict, response.ErrExamAlreadySubmitted
	case errors.Is(err, catalog.ErrNoSubmission):
		return http.StatusNotFound, response.ErrNoSubmission
	case errors.Is(err, catalog.ErrSessionInProgress):
		return http.StatusConflict, response.ErrSessionInProgress
	case errors.Is(err, catalog.ErrNoActiveSession):
		return http.StatusNotFound, response.ErrNoActiveSession
	case errors.Is(err, catalog.ErrActionIgnored):
		return http.StatusConflict, response.ErrActionIgnored
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

func (h *SessionHandler) fail(c *gin.Context, err error) {
	status, code := sessionErrCode(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Session request failed")
	}
	response.Fail(c, status, code)
}
