package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/classroom-backend/internal/middleware"
	"github.com/stemsi/classroom-backend/internal/model"
	"github.com/stemsi/classroom-backend/internal/response"
	"github.com/stemsi/classroom-backend/internal/service"
	"github.com/stemsi/classroom-backend/internal/validator"
)

// ExamHandler handles teacher-facing exam management.
type ExamHandler struct {
	examService      *service.ExamService
	classroomService *service.ClassroomService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, classroomService *service.ClassroomService) *ExamHandler {
	return &ExamHandler{examService: examService, classroomService: classroomService}
}

// CreateExam godoc
// POST /api/v1/teacher/classrooms/:classroom_id/exams
// Publishes an exam with its questions to the teacher's classroom.
func (h *ExamHandler) CreateExam(c *gin.Context) {
	claims := middleware.GetClaims(c)

	classroomID, err := uuid.Parse(c.Param("classroom_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.classroomService.RequireOwner(c.Request.Context(), classroomID, claims.UserID); err != nil {
		if !failOwnership(c, err) {
			_ = c.Error(err)
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), classroomID, claims.UserID, &req)
	if err != nil {
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// ListSubmissions godoc
// GET /api/v1/teacher/classrooms/:classroom_id/exams/:exam_id/submissions
// Lists every submission for an exam with scores once graded.
func (h *ExamHandler) ListSubmissions(c *gin.Context) {
	claims := middleware.GetClaims(c)

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

	if err := h.classroomService.RequireOwner(c.Request.Context(), classroomID, claims.UserID); err != nil {
		if !failOwnership(c, err) {
			_ = c.Error(err)
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	results, err := h.examService.ListSubmissions(c.Request.Context(), classroomID, examID)
	if err != nil {
		if errors.Is(err, service.ErrExamNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
			return
		}
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"submissions": results})
}
