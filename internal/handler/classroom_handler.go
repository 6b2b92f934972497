package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/classroom-backend/internal/middleware"
	"github.com/stemsi/classroom-backend/internal/model"
	"github.com/stemsi/classroom-backend/internal/repository"
	"github.com/stemsi/classroom-backend/internal/response"
	"github.com/stemsi/classroom-backend/internal/service"
	"github.com/stemsi/classroom-backend/internal/validator"
)

// ClassroomHandler handles teacher-facing classroom management.
type ClassroomHandler struct {
	classroomService *service.ClassroomService
}

// NewClassroomHandler creates a new ClassroomHandler.
func NewClassroomHandler(classroomService *service.ClassroomService) *ClassroomHandler {
	return &ClassroomHandler{classroomService: classroomService}
}

// CreateClassroom godoc
// POST /api/v1/teacher/classrooms
// Creates a classroom owned by the calling teacher.
func (h *ClassroomHandler) CreateClassroom(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateClassroomRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	classroom, err := h.classroomService.Create(c.Request.Context(), claims.UserID, req.Name)
	if err != nil {
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"classroom": classroom})
}

// AddMember godoc
// POST /api/v1/teacher/classrooms/:classroom_id/members
// Enrolls a user into the teacher's classroom.
func (h *ClassroomHandler) AddMember(c *gin.Context) {
	claims := middleware.GetClaims(c)

	classroomID, err := uuid.Parse(c.Param("classroom_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.AddMemberRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err = h.classroomService.AddMember(c.Request.Context(), claims.UserID, classroomID, req.UserID)
	switch {
	case err == nil:
		response.Success(c, http.StatusCreated, gin.H{"classroom_id": classroomID, "user_id": req.UserID})
	case failOwnership(c, err):
	case errors.Is(err, repository.ErrUnknownUser):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"user_id": "user does not exist"})
	default:
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// failOwnership writes the response for classroom ownership errors and
// reports whether it did.
func failOwnership(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, service.ErrClassroomNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotClassroomOwner):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	default:
		return false
	}
	return true
}
