package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/classroom-backend/internal/catalog"
	"github.com/stemsi/classroom-backend/internal/response"
	"github.com/stemsi/classroom-backend/internal/service"
)

const (
	// ContextKeyCatalog is the Gin context key for the caller's classroom catalog.
	ContextKeyCatalog = "catalog"
	// ContextKeyClassroomID is the Gin context key for the parsed :classroom_id.
	ContextKeyClassroomID = "classroom_id"
)

// CatalogProvider resolves the exam catalog of a classroom member.
type CatalogProvider interface {
	Catalog(ctx context.Context, userID int, classroomID uuid.UUID) (*catalog.Catalog, error)
}

// RequireClassroomMember resolves :classroom_id to the caller's catalog.
// Non-members are rejected.
func RequireClassroomMember(provider CatalogProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		classroomID, err := uuid.Parse(c.Param("classroom_id"))
		if err != nil {
			response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}

		cat, err := provider.Catalog(c.Request.Context(), claims.UserID, classroomID)
		if err != nil {
			if errors.Is(err, service.ErrNotClassroomMember) {
				response.AbortFail(c, http.StatusForbidden, response.ErrNotClassroomMember)
				return
			}
			_ = c.Error(err)
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}

		c.Set(ContextKeyClassroomID, classroomID)
		c.Set(ContextKeyCatalog, cat)
		c.Next()
	}
}

// GetCatalog retrieves the catalog set by RequireClassroomMember.
func GetCatalog(c *gin.Context) *catalog.Catalog {
	val, exists := c.Get(ContextKeyCatalog)
	if !exists {
		return nil
	}
	cat, _ := val.(*catalog.Catalog)
	return cat
}
