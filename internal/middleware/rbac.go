package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/classroom-backend/internal/model"
	"github.com/stemsi/classroom-backend/internal/response"
)

// RequireRole checks that the JWT belongs to a user with the given role.
func RequireRole(role model.Role) gin.HandlerFunc {
	denied := response.ErrForbidden
	switch role {
	case model.RoleStudent:
		denied = response.ErrStudentAccessOnly
	case model.RoleTeacher:
		denied = response.ErrTeacherAccessOnly
	}

	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if claims.Role != role {
			response.AbortFail(c, http.StatusForbidden, denied)
			return
		}

		c.Next()
	}
}
