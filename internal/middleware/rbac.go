package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/ams-platform/attendance-api/internal/models"
	appErrors "github.com/ams-platform/attendance-api/pkg/errors"
	"github.com/ams-platform/attendance-api/pkg/response"
)

// RequireRoles enforces role-based access on top of Auth. Roles form the
// three tiers: user (any role), instructor (ADMIN or INSTRUCTOR) and admin.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "you are not allowed"))
			c.Abort()
			return
		}

		c.Next()
	}
}
