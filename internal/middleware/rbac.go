package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lnd-admin-api/internal/models"
	appErrors "github.com/noah-isme/lnd-admin-api/pkg/errors"
	"github.com/noah-isme/lnd-admin-api/pkg/response"
)

// EditorRoles may change courses, drafts, enrollments and imports.
var EditorRoles = []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin}

// RequireRoles rejects authenticated users whose role is not listed.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
