package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/policyforge/policyforge-api/internal/models"
	appErrors "github.com/policyforge/policyforge-api/pkg/errors"
	"github.com/policyforge/policyforge-api/pkg/response"
)

// RequireRoles enforces global-role access on a route group. This gates the
// outer HTTP surface only; document-scoped decisions are authorized inside
// the approval service against the ownership registry.
func RequireRoles(roles ...models.GlobalRole) gin.HandlerFunc {
	allowed := make(map[models.GlobalRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *gin.Context) {
		principal, ok := Principal(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[principal.GlobalRole]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
