package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/policyforge/policyforge-api/internal/middleware"
	"github.com/policyforge/policyforge-api/internal/models"
)

func principalFromContext(c *gin.Context) *models.Principal {
	principal, ok := middleware.Principal(c)
	if !ok {
		return nil
	}
	return principal
}

// orgFromContext resolves the org scope for compliance routes from the
// session claims.
func orgFromContext(c *gin.Context) *int64 {
	principal := principalFromContext(c)
	if principal == nil || principal.OrgID == 0 {
		return nil
	}
	org := principal.OrgID
	return &org
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// queryIntPtr parses an optional integer query parameter; absent or
// malformed values return nil.
func queryIntPtr(c *gin.Context, name string) *int {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &value
}
