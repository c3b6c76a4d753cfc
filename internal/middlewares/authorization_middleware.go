package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tabledesk/internal/utils"
)

// RequireRole lets the request through only when the token carries role.
// It must run after Authenticate.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roles := c.GetStringSlice(rolesKey)
		if !utils.Contains(roles, role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Access denied. " + role + " privileges required"})
			return
		}
		c.Next()
	}
}
