package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tabledesk/internal/utils"
)

const (
	UserIDKey = "userId"
	rolesKey  = "roles"
)

// Authenticate verifies the bearer token and stores its subject under UserIDKey.
func Authenticate(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Missing Authorization header"})
			return
		}

		// Expected format: "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid Authorization format"})
			return
		}

		claims, err := utils.VerifyJWT(parts[1], secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
			return
		}

		c.Set(UserIDKey, claims.Subject)
		c.Set(rolesKey, claims.Roles)

		c.Next()
	}
}
