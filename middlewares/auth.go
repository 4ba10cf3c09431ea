package middlewares

import (
	"net/http"

	"debatehub/utils"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware verifies the bearer JWT and stores the caller in the
// context under "userId" and "userEmail".
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing Authorization token"})
			return
		}
		token, ok := utils.BearerToken(authHeader)
		if !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid Authorization token format"})
			return
		}

		id, err := utils.IdentityFromToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set("userId", id.UserID)
		c.Set("userEmail", id.Email)
		c.Next()
	}
}
