package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireUser enforces bearer JWT tokens signed with HS256. Only installed
// when AUTH_REQUIRED is set; the default deployment keeps every endpoint
// open and checks credentials per request.
func RequireUser(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "invalid token"})
			return
		}
		c.Set("claims", claims)
		c.Next()
	}
}
