package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pharos-rwa/pharos/core"
	"github.com/pharos-rwa/pharos/service"
)

const sessionKey = "session"

// AuthMiddleware creates middleware that validates access tokens
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")

		// Check if the Authorization header is present and in correct format
		if len(auth) < 8 || auth[:7] != "Bearer " {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
			return
		}

		// Extract the token
		token := auth[7:]

		// Validate the token
		session, err := authService.ValidateAccessToken(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, core.ErrTokenExpired):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
			case errors.Is(err, core.ErrTokenInvalidated):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has been invalidated"})
			default:
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			}
			return
		}

		c.Set(sessionKey, session)

		c.Next()
	}
}

// RequireRole creates middleware that rejects sessions holding none of
// the given roles. It must run after AuthMiddleware.
func RequireRole(roles ...core.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := MustSession(c)

		for _, role := range roles {
			if session.HasRole(role) {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient role"})
	}
}

// MustSession returns the session set by AuthMiddleware
func MustSession(c *gin.Context) *core.Session {
	return c.MustGet(sessionKey).(*core.Session)
}
