// Package middleware provides Gin HTTP middleware for caller identity, rate limiting,
// thumbnail uploads, request ids, metrics and security headers.
//
// Ordering is set in internal/api/router.go:
//
//	Recovery → RequestID → Metrics → Logger → CORS → SecurityHeaders → Auth → RateLimit → Upload → Handler
//
// Auth runs before rate limiting so limits are keyed by profile rather than by IP.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clubroom/clubroom/internal/auth"
)

const (
	// ProfileIDKey is the gin.Context key holding the verified caller profile id
	ProfileIDKey = "profile_id"

	// EmailKey is the gin.Context key holding the verified caller email
	EmailKey = "email"
)

// AuthMiddleware requires a valid "Authorization: Bearer <jwt>" header and stores the
// caller's profile id and email in the context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header must start with 'Bearer '",
			})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is empty",
			})
			return
		}

		claims, err := auth.ValidateJWT(token)
		if err != nil {
			slog.Debug("rejected bearer token", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid credentials",
			})
			return
		}

		c.Set(ProfileIDKey, claims.ProfileID)
		c.Set(EmailKey, claims.Email)

		c.Next()
	}
}

// OptionalAuthMiddleware - same as AuthMiddleware but doesn't abort if no auth.
// Used when auth.allow_identity_fallback is on, so handlers can fall back to a
// client-supplied profile_id. A present but invalid token is still ignored.
func OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.Next()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			c.Next()
			return
		}

		if claims, err := auth.ValidateJWT(token); err == nil {
			c.Set(ProfileIDKey, claims.ProfileID)
			c.Set(EmailKey, claims.Email)
		} else {
			slog.Debug("ignoring invalid bearer token", "error", err)
		}

		c.Next()
	}
}

// ProfileID returns the verified caller profile id, or "" when AuthMiddleware did not run.
func ProfileID(c *gin.Context) string {
	v, ok := c.Get(ProfileIDKey)
	if !ok {
		return ""
	}
	id, _ := v.(string)
	return id
}
