// Package middleware provides Gin HTTP middleware for authentication,
// rate limiting, security headers, and request metrics.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Recovery → RequestID → Metrics → Logger → CORS → Security → RateLimit → Auth → Handler
//
// Security headers run first among the protective layers so they appear on all
// responses including errors. Rate limiting runs before auth to block
// brute-force attacks before any cryptographic work. Auth populates the caller
// identity that handlers read from the context.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wandertale/wandertale/internal/auth"
)

// Context keys set by SessionAuthMiddleware.
const (
	// UserIDKey holds the authenticated user's ID.
	UserIDKey = "user_id"
	// UserEmailKey holds the authenticated user's email.
	UserEmailKey = "user_email"
	// ClaimsKey holds the full verified *auth.Claims.
	ClaimsKey = "claims"
)

// SessionAuthMiddleware validates the Bearer session token on protected routes.
//
// The status split is deliberate: a request with NO token at all gets 401
// (the client never authenticated — it should log in), while a request with a
// token that fails verification — bad signature or expired — gets 403 (the
// client presented credentials and they were refused). No database access
// happens here; the verified claims carry everything handlers need.
func SessionAuthMiddleware(tokens *auth.TokenAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		claims, err := tokens.Verify(token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error": "Session expired, please sign in again",
				})
			default:
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error": "Invalid session token",
				})
			}
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserEmailKey, claims.Email)
		c.Set(ClaimsKey, claims)

		c.Next()
	}
}

// extractBearerToken pulls the token from "Authorization: Bearer <token>".
// Returns "" when the header is absent, malformed, or empty — all of which
// count as "no token presented" for the 401 path.
func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// GetUserID returns the authenticated user's ID from the context.
// The second return is false when the request did not pass SessionAuthMiddleware.
func GetUserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
