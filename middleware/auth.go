package middleware

import (
	"context"
	"net/http"
	"strings"

	"kaizen/auth"
	"kaizen/logging"

	"github.com/gin-gonic/gin"
)

const sessionKey = "session"

type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*auth.Session, error)
}

// SessionLoader resolves the bearer token or session cookie on every request.
// Bad or revoked tokens leave the request as a guest.
func SessionLoader(resolver SessionResolver, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if resolver == nil {
			c.Next()
			return
		}

		tokenString := ""

		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}

		if tokenString == "" {
			if cookie, err := c.Cookie(cookieName); err == nil {
				tokenString = cookie
			}
		}

		if tokenString != "" {
			s, err := resolver.Resolve(c.Request.Context(), tokenString)
			if err != nil {
				logging.FromContext(c.Request.Context()).WithError(err).Debug("ignoring invalid session token")
			} else {
				c.Set(sessionKey, s)
				c.Request = c.Request.WithContext(auth.WithSession(c.Request.Context(), s))
			}
		}

		c.Next()
	}
}

// CurrentSession returns the request session, or nil for guests.
func CurrentSession(c *gin.Context) *auth.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(*auth.Session); ok {
			return s
		}
	}
	return nil
}

func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentSession(c).IsAuthenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
			return
		}
		c.Next()
	}
}

// FeatureGate hides a route group when its feature flag is off.
func FeatureGate(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		c.Next()
	}
}
