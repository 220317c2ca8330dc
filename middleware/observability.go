package middleware

import (
	"net/http"
	"time"

	"kaizen/analytics"
	"kaizen/logging"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestContext attaches a request-scoped logger and the caller's user agent
// to the request context, and writes one access-log line per request.
func RequestContext(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		reqLog := log.WithFields(map[string]interface{}{
			"request_id": requestID,
			"path":       c.Request.URL.Path,
		})
		ctx := logging.WithLogger(c.Request.Context(), reqLog)
		ctx = analytics.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		entry := reqLog.WithFields(map[string]interface{}{
			"method":     c.Request.Method,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request completed")
			return
		}
		entry.Debug("request completed")
	}
}

type PageViewTracker interface {
	TrackPageView(path, referrer, userAgent string)
}

// PageViews records successful GET page loads.
func PageViews(tracker PageViewTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if tracker == nil || c.Request.Method != http.MethodGet || c.Writer.Status() != http.StatusOK {
			return
		}
		tracker.TrackPageView(c.Request.URL.Path, c.Request.Referer(), c.Request.UserAgent())
	}
}
