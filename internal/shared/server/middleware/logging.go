package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"invoice-backend/internal/shared/telemetry"
)

// RecordIDKey is the context key handlers set once a record is known, so the
// access log can tie the request to it.
const RecordIDKey = "recordId"

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if recordID, ok := c.Get(RecordIDKey); ok {
			fields["record_id"] = recordID
		}
		telemetry.Info("request.complete", fields)
	}
}
