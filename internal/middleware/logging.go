package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"relay-service/internal/logger"
	"relay-service/internal/observability"
)

// Logging logs every request with timing and the resolved participant.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()

		event := logger.Log.Info()
		if status >= 400 {
			event = logger.Log.Warn()
		}
		if status >= 500 {
			event = logger.Log.Error()
		}

		participant := ""
		if p, ok := ParticipantFromContext(c); ok {
			participant = p.String()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", observability.IPFromRequest(c.Request)).
			Str("request_id", observability.RequestIDFromRequest(c.Request)).
			Str("participant", participant).
			Msg("request")
	}
}
