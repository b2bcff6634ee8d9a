package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RequestLogger logs one line per request.
func RequestLogger(l zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		evt := l.Info()
		if status >= 500 {
			evt = l.Error()
		} else if status >= 400 {
			evt = l.Warn()
		}
		evt.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("user_id", c.GetString(UserIDKey)).
			Msgf("%s %s %d", c.Request.Method, c.Request.URL.Path, status)
	}
}
