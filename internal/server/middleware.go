package server

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogging logs method, path, status and duration of every request.
func RequestLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
		}
		if topic := c.Query("topic"); topic != "" {
			attrs = append(attrs, slog.String("topic", topic))
		}

		if status >= http.StatusInternalServerError {
			slog.Warn("[Server] Request failed", attrs...)
			return
		}
		slog.Info("[Server] Request completed", attrs...)
	}
}

// Recovery turns a panicking handler into a 500 and keeps the server up.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		slog.Error("[Server] Handler panicked",
			slog.String("path", c.Request.URL.Path),
			slog.Any("panic", recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}
