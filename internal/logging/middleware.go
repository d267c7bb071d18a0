package logging

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-Id"
	contextKeyReqID = "request_id"
	contextKeyLog   = "logger"
)

// RequestID propagates X-Request-Id or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(contextKeyReqID, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestIDFromContext returns the id set by RequestID.
func RequestIDFromContext(c *gin.Context) string {
	return c.GetString(contextKeyReqID)
}

// FromContext returns the request logger set by RequestLogger, or
// slog.Default when the middleware is not installed.
func FromContext(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(contextKeyLog); ok {
		if l, ok := v.(*slog.Logger); ok {
			return l
		}
	}
	return slog.Default()
}

// RequestLogger logs one line per request and exposes a request-scoped
// logger through FromContext. Query strings are left out since they are not
// needed and may carry secrets.
func RequestLogger(base *slog.Logger) gin.HandlerFunc {
	log := base.With("module", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Set(contextKeyLog, base.With("request_id", RequestIDFromContext(c)))
		c.Next()

		status := c.Writer.Status()
		fields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", status,
			"bytes", c.Writer.Size(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", RequestIDFromContext(c),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}
		ctx := c.Request.Context()
		switch {
		case status >= 500:
			log.ErrorContext(ctx, "http request completed", fields...)
		case status >= 400:
			log.WarnContext(ctx, "http request completed", fields...)
		default:
			log.InfoContext(ctx, "http request completed", fields...)
		}
	}
}
