package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/popgraph/server/internal/utils/logger"
)

// ErrorCodeKey is the context key handlers use to expose the response error code to logging.
const ErrorCodeKey = "error_code"

// Logging returns a middleware that emits one access log line per request.
// 5xx responses log at ERROR, 4xx at WARN, everything else at INFO.
func Logging(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.New(nil)
	}

	return func(c *gin.Context) {
		start := time.Now()
		req := c.Request

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"status", status,
			"method", req.Method,
			"path", req.URL.Path,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		attrs = appendNonEmpty(attrs, "query", req.URL.RawQuery)
		attrs = appendNonEmpty(attrs, "user_agent", req.UserAgent())
		if userID := GetUserID(c); userID != "" {
			attrs = append(attrs, "user_id", userID, "tier", string(GetTier(c)))
		}
		attrs = appendNonEmpty(attrs, "error_code", c.GetString(ErrorCodeKey))
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		log.ForRequest(c.Request.Context()).Log(c.Request.Context(), levelForStatus(status), "HTTP request", attrs...)
	}
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func appendNonEmpty(attrs []any, key, value string) []any {
	if value == "" {
		return attrs
	}
	return append(attrs, key, value)
}
