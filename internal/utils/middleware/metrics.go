package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/popgraph/server/internal/utils/metrics"
)

// Metrics returns a middleware that records HTTP metrics.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath() // route pattern, not the raw path
		if path == "" {
			path = "unmatched"
		}

		m.IncInFlight()
		defer m.DecInFlight()

		c.Next()

		m.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
