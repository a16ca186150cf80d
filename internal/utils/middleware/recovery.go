package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/popgraph/server/internal/utils/logger"
)

// Recovery turns a handler panic into a 500 INTERNAL_ERROR response.
// The panic value and stack are logged; neither reaches the client.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.New(nil)
	}

	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			log.ForRequest(c.Request.Context()).Error("Panic recovered",
				"error", rec,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP(),
				"stack", string(debug.Stack()),
			)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			abortJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}()
		c.Next()
	}
}
