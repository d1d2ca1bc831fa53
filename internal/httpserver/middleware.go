package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lithammer/shortuuid/v4"
	"github.com/moogar0880/problems"

	"anoncreds/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// requestID stamps every request with an opaque id, generated the way the
// paged search cursors are (see cursor.go), so a caller can correlate a
// response with the line it produced in the logs.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = shortuuid.New()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// requestLogger logs one line per request, the duration and status it
// produced.
func requestLogger(log *logger.Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}

// recovery turns a panic in a handler into a 500 problem response instead
// of crashing the process, logging the recovered value first.
func recovery(log *logger.Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error(nil, "panic recovered", "request_id", c.GetString("request_id"), "value", r)
				c.AbortWithStatusJSON(http.StatusInternalServerError, problems.NewStatusProblem(http.StatusInternalServerError))
			}
		}()
		c.Next()
	}
}
