package middleware

import (
	"bytes"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"quizcoach-backend/utilities"
)

const maxDumpBody = 4 << 10

// RequestDumpMiddleware logs each request at debug level, body included.
func RequestDumpMiddleware(log *utilities.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var bodyBytes []byte
		if c.Request.Body != nil {
			bodyBytes, _ = io.ReadAll(c.Request.Body)
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		body := bodyBytes
		if len(body) > maxDumpBody {
			body = body[:maxDumpBody]
		}

		start := time.Now()
		c.Next()

		log.Debug("request",
			"method", c.Request.Method,
			"url", c.Request.URL.String(),
			"params", c.Params,
			"body", string(body),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// AccessLog logs one line per request at info level.
func AccessLog(log *utilities.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		userID, _ := utilities.UserID(c)
		log.Info("http",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"user_id", userID,
			"latency", time.Since(start),
		)
	}
}
