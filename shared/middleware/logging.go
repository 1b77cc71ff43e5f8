package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SlowRequestThreshold marks requests worth a warning
const SlowRequestThreshold = 200 * time.Millisecond

// RequestLogger logs every request with its latency
func RequestLogger(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		entry := logrus.WithFields(logrus.Fields{
			"service":    service,
			"method":     c.Request.Method,
			"path":       path,
			"status":     c.Writer.Status(),
			"latency_ms": latency.Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}

		switch {
		case c.Writer.Status() >= 500:
			entry.Error("Request failed")
		case latency > SlowRequestThreshold:
			entry.Warn("Slow request")
		default:
			entry.Info("Request handled")
		}
	}
}
