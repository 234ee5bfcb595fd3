package router

import (
	"time"

	"zapihook/logger"
	"zapihook/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger logs method, path, status and latency.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("request_id", c.GetString(middleware.REQUEST_ID_KEY)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if c.Writer.Status() >= 500 {
			logger.Error("http request", fields...)
			return
		}
		logger.Info("http request", fields...)
	}
}
