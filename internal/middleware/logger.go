package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/covenant-hq/church-backend/internal/requestctx"
)

// HeaderRequestID carries the request correlation id.
const HeaderRequestID = "X-Request-Id"

// Logger returns a zap-based request logging middleware. It assigns a request id when the caller sent none.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(HeaderRequestID, requestID)

		c.Next()

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("method", method),
			zap.String("path", path),
			zap.String("client_ip", c.ClientIP()),
		}
		if u := requestctx.User(c); u != nil {
			fields = append(fields, zap.String("user_id", u.ID.String()), zap.String("role", string(u.Role)))
		}
		if ac := requestctx.ActiveChurch(c); ac != nil {
			fields = append(fields, zap.String("church_id", ac.ID.String()))
		}
		logger.Info("request", fields...)
	}
}
