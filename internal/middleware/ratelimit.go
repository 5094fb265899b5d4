package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portfolio/backend/internal/monitoring"
	"portfolio/backend/internal/ratelimit"
)

// MsgTooManyRequests 触发限流时的错误信息
const MsgTooManyRequests = "Too many requests"

// RateLimit 按客户端 IP 限流
//
// 限流后端出错时放行请求并记录日志。
func RateLimit(limiter ratelimit.Limiter, metrics *monitoring.Metrics, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.Warn("rate limiter unavailable, allowing request",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			metrics.RecordError("rate_limiter", "middleware")
			c.Next()
			return
		}

		if !allowed {
			metrics.RecordRateLimitBlock("contact")
			abortWithError(c, http.StatusTooManyRequests, MsgTooManyRequests)
			return
		}

		c.Next()
	}
}
