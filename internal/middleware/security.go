package middleware

import (
	"context"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SecurityHeaders 添加安全响应头
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		// HTTPS 严格传输安全
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")

		// 引荐来源策略
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		c.Header("X-Content-Type-Options", "nosniff")

		c.Next()
	}
}

// RequestLogger 请求日志中间件
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := redactQuery(c.Request.URL.RawQuery)

		c.Next()

		// 记录请求日志
		duration := time.Since(start)
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		}

		if requestID, exists := c.Get("requestID"); exists {
			fields = append(fields, zap.Any("request_id", requestID))
		}

		// 根据状态码选择日志级别
		switch {
		case status >= 500:
			log.Error("server error", fields...)
		case status >= 400:
			log.Warn("client error", fields...)
		case status >= 300:
			log.Info("redirect", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// redactedValue 替换日志中敏感查询参数的值
const redactedValue = "[REDACTED]"

// redactQuery 隐藏查询串中的管理密钥（websocket 连接通过 key 参数传递）
func redactQuery(raw string) string {
	if raw == "" {
		return raw
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return redactedValue
	}
	if _, ok := values[AdminKeyQueryParam]; !ok {
		return raw
	}
	for i := range values[AdminKeyQueryParam] {
		values[AdminKeyQueryParam][i] = redactedValue
	}
	return values.Encode()
}

// RequestTimeout 为请求上下文设置截止时间，存储调用在超时后返回错误
func RequestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
