package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portfolio/backend/internal/auth"
	"portfolio/backend/internal/monitoring"
)

const (
	// MsgUnauthorized 管理密钥缺失或错误
	MsgUnauthorized = "Unauthorized"
	// MsgAdminKeyMissing 服务器未配置管理密钥
	MsgAdminKeyMissing = "ADMIN_KEY is missing on server"

	// AdminKeyQueryParam WebSocket 握手携带管理密钥的查询参数
	AdminKeyQueryParam = "key"
)

// AdminAuth 管理员权限中间件
type AdminAuth struct {
	gate    *auth.Gate
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewAdminAuth 创建管理员权限中间件
func NewAdminAuth(gate *auth.Gate, metrics *monitoring.Metrics, logger *zap.Logger) *AdminAuth {
	return &AdminAuth{
		gate:    gate,
		metrics: metrics,
		logger:  logger,
	}
}

// RequireAdmin 要求请求头携带正确的 x-admin-key
func (a *AdminAuth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		a.authorize(c, c.GetHeader(auth.HeaderName))
	}
}

// RequireAdminStream 用于 WebSocket 握手，浏览器无法设置自定义请求头，
// 因此在请求头缺失时允许通过 key 查询参数提交密钥
func (a *AdminAuth) RequireAdminStream() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(auth.HeaderName)
		if key == "" {
			key = c.Query(AdminKeyQueryParam)
		}
		a.authorize(c, key)
	}
}

func (a *AdminAuth) authorize(c *gin.Context, key string) {
	err := a.gate.Authorize(key)
	switch {
	case err == nil:
		c.Next()
	case errors.Is(err, auth.ErrAdminKeyMissing):
		a.metrics.RecordAdminAuthFailure("not_configured")
		a.logger.Error("admin request rejected: admin key is not configured",
			zap.String("path", c.Request.URL.Path),
		)
		abortWithError(c, http.StatusInternalServerError, MsgAdminKeyMissing)
	default:
		a.metrics.RecordAdminAuthFailure("invalid_key")
		a.logger.Warn("admin request rejected",
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
		)
		abortWithError(c, http.StatusUnauthorized, MsgUnauthorized)
	}
}
