package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portfolio/backend/internal/domain"
	"portfolio/backend/internal/middleware"
)

// 错误信息，与前端约定保持一致
const (
	MsgMissingFields    = "Missing required fields."
	MsgMessageTooLong   = "Message is too long (max 1000 characters)."
	MsgNotFound         = "Submission not found."
	MsgServerError      = middleware.MsgServerError
	MsgMethodNotAllowed = "Method not allowed"
	MsgRouteNotFound    = "Route not found"
	MsgDBUnavailable    = "DB connection failed"
)

// writeError 将业务错误映射为 HTTP 响应，未知错误只记录日志不向客户端暴露细节
func writeError(c *gin.Context, log *zap.Logger, err error) {
	var maxBytes *http.MaxBytesError

	switch {
	case errors.Is(err, domain.ErrMissingFields):
		BadRequest(c, MsgMissingFields)
	case errors.Is(err, domain.ErrMessageTooLong):
		BadRequest(c, MsgMessageTooLong)
	case errors.Is(err, domain.ErrNotFound):
		NotFound(c, MsgNotFound)
	case errors.As(err, &maxBytes):
		Error(c, http.StatusRequestEntityTooLarge, middleware.MsgBodyTooLarge)
	default:
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		InternalError(c)
	}
}
