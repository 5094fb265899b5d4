package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// APIBodyLimit API 请求体大小限制
const APIBodyLimit = 64 * 1024 // 64KB

// MsgBodyTooLarge 请求体超限时的错误信息
const MsgBodyTooLarge = "Request body too large"

// BodySizeLimit 限制请求体大小的中间件
//
// Content-Length 超限时直接拒绝；未声明长度的请求在读取超限时由处理器收到错误。
func BodySizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 检查 Content-Length 头
		if c.Request.ContentLength > maxBytes {
			abortWithError(c, http.StatusRequestEntityTooLarge, MsgBodyTooLarge)
			return
		}

		// 限制请求体读取大小
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

		// 设置响应头，告知客户端最大允许的请求体大小
		c.Header("X-Max-Body-Size", strconv.FormatInt(maxBytes, 10))

		c.Next()
	}
}
