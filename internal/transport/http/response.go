package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse 统一错误结构
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// OK 成功响应（200），payload 字段与 success 并列
func OK(c *gin.Context, payload gin.H) {
	respond(c, http.StatusOK, payload)
}

// Created 创建成功响应（201）
func Created(c *gin.Context, payload gin.H) {
	respond(c, http.StatusCreated, payload)
}

func respond(c *gin.Context, status int, payload gin.H) {
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

// Error 通用错误响应
func Error(c *gin.Context, httpCode int, msg string) {
	c.AbortWithStatusJSON(httpCode, ErrorResponse{
		Success: false,
		Error:   msg,
	})
}

// BadRequest 请求参数错误（400）
func BadRequest(c *gin.Context, msg string) {
	Error(c, http.StatusBadRequest, msg)
}

// NotFound 资源不存在错误（404）
func NotFound(c *gin.Context, msg string) {
	Error(c, http.StatusNotFound, msg)
}

// InternalError 服务器内部错误（500）
func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, MsgServerError)
}
