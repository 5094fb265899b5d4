package middleware

import "github.com/gin-gonic/gin"

// abortWithError 以统一的错误结构终止请求
func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   message,
	})
}
