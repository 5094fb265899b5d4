package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"portfolio/backend/internal/health"
)

// apiHealth 站点健康检查，返回进程运行秒数
//
// GET /api/health
func apiHealth(checker *health.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := checker.CheckStorage(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": MsgDBUnavailable})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "uptime": checker.Uptime().Seconds()})
	}
}
