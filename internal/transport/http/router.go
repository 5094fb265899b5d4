package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portfolio/backend/internal/auth"
	"portfolio/backend/internal/config"
	"portfolio/backend/internal/health"
	"portfolio/backend/internal/middleware"
	"portfolio/backend/internal/monitoring"
	"portfolio/backend/internal/ratelimit"
	"portfolio/backend/internal/service"
	"portfolio/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config            *config.Config
	SubmissionService *service.SubmissionService
	Gate              *auth.Gate
	CORS              *middleware.CORSPolicy
	Limiter           ratelimit.Limiter // 为 nil 时不限流
	Health            *health.HealthChecker
	Metrics           *monitoring.Metrics
	WebSocketHub      *websocket.Hub // 为 nil 时不注册实时推送
	Logger            *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	if err := router.SetTrustedProxies(deps.Config.Server.TrustedProxies); err != nil {
		deps.Logger.Warn("invalid trusted proxies, trusting none", zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}

	monitor := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)

	// 跨域头在路由分发和鉴权之前计算，预检请求在此结束
	router.Use(middleware.RequestID())
	router.Use(monitor.PanicRecovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(monitor.HTTPMetrics())
	router.Use(deps.CORS.Middleware())
	router.Use(middleware.CanonicalRedirect(deps.Config.Site.CanonicalHost, deps.Config.Site.ForceHTTPS))
	router.Use(middleware.SecurityHeaders())

	handler := NewSubmissionHandler(deps.SubmissionService, deps.Logger)
	adminAuth := middleware.NewAdminAuth(deps.Gate, deps.Metrics, deps.Logger)
	site := staticSite{root: deps.Config.Site.StaticDir}

	// 运维端点
	router.GET("/health/live", gin.WrapF(deps.Health.LiveHandler()))
	router.GET("/health/ready", gin.WrapF(deps.Health.ReadyHandler()))
	router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))

	api := router.Group("/api")
	api.Use(middleware.RequestTimeout(deps.Config.Server.RequestTimeout))
	api.Use(middleware.BodySizeLimit(middleware.APIBodyLimit))
	{
		api.GET("/health", apiHealth(deps.Health))

		contact := []gin.HandlerFunc{}
		if deps.Limiter != nil {
			contact = append(contact, middleware.RateLimit(deps.Limiter, deps.Metrics, deps.Logger))
		}
		contact = append(contact, handler.CreateContact)
		api.POST("/contact", contact...)

		// ========== Admin Routes ==========
		admin := api.Group("/submissions")
		{
			admin.GET("", adminAuth.RequireAdmin(), handler.ListSubmissions)
			admin.PUT("/:id", adminAuth.RequireAdmin(), handler.UpdateSubmission)
			admin.DELETE("/:id", adminAuth.RequireAdmin(), handler.DeleteSubmission)

			if deps.WebSocketHub != nil {
				admin.GET("/stream", adminAuth.RequireAdminStream(), deps.WebSocketHub.ServeWS())
			}
		}
	}

	router.NoMethod(func(c *gin.Context) {
		Error(c, http.StatusMethodNotAllowed, MsgMethodNotAllowed)
	})
	router.NoRoute(site.noRoute)

	return router
}
