package middleware

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"portfolio/backend/internal/auth"
	"portfolio/backend/internal/monitoring"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.POST("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSPolicy(t *testing.T) {
	t.Run("通配模式返回星号且不设置 Vary", func(t *testing.T) {
		r := newEngine(NewCORSPolicy([]string{"*"}).Middleware())
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "https://a.example")

		w := serve(r, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET,POST,PUT,DELETE,OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type, x-admin-key", w.Header().Get("Access-Control-Allow-Headers"))
		assert.Empty(t, w.Header().Get("Vary"))
	})

	t.Run("白名单内来源被回显", func(t *testing.T) {
		r := newEngine(NewCORSPolicy([]string{"https://a.example", "https://b.example"}).Middleware())
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "https://b.example")

		w := serve(r, req)

		assert.Equal(t, "https://b.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", w.Header().Get("Vary"))
	})

	t.Run("白名单外来源没有允许头", func(t *testing.T) {
		r := newEngine(NewCORSPolicy([]string{"https://a.example"}).Middleware())
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "https://evil.example")

		w := serve(r, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET,POST,PUT,DELETE,OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	})

	t.Run("预检请求直接返回 200 空响应", func(t *testing.T) {
		r := newEngine(NewCORSPolicy([]string{"*"}).Middleware())
		req := httptest.NewRequest(http.MethodOptions, "/anything", nil)

		w := serve(r, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("空列表视为通配", func(t *testing.T) {
		p := NewCORSPolicy(nil)

		assert.True(t, p.OriginAllowed("https://any.example"))
	})
}

func TestAdminAuth(t *testing.T) {
	setup := func(key string) (*gin.Engine, *monitoring.Metrics) {
		metrics := monitoring.NewMetrics()
		a := NewAdminAuth(auth.NewGate(key), metrics, zap.NewNop())
		r := gin.New()
		r.GET("/admin", a.RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
		r.GET("/stream", a.RequireAdminStream(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
		return r, metrics
	}

	t.Run("正确密钥放行", func(t *testing.T) {
		r, _ := setup("s3cret")
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set(auth.HeaderName, "s3cret")

		assert.Equal(t, http.StatusNoContent, serve(r, req).Code)
	})

	t.Run("错误密钥返回 401", func(t *testing.T) {
		r, _ := setup("s3cret")
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set(auth.HeaderName, "wrong")

		w := serve(r, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"success":false,"error":"Unauthorized"}`, w.Body.String())
	})

	t.Run("缺少密钥返回 401", func(t *testing.T) {
		r, _ := setup("s3cret")

		w := serve(r, httptest.NewRequest(http.MethodGet, "/admin", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("服务器未配置密钥时拒绝所有请求", func(t *testing.T) {
		r, _ := setup("")
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set(auth.HeaderName, "")

		w := serve(r, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"success":false,"error":"ADMIN_KEY is missing on server"}`, w.Body.String())
	})

	t.Run("普通管理接口不接受查询参数", func(t *testing.T) {
		r, _ := setup("s3cret")

		w := serve(r, httptest.NewRequest(http.MethodGet, "/admin?key=s3cret", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("推送通道接受查询参数", func(t *testing.T) {
		r, _ := setup("s3cret")

		w := serve(r, httptest.NewRequest(http.MethodGet, "/stream?key=s3cret", nil))

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestCanonicalRedirect(t *testing.T) {
	tests := []struct {
		name      string
		canonical string
		host      string
		proto     string
		tls       bool
		status    int
		location  string
	}{
		{name: "本地主机不重定向", canonical: "example.com", host: "localhost:4000", proto: "http", status: http.StatusOK},
		{name: "回环地址不重定向", canonical: "example.com", host: "127.0.0.1:4000", status: http.StatusOK},
		{name: "http 重定向到 https", host: "www.example.com", proto: "http", status: http.StatusMovedPermanently, location: "https://www.example.com/ping?a=1"},
		{name: "非规范主机重定向", canonical: "example.com", host: "www.example.com", proto: "https", status: http.StatusMovedPermanently, location: "https://example.com/ping?a=1"},
		{name: "规范主机不区分大小写", canonical: "Example.com", host: "EXAMPLE.com", proto: "https", status: http.StatusOK},
		{name: "无代理头时依据 TLS 判断", canonical: "example.com", host: "example.com", tls: true, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine(CanonicalRedirect(tt.canonical, true))
			req := httptest.NewRequest(http.MethodGet, "/ping?a=1", nil)
			req.Host = tt.host
			if tt.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tt.proto)
			}
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}

			w := serve(r, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.location, w.Header().Get("Location"))
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	w := serve(newEngine(SecurityHeaders()), httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, "max-age=31536000; includeSubDomains; preload", w.Header().Get("Strict-Transport-Security"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   string
	}{
		{name: "隐藏 key 参数", target: "/ping?key=s3cret", want: "key=%5BREDACTED%5D"},
		{name: "保留其他参数", target: "/ping?key=s3cret&page=2", want: "key=%5BREDACTED%5D&page=2"},
		{name: "无敏感参数时原样记录", target: "/ping?page=2", want: "page=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.InfoLevel)
			r := newEngine(RequestLogger(zap.New(core)))

			serve(r, httptest.NewRequest(http.MethodGet, tt.target, nil))

			require.Equal(t, 1, logs.Len())
			fields := logs.All()[0].ContextMap()
			assert.Equal(t, tt.want, fields["query"])
			assert.NotContains(t, fields["query"], "s3cret")
		})
	}
}

type stubLimiter struct {
	allowed bool
	err     error
}

func (s stubLimiter) Allow(context.Context, string) (bool, error) { return s.allowed, s.err }

func TestRateLimit(t *testing.T) {
	t.Run("超出限额返回 429", func(t *testing.T) {
		r := newEngine(RateLimit(stubLimiter{allowed: false}, monitoring.NewMetrics(), zap.NewNop()))

		w := serve(r, httptest.NewRequest(http.MethodPost, "/ping", nil))

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.JSONEq(t, `{"success":false,"error":"Too many requests"}`, w.Body.String())
	})

	t.Run("限流后端故障时放行", func(t *testing.T) {
		r := newEngine(RateLimit(stubLimiter{err: errors.New("redis down")}, monitoring.NewMetrics(), zap.NewNop()))

		w := serve(r, httptest.NewRequest(http.MethodPost, "/ping", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestBodySizeLimit(t *testing.T) {
	r := newEngine(BodySizeLimit(8))
	req := httptest.NewRequest(http.MethodPost, "/ping", strings.NewReader("0123456789"))

	w := serve(r, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Request body too large"}`, w.Body.String())
}

func TestRequestID(t *testing.T) {
	t.Run("生成新的请求 ID", func(t *testing.T) {
		w := serve(newEngine(RequestID()), httptest.NewRequest(http.MethodGet, "/ping", nil))

		assert.Len(t, w.Header().Get(RequestIDHeader), 36)
	})

	t.Run("沿用客户端提供的请求 ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(RequestIDHeader, "abc-123")

		w := serve(newEngine(RequestID()), req)

		assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	})
}

func TestPanicRecovery(t *testing.T) {
	mm := NewMonitoringMiddleware(monitoring.NewMetrics(), zap.NewNop())
	r := gin.New()
	r.Use(mm.PanicRecovery(), mm.HTTPMetrics())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Server error"}`, w.Body.String())
}
