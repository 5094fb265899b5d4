package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"portfolio/backend/internal/auth"
	"portfolio/backend/internal/cache"
	"portfolio/backend/internal/config"
	"portfolio/backend/internal/health"
	"portfolio/backend/internal/middleware"
	"portfolio/backend/internal/monitoring"
	"portfolio/backend/internal/ratelimit"
	"portfolio/backend/internal/service"
	"portfolio/backend/internal/storage"
	"portfolio/backend/internal/storage/memory"
	"portfolio/backend/internal/websocket"
)

const testAdminKey = "s3cret"

type testEnv struct {
	router *gin.Engine
	store  *memory.Store
}

type envOption func(*RouterDependencies)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	cfg := &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Site:   config.SiteConfig{StaticDir: t.TempDir()},
	}

	deps := RouterDependencies{
		Config:            cfg,
		SubmissionService: service.NewSubmissionService(store),
		Gate:              auth.NewGate(testAdminKey),
		CORS:              middleware.NewCORSPolicy([]string{"*"}),
		Health:            health.NewHealthChecker(store, nil, zap.NewNop()),
		Metrics:           monitoring.NewMetrics(),
		Logger:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &testEnv{router: NewRouter(deps), store: store}
}

func (e *testEnv) do(method, target, body string, admin bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if admin {
		req.Header.Set(auth.HeaderName, testAdminKey)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) doWithKey(method, target, body, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.HeaderName, key)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type entryResponse struct {
	Success bool `json:"success"`
	Entry   struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		Message   string `json:"message"`
		CreatedAt string `json:"createdAt"`
		UpdatedAt string `json:"updatedAt"`
	} `json:"entry"`
}

type listResponse struct {
	Success     bool `json:"success"`
	Submissions []struct {
		ID string `json:"id"`
	} `json:"submissions"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestSubmissionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/contact", `{"name":"A","email":"a@x.com","message":"hi"}`, false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[entryResponse](t, w)
	assert.True(t, created.Success)
	assert.NotEmpty(t, created.Entry.ID)
	assert.Equal(t, "A", created.Entry.Name)
	assert.Equal(t, "a@x.com", created.Entry.Email)
	assert.Equal(t, "hi", created.Entry.Message)
	assert.NotEmpty(t, created.Entry.CreatedAt)
	assert.Empty(t, created.Entry.UpdatedAt)

	id := created.Entry.ID

	w = env.do(http.MethodPut, "/api/submissions/"+id, `{"message":"hi there"}`, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[entryResponse](t, w)
	assert.Equal(t, id, updated.Entry.ID)
	assert.Equal(t, "hi there", updated.Entry.Message)
	assert.Equal(t, "A", updated.Entry.Name)
	assert.Equal(t, "a@x.com", updated.Entry.Email)
	assert.NotEmpty(t, updated.Entry.UpdatedAt)

	w = env.do(http.MethodDelete, "/api/submissions/"+id, "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"removed":1}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/submissions", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[listResponse](t, w)
	assert.True(t, list.Success)
	for _, s := range list.Submissions {
		assert.NotEqual(t, id, s.ID)
	}
}

func TestContactValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "缺少字段", body: `{"name":"A","email":"a@x.com"}`, want: MsgMissingFields},
		{name: "空白字段", body: `{"name":"  ","email":"a@x.com","message":"hi"}`, want: MsgMissingFields},
		{name: "留言超长", body: `{"name":"A","email":"a@x.com","message":"` + strings.Repeat("x", 1001) + `"}`, want: MsgMessageTooLong},
		{name: "格式错误的 JSON 按空对象处理", body: `{"name":`, want: MsgMissingFields},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/contact", tt.body, false)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, ErrorResponse{Success: false, Error: tt.want}, decode[ErrorResponse](t, w))
		})
	}

	t.Run("非字符串标量按文本保存", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/contact", `{"name":"A","email":"a@x.com","message":12345}`, false)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, "12345", decode[entryResponse](t, w).Entry.Message)
	})

	t.Run("null 字段视为缺失", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/contact", `{"name":"A","email":"a@x.com","message":null}`, false)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, ErrorResponse{Success: false, Error: MsgMissingFields}, decode[ErrorResponse](t, w))
	})

	t.Run("字段在保存前去除空白", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/contact", `{"name":" A ","email":" a@x.com ","message":" hi "}`, false)

		require.Equal(t, http.StatusCreated, w.Code)
		created := decode[entryResponse](t, w)
		assert.Equal(t, "A", created.Entry.Name)
		assert.Equal(t, "a@x.com", created.Entry.Email)
		assert.Equal(t, "hi", created.Entry.Message)
	})

	t.Run("请求体过大返回 413", func(t *testing.T) {
		body := `{"name":"A","email":"a@x.com","message":"` + strings.Repeat("x", middleware.APIBodyLimit) + `"}`

		w := env.do(http.MethodPost, "/api/contact", body, false)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestAdminRoutes(t *testing.T) {
	t.Run("缺少管理密钥返回 401", func(t *testing.T) {
		env := newTestEnv(t)

		for _, tc := range []struct{ method, path string }{
			{http.MethodGet, "/api/submissions"},
			{http.MethodPut, "/api/submissions/abc"},
			{http.MethodDelete, "/api/submissions/abc"},
		} {
			w := env.do(tc.method, tc.path, "", false)
			assert.Equal(t, http.StatusUnauthorized, w.Code, tc.method+" "+tc.path)
			assert.JSONEq(t, `{"success":false,"error":"Unauthorized"}`, w.Body.String())
		}
	})

	t.Run("错误密钥不修改已有投稿", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(http.MethodPost, "/api/contact", `{"name":"A","email":"a@x.com","message":"hi"}`, false)
		require.Equal(t, http.StatusCreated, w.Code)
		id := decode[entryResponse](t, w).Entry.ID
		before, err := env.store.FindSubmission(context.Background(), id)
		require.NoError(t, err)

		w = env.doWithKey(http.MethodPut, "/api/submissions/"+id, `{"message":"changed"}`, "wrong")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		w = env.doWithKey(http.MethodDelete, "/api/submissions/"+id, "", "wrong")
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		list := decode[listResponse](t, env.do(http.MethodGet, "/api/submissions", "", true))
		require.Len(t, list.Submissions, 1)
		assert.Equal(t, id, list.Submissions[0].ID)

		after, err := env.store.FindSubmission(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, before, after)
		assert.Equal(t, "hi", after.Message)
		assert.Empty(t, after.UpdatedAt)
	})

	t.Run("更新时数字留言按文本保存", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(http.MethodPost, "/api/contact", `{"name":"A","email":"a@x.com","message":"hi"}`, false)
		id := decode[entryResponse](t, w).Entry.ID

		w = env.do(http.MethodPut, "/api/submissions/"+id, `{"message":42,"name":null}`, true)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		updated := decode[entryResponse](t, w)
		assert.Equal(t, "42", updated.Entry.Message)
		assert.Equal(t, "A", updated.Entry.Name)
	})

	t.Run("服务器未配置密钥返回 500", func(t *testing.T) {
		env := newTestEnv(t, func(d *RouterDependencies) { d.Gate = auth.NewGate("") })

		w := env.do(http.MethodGet, "/api/submissions", "", true)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"success":false,"error":"ADMIN_KEY is missing on server"}`, w.Body.String())
	})

	t.Run("更新不存在的投稿返回 404", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(http.MethodPut, "/api/submissions/65a1b2c3d4e5f60718293a4b", `{"name":"B"}`, true)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"success":false,"error":"Submission not found."}`, w.Body.String())
	})

	t.Run("更新时留言超长返回 400", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(http.MethodPost, "/api/contact", `{"name":"A","email":"a@x.com","message":"hi"}`, false)
		id := decode[entryResponse](t, w).Entry.ID

		w = env.do(http.MethodPut, "/api/submissions/"+id, `{"message":"`+strings.Repeat("x", 1001)+`"}`, true)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"success":false,"error":"Message is too long (max 1000 characters)."}`, w.Body.String())
	})

	t.Run("删除不存在的投稿返回 removed 0", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(http.MethodDelete, "/api/submissions/nope", "", true)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true,"removed":0}`, w.Body.String())
	})

	t.Run("列表按创建时间倒序", func(t *testing.T) {
		env := newTestEnv(t)
		env.do(http.MethodPost, "/api/contact", `{"name":"first","email":"a@x.com","message":"1"}`, false)
		time.Sleep(2 * time.Millisecond)
		w := env.do(http.MethodPost, "/api/contact", `{"name":"second","email":"a@x.com","message":"2"}`, false)
		latest := decode[entryResponse](t, w).Entry.ID

		list := decode[listResponse](t, env.do(http.MethodGet, "/api/submissions", "", true))

		require.Len(t, list.Submissions, 2)
		assert.Equal(t, latest, list.Submissions[0].ID)
	})
}

func TestRoutingErrors(t *testing.T) {
	env := newTestEnv(t)

	t.Run("已知路径使用错误方法返回 405", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/contact", "", false)

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		assert.JSONEq(t, `{"success":false,"error":"Method not allowed"}`, w.Body.String())
	})

	t.Run("预检请求返回 200 空响应", func(t *testing.T) {
		w := env.do(http.MethodOptions, "/api/submissions/abc", "", false)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Content-Type, x-admin-key", w.Header().Get("Access-Control-Allow-Headers"))
	})

	t.Run("错误响应同样带有跨域头", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/submissions", "", false)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("未知 API 路径返回 JSON 404", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/nope", "", false)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"success":false,"error":"Route not found"}`, w.Body.String())
	})
}

func TestStaticSite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>home</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "404.html"), []byte("<h1>missing</h1>"), 0o644))

	env := newTestEnv(t, func(d *RouterDependencies) { d.Config.Site.StaticDir = dir })

	t.Run("首页不缓存", func(t *testing.T) {
		w := env.do(http.MethodGet, "/", "", false)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "home")
		assert.Equal(t, cacheControlHTML, w.Header().Get("Cache-Control"))
	})

	t.Run("静态资源缓存 30 天", func(t *testing.T) {
		w := env.do(http.MethodGet, "/app.js", "", false)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, cacheControlAssets, w.Header().Get("Cache-Control"))
	})

	t.Run("不存在的页面返回自定义 404", func(t *testing.T) {
		w := env.do(http.MethodGet, "/nope", "", false)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "missing")
	})

	t.Run("路径穿越被限制在站点目录内", func(t *testing.T) {
		w := env.do(http.MethodGet, "/../../etc/passwd", "", false)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAPIHealth(t *testing.T) {
	t.Run("存储可用", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(http.MethodGet, "/api/health", "", false)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decode[map[string]any](t, w)
		assert.Equal(t, true, body["ok"])
		assert.Contains(t, body, "uptime")
	})

	t.Run("存储不可用", func(t *testing.T) {
		failing := health.PingFunc(func(context.Context) error { return errors.New("no route to host") })
		env := newTestEnv(t, func(d *RouterDependencies) {
			d.Health = health.NewHealthChecker(failing, nil, zap.NewNop())
		})

		w := env.do(http.MethodGet, "/api/health", "", false)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"ok":false,"error":"DB connection failed"}`, w.Body.String())
	})
}

func TestUnconfiguredStorage(t *testing.T) {
	store := storage.NewUnavailableStore("mongo uri is not configured")
	env := newTestEnv(t, func(d *RouterDependencies) {
		d.SubmissionService = service.NewSubmissionService(store)
		d.Health = health.NewHealthChecker(store, nil, zap.NewNop())
	})

	t.Run("提交联系表单返回 500", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/contact", `{"name":"A","email":"a@x.com","message":"hi"}`, false)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"success":false,"error":"Server error"}`, w.Body.String())
	})

	t.Run("管理接口返回 500", func(t *testing.T) {
		for _, tc := range []struct{ method, path, body string }{
			{http.MethodGet, "/api/submissions", ""},
			{http.MethodPut, "/api/submissions/abc", `{"name":"B"}`},
			{http.MethodDelete, "/api/submissions/abc", ""},
		} {
			w := env.do(tc.method, tc.path, tc.body, true)
			assert.Equal(t, http.StatusInternalServerError, w.Code, tc.method+" "+tc.path)
		}
	})

	t.Run("健康检查报告数据库不可用", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/health", "", false)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"ok":false,"error":"DB connection failed"}`, w.Body.String())
	})
}

func TestRequestLogRedactsAdminKey(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)
	env := newTestEnv(t, func(d *RouterDependencies) {
		d.Logger = log
		d.WebSocketHub = websocket.NewHub(nil, d.Metrics, log)
	})

	w := env.do(http.MethodGet, "/api/submissions?key="+testAdminKey, "", false)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	w = env.do(http.MethodGet, "/api/submissions/stream?key=wrong-"+testAdminKey, "", false)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	require.NotZero(t, logs.Len())
	for _, entry := range logs.All() {
		for name, value := range entry.ContextMap() {
			assert.NotContains(t, fmt.Sprint(value), testAdminKey, "%s field %q", entry.Message, name)
		}
	}
}

func TestContactRateLimit(t *testing.T) {
	limiter := ratelimit.NewLocalLimiter(1, cache.NewLocalCache(time.Minute, time.Minute))
	env := newTestEnv(t, func(d *RouterDependencies) { d.Limiter = limiter })
	body := `{"name":"A","email":"a@x.com","message":"hi"}`

	assert.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/contact", body, false).Code)

	w := env.do(http.MethodPost, "/api/contact", body, false)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Too many requests"}`, w.Body.String())
}
