package httptransport

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	cacheControlAssets = "public, max-age=2592000" // 30 天
	cacheControlHTML   = "public, max-age=0, must-revalidate"
)

// staticSite 前端构建产物与自定义 404 页面
type staticSite struct {
	root string
}

// resolve 将请求路径映射为站点目录下的文件，目录取其 index.html
func (s staticSite) resolve(urlPath string) (string, bool) {
	if s.root == "" {
		return "", false
	}

	name := filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+urlPath)))
	info, err := os.Stat(name)
	if err != nil {
		return "", false
	}
	if info.IsDir() {
		name = filepath.Join(name, "index.html")
		if info, err = os.Stat(name); err != nil || info.IsDir() {
			return "", false
		}
	}
	return name, true
}

// serve 返回静态文件，HTML 不缓存，其余资源缓存 30 天
func (s staticSite) serve(c *gin.Context) bool {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		return false
	}

	name, ok := s.resolve(c.Request.URL.Path)
	if !ok {
		return false
	}

	if strings.HasSuffix(name, ".html") {
		c.Header("Cache-Control", cacheControlHTML)
	} else {
		c.Header("Cache-Control", cacheControlAssets)
	}
	c.File(name)
	return true
}

// notFound 返回 404 页面，页面不存在时退回纯文本
func (s staticSite) notFound(c *gin.Context) {
	if s.root != "" {
		if page, err := os.ReadFile(filepath.Join(s.root, "404.html")); err == nil {
			c.Data(http.StatusNotFound, "text/html; charset=utf-8", page)
			return
		}
	}
	c.String(http.StatusNotFound, "Not Found")
}

// noRoute API 路径返回 JSON，其余路径尝试静态文件
func (s staticSite) noRoute(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") || c.Request.URL.Path == "/api" {
		Error(c, http.StatusNotFound, MsgRouteNotFound)
		return
	}
	if s.serve(c) {
		return
	}
	s.notFound(c)
}
