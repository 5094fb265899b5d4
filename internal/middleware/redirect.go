package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CanonicalRedirect 将非本地请求重定向到 https 和规范主机名
//
// 协议优先取反向代理设置的 X-Forwarded-Proto。本地主机（localhost、127.0.0.1）不做重定向。
func CanonicalRedirect(canonicalHost string, forceHTTPS bool) gin.HandlerFunc {
	canonicalHost = strings.ToLower(canonicalHost)

	return func(c *gin.Context) {
		host := c.Request.Host
		hostname := strings.ToLower(stripPort(host))
		if hostname == "localhost" || hostname == "127.0.0.1" || hostname == "" {
			c.Next()
			return
		}

		proto := c.GetHeader("X-Forwarded-Proto")
		if proto == "" {
			proto = "http"
			if c.Request.TLS != nil {
				proto = "https"
			}
		}

		if forceHTTPS && proto == "http" {
			c.Redirect(http.StatusMovedPermanently, "https://"+host+c.Request.URL.RequestURI())
			c.Abort()
			return
		}

		if canonicalHost != "" && hostname != canonicalHost {
			c.Redirect(http.StatusMovedPermanently, "https://"+canonicalHost+c.Request.URL.RequestURI())
			c.Abort()
			return
		}

		c.Next()
	}
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
