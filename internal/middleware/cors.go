package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowMethods = "GET,POST,PUT,DELETE,OPTIONS"
	corsAllowHeaders = "Content-Type, x-admin-key"
)

// CORSPolicy 跨域策略，配置一次后由所有路由共享
//
// 通配模式下返回 "*" 且不设置 Vary；白名单模式下只回显名单内的来源并设置 Vary: Origin。
type CORSPolicy struct {
	wildcard bool
	allowed  map[string]struct{}
}

// NewCORSPolicy 根据来源列表创建跨域策略，列表为空或包含 "*" 时为通配模式
func NewCORSPolicy(origins []string) *CORSPolicy {
	p := &CORSPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		if o == "*" {
			p.wildcard = true
		}
		p.allowed[o] = struct{}{}
	}
	if len(origins) == 0 {
		p.wildcard = true
	}
	return p
}

// OriginAllowed 判断来源是否被允许
func (p *CORSPolicy) OriginAllowed(origin string) bool {
	if p.wildcard {
		return true
	}
	_, ok := p.allowed[origin]
	return ok
}

// Apply 写入跨域响应头
func (p *CORSPolicy) Apply(h http.Header, origin string) {
	switch {
	case p.wildcard:
		h.Set("Access-Control-Allow-Origin", "*")
	case origin != "" && p.OriginAllowed(origin):
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
	}
	h.Set("Access-Control-Allow-Methods", corsAllowMethods)
	h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
}

// Middleware 在路由分发与鉴权之前计算跨域头，预检请求直接返回 200 空响应
func (p *CORSPolicy) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		p.Apply(c.Writer.Header(), c.GetHeader("Origin"))

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}
