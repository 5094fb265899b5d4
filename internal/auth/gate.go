// Package auth 管理接口的共享密钥校验。
package auth

import (
	"crypto/subtle"
	"errors"
)

// HeaderName 客户端提交管理密钥的请求头
const HeaderName = "x-admin-key"

var (
	// ErrAdminKeyMissing 服务器未配置管理密钥，管理功能处于禁用状态
	ErrAdminKeyMissing = errors.New("admin key is missing on server")
	// ErrUnauthorized 未提供管理密钥或密钥不匹配
	ErrUnauthorized = errors.New("unauthorized")
)

// Gate 管理权限校验器，配置一次后由所有管理路由共享
type Gate struct {
	key []byte
}

// NewGate 创建校验器，key 为空时所有请求返回 ErrAdminKeyMissing
func NewGate(key string) *Gate {
	return &Gate{key: []byte(key)}
}

// Configured 判断服务器是否配置了管理密钥
func (g *Gate) Configured() bool {
	return len(g.key) > 0
}

// Authorize 校验客户端提交的密钥
//
// 比较区分大小写，耗时与密钥内容无关。
func (g *Gate) Authorize(supplied string) error {
	if !g.Configured() {
		return ErrAdminKeyMissing
	}
	if supplied == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(supplied), g.key) != 1 {
		return ErrUnauthorized
	}
	return nil
}
