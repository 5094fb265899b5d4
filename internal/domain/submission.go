package domain

import (
	"errors"
	"time"
)

// TimestampLayout 投稿时间戳格式（UTC，毫秒精度）
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// MaxMessageLength 留言内容的最大字符数
const MaxMessageLength = 1000

var (
	// ErrMissingFields 创建投稿时缺少必填字段
	ErrMissingFields = errors.New("missing required fields")
	// ErrMessageTooLong 留言超过长度限制
	ErrMessageTooLong = errors.New("message is too long")
	// ErrNotFound 投稿不存在
	ErrNotFound = errors.New("submission not found")
)

// Submission 表示一条联系表单投稿。
type Submission struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Message   string `json:"message"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt,omitempty"` // 首次更新前为空
}

// SubmissionInput 公开接口提交的原始表单
type SubmissionInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// SubmissionPatch 管理员部分更新，nil 字段保持不变
type SubmissionPatch struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Message *string `json:"message"`
}

// Empty 判断补丁是否不包含任何字段
func (p SubmissionPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Message == nil
}

// FormatTimestamp 将时间格式化为投稿时间戳
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// SubmissionEventType 投稿生命周期事件类型
type SubmissionEventType string

const (
	SubmissionCreated SubmissionEventType = "created"
	SubmissionUpdated SubmissionEventType = "updated"
	SubmissionDeleted SubmissionEventType = "deleted"
)

// SubmissionEvent 投稿变更事件，推送给实时面板、邮件通知和指标统计。
type SubmissionEvent struct {
	Type       SubmissionEventType `json:"type"`
	ID         string              `json:"id"`
	Submission *Submission         `json:"submission,omitempty"` // 删除事件为空
	At         string              `json:"at"`
}
