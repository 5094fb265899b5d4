package storage

import (
	"context"
	"errors"

	"portfolio/backend/internal/domain"
)

// ErrConnection 存储不可达或配置缺失
var ErrConnection = errors.New("storage connection failed")

// SubmissionRepository 定义投稿数据存取操作。
//
// id 参数均为客户端提供的原始标识，由各实现按自身的标识方案解析；
// 无法解析的标识视为不存在，不返回错误。
type SubmissionRepository interface {
	// InsertSubmission 一次性写入投稿并回填 ID
	InsertSubmission(ctx context.Context, submission *domain.Submission) error
	// ListSubmissions 按 createdAt 倒序返回全部投稿
	ListSubmissions(ctx context.Context) ([]domain.Submission, error)
	// FindSubmission 查找单条投稿，不存在时返回 domain.ErrNotFound
	FindSubmission(ctx context.Context, id string) (*domain.Submission, error)
	// UpdateSubmission 应用补丁并写入 updatedAt，返回更新后的投稿
	UpdateSubmission(ctx context.Context, id string, patch domain.SubmissionPatch, updatedAt string) (*domain.Submission, error)
	// DeleteSubmission 最多删除一条匹配记录，返回删除数量
	DeleteSubmission(ctx context.Context, id string) (int64, error)
}

// Store 投稿存储及其生命周期
type Store interface {
	SubmissionRepository
	Health(ctx context.Context) error
	Close(ctx context.Context) error
}

// Maintainer 由需要索引和历史数据修复的存储实现
type Maintainer interface {
	EnsureIndexes(ctx context.Context) error
	// BackfillIDs 为缺少冗余 id 字段的历史记录补写 id，返回修改数量
	BackfillIDs(ctx context.Context) (int64, error)
}
