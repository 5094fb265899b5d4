package storage

import (
	"context"
	"fmt"

	"portfolio/backend/internal/domain"
)

// UnavailableStore 存储未配置时的占位实现
//
// 进程可以启动并提供静态页面，但每一次存储调用都返回包装了 ErrConnection 的错误。
type UnavailableStore struct {
	reason string
}

// NewUnavailableStore 创建占位存储，reason 说明不可用的原因
func NewUnavailableStore(reason string) *UnavailableStore {
	return &UnavailableStore{reason: reason}
}

func (s *UnavailableStore) err() error {
	return fmt.Errorf("%w: %s", ErrConnection, s.reason)
}

func (s *UnavailableStore) InsertSubmission(context.Context, *domain.Submission) error {
	return s.err()
}

func (s *UnavailableStore) ListSubmissions(context.Context) ([]domain.Submission, error) {
	return nil, s.err()
}

func (s *UnavailableStore) FindSubmission(context.Context, string) (*domain.Submission, error) {
	return nil, s.err()
}

func (s *UnavailableStore) UpdateSubmission(context.Context, string, domain.SubmissionPatch, string) (*domain.Submission, error) {
	return nil, s.err()
}

func (s *UnavailableStore) DeleteSubmission(context.Context, string) (int64, error) {
	return 0, s.err()
}

// Health 始终报告连接失败
func (s *UnavailableStore) Health(context.Context) error {
	return s.err()
}

func (s *UnavailableStore) Close(context.Context) error {
	return nil
}

var _ Store = (*UnavailableStore)(nil)
