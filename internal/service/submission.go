package service

import (
	"context"
	"sync"
	"time"

	"portfolio/backend/internal/domain"
	"portfolio/backend/internal/storage"
)

// SubmissionListener 接收投稿变更事件
//
// OnSubmissionEvent 在请求协程中同步调用，实现不得阻塞。
type SubmissionListener interface {
	OnSubmissionEvent(event domain.SubmissionEvent)
}

// SubmissionService 封装联系表单投稿的业务操作。
type SubmissionService struct {
	repo storage.SubmissionRepository
	now  func() time.Time

	mu        sync.RWMutex
	listeners []SubmissionListener
}

// NewSubmissionService 创建投稿业务服务。
func NewSubmissionService(repo storage.SubmissionRepository) *SubmissionService {
	return &SubmissionService{
		repo: repo,
		now:  time.Now,
	}
}

// Subscribe 注册投稿事件监听器
func (s *SubmissionService) Subscribe(listener SubmissionListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// Create 校验并保存新投稿。
//
// 字段去除首尾空白后任一为空返回 domain.ErrMissingFields，
// 留言超过 1000 字符返回 domain.ErrMessageTooLong。
func (s *SubmissionService) Create(ctx context.Context, input domain.SubmissionInput) (*domain.Submission, error) {
	normalized, err := domain.NormalizeNew(input)
	if err != nil {
		return nil, err
	}

	submission := &domain.Submission{
		Name:      normalized.Name,
		Email:     normalized.Email,
		Message:   normalized.Message,
		CreatedAt: domain.FormatTimestamp(s.now()),
	}
	if err := s.repo.InsertSubmission(ctx, submission); err != nil {
		return nil, err
	}

	s.publish(domain.SubmissionCreated, submission.ID, submission)
	return submission, nil
}

// List 按创建时间倒序返回全部投稿。
func (s *SubmissionService) List(ctx context.Context) ([]domain.Submission, error) {
	return s.repo.ListSubmissions(ctx)
}

// Update 部分更新投稿，未提供的字段保持不变，updatedAt 总会刷新。
func (s *SubmissionService) Update(ctx context.Context, id string, patch domain.SubmissionPatch) (*domain.Submission, error) {
	normalized, err := domain.NormalizePatch(patch)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateSubmission(ctx, id, normalized, domain.FormatTimestamp(s.now()))
	if err != nil {
		return nil, err
	}

	s.publish(domain.SubmissionUpdated, updated.ID, updated)
	return updated, nil
}

// Delete 删除至多一条匹配的投稿，返回删除数量。
func (s *SubmissionService) Delete(ctx context.Context, id string) (int64, error) {
	removed, err := s.repo.DeleteSubmission(ctx, id)
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		s.publish(domain.SubmissionDeleted, id, nil)
	}
	return removed, nil
}

// publish 通知所有监听器
func (s *SubmissionService) publish(eventType domain.SubmissionEventType, id string, submission *domain.Submission) {
	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()

	if len(listeners) == 0 {
		return
	}

	event := domain.SubmissionEvent{
		Type: eventType,
		ID:   id,
		At:   domain.FormatTimestamp(s.now()),
	}
	if submission != nil {
		snapshot := *submission
		event.Submission = &snapshot
	}

	for _, l := range listeners {
		l.OnSubmissionEvent(event)
	}
}
