package memory

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"portfolio/backend/internal/domain"
	"portfolio/backend/internal/storage"
	"portfolio/backend/internal/storage/identity"
)

// record 模拟文档数据库中的一条记录
type record struct {
	nativeID   any    // primitive.ObjectID 或历史数据中的字符串
	denormID   string // 冗余 id 字段，空字符串表示缺失
	submission domain.Submission
}

func (r *record) toDomain() domain.Submission {
	s := r.submission
	s.ID = identity.External(r.nativeID, r.denormID)
	return s
}

// Store 使用内存保存投稿数据，主要用于开发验证和测试。
//
// 记录按插入顺序保存，标识解析规则与文档数据库一致。
type Store struct {
	mu      sync.RWMutex
	records []*record
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{}
}

// InsertSubmission 写入投稿并生成 ObjectID 标识。
func (s *Store) InsertSubmission(_ context.Context, submission *domain.Submission) error {
	oid := primitive.NewObjectID()

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *submission
	stored.ID = ""
	stored.UpdatedAt = ""
	s.records = append(s.records, &record{
		nativeID:   oid,
		denormID:   oid.Hex(),
		submission: stored,
	})
	submission.ID = oid.Hex()
	return nil
}

// InsertLegacy 按指定标识方案写入记录，用于导入历史数据。
//
// nativeID 为 nil 时记录只能通过冗余 id 字段定位。
func (s *Store) InsertLegacy(nativeID any, denormID string, submission domain.Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()

	submission.ID = ""
	s.records = append(s.records, &record{
		nativeID:   nativeID,
		denormID:   denormID,
		submission: submission,
	})
}

// ListSubmissions 按 createdAt 倒序返回全部投稿，缺少时间戳的排在最后。
func (s *Store) ListSubmissions(_ context.Context) ([]domain.Submission, error) {
	s.mu.RLock()
	submissions := make([]domain.Submission, 0, len(s.records))
	for _, r := range s.records {
		submissions = append(submissions, r.toDomain())
	}
	s.mu.RUnlock()

	sort.SliceStable(submissions, func(i, j int) bool {
		return submissions[i].CreatedAt > submissions[j].CreatedAt
	})
	return submissions, nil
}

// FindSubmission 返回第一条匹配的投稿。
func (s *Store) FindSubmission(_ context.Context, id string) (*domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return nil, domain.ErrNotFound
	}
	submission := s.records[idx].toDomain()
	return &submission, nil
}

// UpdateSubmission 对第一条匹配的投稿应用补丁。
func (s *Store) UpdateSubmission(_ context.Context, id string, patch domain.SubmissionPatch, updatedAt string) (*domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return nil, domain.ErrNotFound
	}

	r := s.records[idx]
	if patch.Name != nil {
		r.submission.Name = *patch.Name
	}
	if patch.Email != nil {
		r.submission.Email = *patch.Email
	}
	if patch.Message != nil {
		r.submission.Message = *patch.Message
	}
	r.submission.UpdatedAt = updatedAt

	submission := r.toDomain()
	return &submission, nil
}

// DeleteSubmission 删除第一条匹配的投稿，其余匹配记录保留。
func (s *Store) DeleteSubmission(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return 0, nil
	}
	s.records = append(s.records[:idx], s.records[idx+1:]...)
	return 1, nil
}

// EnsureIndexes 内存存储无需索引。
func (s *Store) EnsureIndexes(_ context.Context) error {
	return nil
}

// BackfillIDs 为缺少冗余 id 字段的记录补写 _id 的字符串形式。
func (s *Store) BackfillIDs(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var modified int64
	for _, r := range s.records {
		if r.denormID != "" || r.nativeID == nil {
			continue
		}
		r.denormID = identity.External(r.nativeID, "")
		modified++
	}
	return modified, nil
}

// Health 内存存储始终可用。
func (s *Store) Health(_ context.Context) error {
	return nil
}

// Close 释放内存数据。
func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	s.records = nil
	s.mu.Unlock()
	return nil
}

func (s *Store) indexLocked(id string) int {
	for i, r := range s.records {
		if identity.Matches(id, r.nativeID, r.denormID) {
			return i
		}
	}
	return -1
}

var (
	_ storage.Store      = (*Store)(nil)
	_ storage.Maintainer = (*Store)(nil)
)
