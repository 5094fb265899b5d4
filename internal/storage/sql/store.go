package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"portfolio/backend/internal/domain"
	"portfolio/backend/internal/storage"
)

// submissionRecord submissions 表的行结构
//
// 关系型存储只有一种标识方案：字符串主键。
type submissionRecord struct {
	ID      string  `gorm:"primaryKey;type:varchar(36)"`
	Name    string  `gorm:"type:varchar(255);not null"`
	Email   string  `gorm:"type:varchar(255);not null"`
	Message string  `gorm:"type:text;not null"`
	Created string  `gorm:"column:created_at;type:varchar(32);index:idx_submissions_created_at,sort:desc"`
	Updated *string `gorm:"column:updated_at;type:varchar(32)"`
}

func (submissionRecord) TableName() string {
	return "submissions"
}

func (r *submissionRecord) toDomain() domain.Submission {
	s := domain.Submission{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Message:   r.Message,
		CreatedAt: r.Created,
	}
	if r.Updated != nil {
		s.UpdatedAt = *r.Updated
	}
	return s
}

// Config SQL 数据库连接参数
type Config struct {
	Driver          string // "mysql" 或 "postgres"
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store SQL 数据库存储实现（支持 MySQL 5.7+ 和 PostgreSQL）
type Store struct {
	db     *sql.DB
	gormDB *gorm.DB
}

// NewStore 创建SQL数据库存储并自动迁移 submissions 表
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	// 验证驱动类型
	if cfg.Driver != "mysql" && cfg.Driver != "postgres" {
		return nil, fmt.Errorf("unsupported database driver: %s (supported: mysql, postgres)", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: database dsn is empty", storage.ErrConnection)
	}

	// 打开数据库连接
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrConnection, err)
	}

	// 设置连接池参数
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// 测试连接
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", storage.ErrConnection, err)
	}

	store, err := newStoreWithDB(db, cfg.Driver)
	if err != nil {
		db.Close()
		return nil, err
	}

	// 自动执行数据库迁移
	if err := store.gormDB.WithContext(ctx).AutoMigrate(&submissionRecord{}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// newStoreWithDB 在已有连接上初始化 GORM，不执行迁移
func newStoreWithDB(db *sql.DB, driver string) (*Store, error) {
	var dialector gorm.Dialector
	if driver == "mysql" {
		dialector = mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true})
	} else {
		dialector = postgres.New(postgres.Config{Conn: db})
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GORM: %w", err)
	}

	return &Store{db: db, gormDB: gormDB}, nil
}

// Close 关闭数据库连接
func (s *Store) Close(_ context.Context) error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Health 检查数据库健康状态
func (s *Store) Health(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.PingContext(ctx)
}

// InsertSubmission 写入投稿，主键在插入前生成
func (s *Store) InsertSubmission(ctx context.Context, submission *domain.Submission) error {
	rec := submissionRecord{
		ID:      uuid.NewString(),
		Name:    submission.Name,
		Email:   submission.Email,
		Message: submission.Message,
		Created: submission.CreatedAt,
	}
	if err := s.gormDB.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	submission.ID = rec.ID
	return nil
}

// ListSubmissions 按 created_at 倒序返回全部投稿
func (s *Store) ListSubmissions(ctx context.Context) ([]domain.Submission, error) {
	var recs []submissionRecord
	if err := s.gormDB.WithContext(ctx).Order("created_at DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	submissions := make([]domain.Submission, 0, len(recs))
	for i := range recs {
		submissions = append(submissions, recs[i].toDomain())
	}
	return submissions, nil
}

// FindSubmission 按主键查找投稿
func (s *Store) FindSubmission(ctx context.Context, id string) (*domain.Submission, error) {
	var rec submissionRecord
	err := s.gormDB.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find submission: %w", err)
	}
	submission := rec.toDomain()
	return &submission, nil
}

// UpdateSubmission 应用补丁后重新读取记录
//
// MySQL 在值未变化时报告 0 行受影响，因此以重新读取的结果判断记录是否存在。
func (s *Store) UpdateSubmission(ctx context.Context, id string, patch domain.SubmissionPatch, updatedAt string) (*domain.Submission, error) {
	updates := map[string]any{"updated_at": updatedAt}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Email != nil {
		updates["email"] = *patch.Email
	}
	if patch.Message != nil {
		updates["message"] = *patch.Message
	}

	err := s.gormDB.WithContext(ctx).Model(&submissionRecord{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		return nil, fmt.Errorf("update submission: %w", err)
	}
	return s.FindSubmission(ctx, id)
}

// DeleteSubmission 按主键删除投稿
func (s *Store) DeleteSubmission(ctx context.Context, id string) (int64, error) {
	res := s.gormDB.WithContext(ctx).Where("id = ?", id).Delete(&submissionRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete submission: %w", res.Error)
	}
	return res.RowsAffected, nil
}

var _ storage.Store = (*Store)(nil)
