package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"portfolio/backend/internal/domain"
	"portfolio/backend/internal/storage"
	"portfolio/backend/internal/storage/identity"
)

// Config 文档数据库连接参数
type Config struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// Store 基于 MongoDB 集合的投稿存储
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// document 集合中的投稿记录
//
// _id 可能是 ObjectID，也可能是历史数据中的字符串，因此解码为 any。
type document struct {
	NativeID  any    `bson:"_id,omitempty"`
	ID        string `bson:"id,omitempty"`
	Name      string `bson:"name"`
	Email     string `bson:"email"`
	Message   string `bson:"message"`
	CreatedAt string `bson:"createdAt,omitempty"`
	UpdatedAt string `bson:"updatedAt,omitempty"`
}

func (d *document) toDomain() domain.Submission {
	return domain.Submission{
		ID:        identity.External(d.NativeID, d.ID),
		Name:      d.Name,
		Email:     d.Email,
		Message:   d.Message,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// Open 连接 MongoDB 并验证可用性
//
// 连接字符串为空或服务器不可达时返回包装了 storage.ErrConnection 的错误。
// 返回的 Store 在进程内共享，关闭时调用 Close。
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("%w: mongo uri is empty", storage.ErrConnection)
	}
	if cfg.Collection == "" {
		cfg.Collection = "submissions"
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrConnection, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: %v", storage.ErrConnection, err)
	}

	return newStore(client, client.Database(cfg.Database).Collection(cfg.Collection)), nil
}

func newStore(client *mongo.Client, collection *mongo.Collection) *Store {
	return &Store{client: client, collection: collection}
}

// Close 断开数据库连接
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Health 检查数据库连接
func (s *Store) Health(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// EnsureIndexes 创建 createdAt 倒序索引
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create createdAt index: %w", err)
	}
	return nil
}

// BackfillIDs 将缺少 id 字段的记录补写为 _id 的字符串形式
func (s *Store) BackfillIDs(ctx context.Context) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: identity.Field, Value: bson.D{{Key: "$toString", Value: "$_id"}}}}}},
	}
	res, err := s.collection.UpdateMany(ctx, bson.M{identity.Field: bson.M{"$exists": false}}, pipeline)
	if err != nil {
		return 0, fmt.Errorf("backfill submission ids: %w", err)
	}
	return res.ModifiedCount, nil
}

// InsertSubmission 写入投稿
//
// 插入前生成 ObjectID，同时写入 _id 与 id，记录从不处于缺少 id 的状态。
func (s *Store) InsertSubmission(ctx context.Context, submission *domain.Submission) error {
	oid := primitive.NewObjectID()
	doc := document{
		NativeID:  oid,
		ID:        oid.Hex(),
		Name:      submission.Name,
		Email:     submission.Email,
		Message:   submission.Message,
		CreatedAt: submission.CreatedAt,
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	submission.ID = oid.Hex()
	return nil
}

// ListSubmissions 按 createdAt 倒序返回全部投稿
func (s *Store) ListSubmissions(ctx context.Context) ([]domain.Submission, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find submissions: %w", err)
	}

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode submissions: %w", err)
	}

	submissions := make([]domain.Submission, 0, len(docs))
	for i := range docs {
		submissions = append(submissions, docs[i].toDomain())
	}
	return submissions, nil
}

// FindSubmission 按任意一种标识方案查找投稿
func (s *Store) FindSubmission(ctx context.Context, id string) (*domain.Submission, error) {
	var doc document
	err := s.collection.FindOne(ctx, identity.Filter(id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find submission: %w", err)
	}
	submission := doc.toDomain()
	return &submission, nil
}

// UpdateSubmission 原子地应用补丁并返回更新后的记录
func (s *Store) UpdateSubmission(ctx context.Context, id string, patch domain.SubmissionPatch, updatedAt string) (*domain.Submission, error) {
	set := bson.M{"updatedAt": updatedAt}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.Message != nil {
		set["message"] = *patch.Message
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc document
	err := s.collection.FindOneAndUpdate(ctx, identity.Filter(id), bson.M{"$set": set}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update submission: %w", err)
	}
	submission := doc.toDomain()
	return &submission, nil
}

// DeleteSubmission 删除第一条匹配记录
func (s *Store) DeleteSubmission(ctx context.Context, id string) (int64, error) {
	res, err := s.collection.DeleteOne(ctx, identity.Filter(id))
	if err != nil {
		return 0, fmt.Errorf("delete submission: %w", err)
	}
	return res.DeletedCount, nil
}

var (
	_ storage.Store      = (*Store)(nil)
	_ storage.Maintainer = (*Store)(nil)
)
