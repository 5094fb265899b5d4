// Package provider 根据配置选择并打开投稿存储。
package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"portfolio/backend/internal/config"
	"portfolio/backend/internal/storage"
	"portfolio/backend/internal/storage/memory"
	"portfolio/backend/internal/storage/mongo"
	"portfolio/backend/internal/storage/sql"
)

// Open 打开配置的存储
//
// mongo 驱动未配置连接字符串时记录警告并返回 storage.UnavailableStore，
// 之后每次存储调用都返回 storage.ErrConnection；连接失败时返回错误，不做重试。
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverMongo:
		if cfg.Mongo.URI == "" {
			log.Warn("mongo uri is not configured; storage requests will fail until PORTFOLIO_MONGO_URI is set")
			return storage.NewUnavailableStore("mongo uri is not configured"), nil
		}
		store, err := mongo.Open(ctx, mongo.Config{
			URI:            cfg.Mongo.URI,
			Database:       cfg.Mongo.Database,
			Collection:     cfg.Mongo.Collection,
			ConnectTimeout: cfg.Mongo.ConnectTimeout,
		})
		if err != nil {
			return nil, err
		}
		log.Info("using mongo storage",
			zap.String("database", cfg.Mongo.Database),
			zap.String("collection", cfg.Mongo.Collection),
		)
		return store, nil

	case config.DriverSQL:
		store, err := sql.NewStore(ctx, sql.Config{
			Driver:          cfg.Database.Type,
			DSN:             cfg.Database.DSN,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", storage.ErrConnection, err)
		}
		log.Info("using sql storage", zap.String("type", cfg.Database.Type))
		return store, nil

	case config.DriverMemory:
		log.Info("using memory storage (development mode)")
		return memory.NewStore(), nil
	}

	return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
}

// Prepare 为需要维护的存储创建索引并补写历史记录的 id
func Prepare(ctx context.Context, store storage.Store, log *zap.Logger) error {
	m, ok := store.(storage.Maintainer)
	if !ok {
		return nil
	}

	if err := m.EnsureIndexes(ctx); err != nil {
		return err
	}

	n, err := m.BackfillIDs(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info("backfilled legacy submission ids", zap.Int64("count", n))
	}
	return nil
}
