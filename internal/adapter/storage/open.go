package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/beer-stock/internal/config"
	"github.com/rl1809/beer-stock/internal/port"
)

// Open connects the configured record store. The returned func releases its
// connections.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (port.BeerRepository, func(), error) {
	switch cfg.Driver {
	case "mysql", "postgres":
		db, err := sql.Open(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
		}
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
		}

		adapter := NewMySQLAdapter(db)
		if cfg.Driver == "postgres" {
			adapter = NewPostgresAdapter(db)
		}
		if err := adapter.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("connected to database", zap.String("driver", cfg.Driver))
		return adapter, func() { db.Close() }, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: cfg.RedisPoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
		return NewRedisAdapter(rdb).WithLockTiming(cfg.LockTTL, cfg.LockWait), func() { rdb.Close() }, nil

	case "memory":
		logger.Info("using in-memory store")
		return NewMemoryAdapter(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
