package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/config"
)

// LockKey is the Redis key shared by every replica.
const LockKey = "telemetry:ingest:lock"

// NewOpenerFromConfig enables object-storage paths when MinIO is configured.
func NewOpenerFromConfig(cfg *config.Config, logger *slog.Logger) (*SourceOpener, error) {
	if cfg.MinIO.Endpoint == "" {
		return NewSourceOpener(cfg.IngestBaseDir, nil), nil
	}

	objects, err := NewObjectStore(cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, cfg.MinIO.UseTLS)
	if err != nil {
		return nil, err
	}
	logger.Info("object storage sources enabled", "endpoint", cfg.MinIO.Endpoint)
	return NewSourceOpener(cfg.IngestBaseDir, objects), nil
}

// NewLockerFromConfig returns a RedisLocker when REDIS_ADDR is set and a
// LocalLocker otherwise. The returned func closes any client it opened.
func NewLockerFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Locker, func(), error) {
	if cfg.Redis.Addr == "" {
		return NewLocalLocker(), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("connect to redis %s: %w", cfg.Redis.Addr, err)
	}

	logger.Info("shared ingestion lock enabled", "redis", cfg.Redis.Addr)
	lockLogger := logger.With("component", "ingest_lock")
	return NewRedisLocker(rdb, LockKey, cfg.IngestLockTTL, lockLogger), func() { _ = rdb.Close() }, nil
}
