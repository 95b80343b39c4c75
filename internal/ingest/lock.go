package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRunInProgress is returned when another ingestion run holds the lock.
var ErrRunInProgress = errors.New("ingestion run already in progress")

// Locker serialises ingestion runs. TryLock never blocks: it either returns
// a release func or ErrRunInProgress.
type Locker interface {
	TryLock(ctx context.Context) (func(), error)
}

// LocalLocker serialises runs within one process.
type LocalLocker struct {
	mu sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{}
}

func (l *LocalLocker) TryLock(_ context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	return l.mu.Unlock, nil
}

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by another replica is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serialises runs across replicas sharing one Redis.
type RedisLocker struct {
	rdb    *redis.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisLocker uses key as the lock name. ttl bounds how long a crashed
// holder can block other runs.
func NewRedisLocker(rdb *redis.Client, key string, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	return &RedisLocker{rdb: rdb, key: key, ttl: ttl, logger: logger}
}

func (l *RedisLocker) TryLock(ctx context.Context) (func(), error) {
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire ingest lock: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}

	return func() {
		// The run's context may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err(); err != nil {
			l.logger.Warn("failed to release ingest lock", "key", l.key, "error", err)
		}
	}, nil
}
