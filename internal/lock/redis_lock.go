// internal/lock/redis_lock.go
package lock

import (
	"context"
	"fmt"
	"time"

	"remittance-service/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// compare-and-delete so only the holder can release
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLocker serializes across processes with SET NX PX. ttl must exceed
// the longest time a transfer may hold the lock.
type RedisLocker struct {
	client  *redis.Client
	ttl     time.Duration
	maxWait time.Duration
	poll    time.Duration
	logger  *zap.Logger
}

func NewRedisLocker(client *redis.Client, ttl, maxWait time.Duration, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{
		client:  client,
		ttl:     ttl,
		maxWait: maxWait,
		poll:    50 * time.Millisecond,
		logger:  logger,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := fmt.Sprintf("lock:wallet:%s", key)
	token := uuid.NewString()

	if l.maxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.maxWait)
		defer cancel()
	}

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if ok {
			l.logger.Debug("wallet lock acquired", zap.String("key", key))
			return func() { l.release(redisKey, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, domain.ErrLockNotAcquired
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) release(redisKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n, err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Int()
	if err != nil {
		l.logger.Error("failed to release wallet lock", zap.String("key", redisKey), zap.Error(err))
		return
	}
	if n == 0 {
		l.logger.Warn("wallet lock expired before release", zap.String("key", redisKey))
	}
}
