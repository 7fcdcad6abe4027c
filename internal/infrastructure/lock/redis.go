// Package lock provides the batch-creation locks: Redis-backed for
// multi-instance deployments and in-memory for a single process.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/domain/stocksync"
	"github.com/erp/stocksync/internal/infrastructure/config"
)

const defaultKeyPrefix = "stocksync:lock:"

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisBatchLocker implements stocksync.BatchLocker with redislock
type RedisBatchLocker struct {
	locker    *redislock.Client
	keyPrefix string
	wait      time.Duration
	logger    *zap.Logger
}

var _ stocksync.BatchLocker = (*RedisBatchLocker)(nil)

// RedisLockerOption configures a RedisBatchLocker
type RedisLockerOption func(*RedisBatchLocker)

// WithKeyPrefix sets the Redis key prefix
func WithKeyPrefix(prefix string) RedisLockerOption {
	return func(l *RedisBatchLocker) {
		l.keyPrefix = prefix
	}
}

// WithWait sets how long Acquire retries while the lock is held elsewhere
func WithWait(d time.Duration) RedisLockerOption {
	return func(l *RedisBatchLocker) {
		l.wait = d
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) RedisLockerOption {
	return func(l *RedisBatchLocker) {
		l.logger = logger
	}
}

// NewRedisBatchLocker creates a locker over an existing client
func NewRedisBatchLocker(client redis.UniversalClient, opts ...RedisLockerOption) *RedisBatchLocker {
	l := &RedisBatchLocker{
		locker:    redislock.New(client),
		keyPrefix: defaultKeyPrefix,
		wait:      5 * time.Second,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire obtains key for ttl. It retries with linear backoff for the
// configured wait and returns stocksync.ErrLockNotObtained when the lock
// stays held.
func (l *RedisBatchLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	retry := redislock.NoRetry()
	if l.wait > 0 {
		const step = 100 * time.Millisecond
		retry = redislock.LimitRetry(redislock.LinearBackoff(step), int(l.wait/step))
	}

	lk, err := l.locker.Obtain(ctx, l.keyPrefix+key, ttl, &redislock.Options{RetryStrategy: retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", stocksync.ErrLockNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	l.logger.Debug("Lock obtained", zap.String("key", key), zap.Duration("ttl", ttl))
	return func(ctx context.Context) error {
		err := lk.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("Lock expired before release", zap.String("key", key))
			return nil
		}
		return err
	}, nil
}
