// Package lock serializes ledger writes of one owner across server instances.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	redis "github.com/redis/go-redis/v9"
)

// ErrNotObtained means another instance holds the lock.
var ErrNotObtained = errors.New("ledger lock not obtained")

type Locker interface {
	// Obtain returns a release func once the key is held.
	Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

type Noop struct{}

func (Noop) Obtain(_ context.Context, _ string, _ time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

type RedisLocker struct {
	client *redislock.Client
	retry  redislock.RetryStrategy
}

// NewRedisLocker waits up to wait for a held key, polling every 25ms.
func NewRedisLocker(rdb *redis.Client, wait time.Duration) *RedisLocker {
	attempts := int(wait / (25 * time.Millisecond))
	retry := redislock.NoRetry()
	if attempts > 0 {
		retry = redislock.LimitRetry(redislock.LinearBackoff(25*time.Millisecond), attempts)
	}
	return &RedisLocker{client: redislock.New(rdb), retry: retry}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	held, err := l.client.Obtain(ctx, key, ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return func(ctx context.Context) error {
		if err := held.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return err
		}
		return nil
	}, nil
}

// LedgerKey is the lock key guarding one owner's ledger.
func LedgerKey(ownerID string) string {
	return "ledger:" + ownerID
}
