package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/onap/policy-clamp-acm/internal/infrastructure/config"
)

// pollInterval is how often Lock retries SET NX while the key is held.
const pollInterval = 50 * time.Millisecond

// ErrLockAcquire is returned when Redis rejects a lock operation.
var ErrLockAcquire = errors.New("redislock: failed to acquire lock")

// unlockScript deletes the key only if it still holds our token, so a lease
// that expired and was taken by another replica is never released by us.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// UnlockFunc releases a lease obtained from Locker.Lock.
type UnlockFunc func(ctx context.Context) error

// Locker hands out leases on string keys using Redis SET NX PX.
type Locker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// New creates a Locker over an existing client.
func New(client redis.UniversalClient, prefix string, ttl time.Duration) *Locker {
	return &Locker{client: client, prefix: prefix, ttl: ttl}
}

// Connect opens a Redis client from config and verifies it with PING.
func Connect(ctx context.Context, cfg config.RedisConfig) (*Locker, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return New(client, cfg.KeyPrefix, time.Duration(cfg.LockTTL)*time.Second), client, nil
}

// Lock blocks until the lease for key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %w", ErrLockAcquire, err)
		}
		if ok {
			return func(ctx context.Context) error {
				return unlockScript.Run(ctx, l.client, []string{lockKey}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
