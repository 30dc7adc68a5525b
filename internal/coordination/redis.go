package coordination

import (
	"context"
	"time"

	"github.com/onap/policy-clamp-acm/internal/infrastructure/redislock"
)

// releaseTimeout bounds the Lua check-and-delete on unlock.
const releaseTimeout = 2 * time.Second

// Logger is the subset of the runtime logger used here.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// RedisLocker adapts a redislock.Locker lease to the Locker interface so
// runtime replicas sharing one database serialise on the same keys.
type RedisLocker struct {
	leases *redislock.Locker
	logger Logger
}

// NewRedisLocker wraps leases. A nil logger discards release errors.
func NewRedisLocker(leases *redislock.Locker, logger Logger) *RedisLocker {
	if logger == nil {
		logger = noopLogger{}
	}
	return &RedisLocker{leases: leases, logger: logger}
}

// Lock acquires the lease for key. Release failures are logged; the lease
// expires on its own TTL.
func (r *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	unlock, err := r.leases.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := unlock(ctx); err != nil {
			r.logger.Warn("releasing redis lease failed", "key", key, "error", err)
		}
	}, nil
}
