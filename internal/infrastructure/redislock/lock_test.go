package redislock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onap/policy-clamp-acm/internal/infrastructure/config"
)

func newTestLocker(t *testing.T, ttl time.Duration) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, "acm:", ttl), mr
}

func TestLocker_LockAndUnlock(t *testing.T) {
	locker, mr := newTestLocker(t, 10*time.Second)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "ac-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("acm:lock:ac-1"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("acm:lock:ac-1"))
}

func TestLocker_BlocksUntilReleased(t *testing.T) {
	locker, _ := newTestLocker(t, 10*time.Second)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "ac-1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		second, err := locker.Lock(ctx, "ac-1")
		if err == nil {
			close(acquired)
			_ = second(ctx)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock succeeded while the first lease was held")
	case <-time.After(150 * time.Millisecond):
	}

	require.NoError(t, unlock(ctx))

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second Lock did not acquire after release")
	}
}

func TestLocker_ContextCancelled(t *testing.T) {
	locker, _ := newTestLocker(t, 10*time.Second)

	unlock, err := locker.Lock(context.Background(), "ac-1")
	require.NoError(t, err)
	defer unlock(context.Background()) //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, "ac-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocker_DifferentKeysDoNotContend(t *testing.T) {
	locker, _ := newTestLocker(t, 10*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	a, err := locker.Lock(ctx, "ac-1")
	require.NoError(t, err)
	b, err := locker.Lock(ctx, "ac-2")
	require.NoError(t, err)

	assert.NoError(t, a(ctx))
	assert.NoError(t, b(ctx))
}

func TestLocker_ExpiredLeaseIsNotReleasedByOldHolder(t *testing.T) {
	locker, mr := newTestLocker(t, time.Second)
	ctx := context.Background()

	staleUnlock, err := locker.Lock(ctx, "ac-1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists("acm:lock:ac-1"))

	freshUnlock, err := locker.Lock(ctx, "ac-1")
	require.NoError(t, err)

	require.NoError(t, staleUnlock(ctx))
	assert.True(t, mr.Exists("acm:lock:ac-1"), "stale holder must not delete the new lease")

	require.NoError(t, freshUnlock(ctx))
}

func TestLocker_MutualExclusion(t *testing.T) {
	locker, _ := newTestLocker(t, 10*time.Second)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "shared")
			if err != nil {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			_ = unlock(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInside))
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	locker, client, err := Connect(context.Background(), config.RedisConfig{
		Addr:      mr.Addr(),
		KeyPrefix: "acm:",
		LockTTL:   5,
	})
	require.NoError(t, err)
	defer client.Close()

	unlock, err := locker.Lock(context.Background(), "ac-9")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, mr.TTL("acm:lock:ac-9"))
	require.NoError(t, unlock(context.Background()))
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, _, err := Connect(ctx, config.RedisConfig{Addr: "127.0.0.1:1", LockTTL: 5})
	assert.Error(t, err)
}
