package coordination

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onap/policy-clamp-acm/internal/infrastructure/redislock"
)

// ─── LocalLocker ───────────────────────────────────────────────────

func TestLocalLocker_SerialisesSameKey(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "inst-1")
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
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Zero(t, l.held(), "bookkeeping is released")
}

func TestLocalLocker_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocalLocker()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	unlockA, err := l.Lock(ctx, "inst-a")
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := l.Lock(ctx, "inst-b")
	require.NoError(t, err)
	unlockB()
}

func TestLocalLocker_ContextCancelled(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "inst-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "inst-1")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	unlock()
	assert.Zero(t, l.held())
}

func TestLocalLocker_UnlockTwiceIsSafe(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "inst-1")
	require.NoError(t, err)
	unlock()
	unlock()

	again, err := l.Lock(context.Background(), "inst-1")
	require.NoError(t, err)
	again()
}

// ─── Chain & LockAll ───────────────────────────────────────────────

type recordingLocker struct {
	name   string
	fail   bool
	mu     *sync.Mutex
	events *[]string
}

func (r recordingLocker) Lock(_ context.Context, key string) (Unlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, errors.New("unavailable")
	}
	*r.events = append(*r.events, "lock "+r.name+" "+key)
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		*r.events = append(*r.events, "unlock "+r.name+" "+key)
	}, nil
}

func TestChain_ReleasesInReverse(t *testing.T) {
	var mu sync.Mutex
	var events []string
	chain := Chain{
		recordingLocker{name: "local", mu: &mu, events: &events},
		recordingLocker{name: "redis", mu: &mu, events: &events},
	}

	unlock, err := chain.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock()

	assert.Equal(t, []string{"lock local k", "lock redis k", "unlock redis k", "unlock local k"}, events)
}

func TestChain_FailureReleasesAcquired(t *testing.T) {
	var mu sync.Mutex
	var events []string
	chain := Chain{
		recordingLocker{name: "local", mu: &mu, events: &events},
		recordingLocker{name: "redis", fail: true, mu: &mu, events: &events},
	}

	_, err := chain.Lock(context.Background(), "k")
	require.Error(t, err)
	assert.Equal(t, []string{"lock local k", "unlock local k"}, events)
}

func TestLockAll_SortsAndDedupes(t *testing.T) {
	var mu sync.Mutex
	var events []string
	l := recordingLocker{name: "l", mu: &mu, events: &events}

	unlock, err := LockAll(context.Background(), l, []string{"c", "a", "c", "b"})
	require.NoError(t, err)
	unlock()

	assert.Equal(t, []string{
		"lock l a", "lock l b", "lock l c",
		"unlock l c", "unlock l b", "unlock l a",
	}, events)
}

// ─── RedisLocker ───────────────────────────────────────────────────

func TestRedisLocker_ChainedWithLocal(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	locker := Chain{
		NewLocalLocker(),
		NewRedisLocker(redislock.New(client, "acm:", 10*time.Second), nil),
	}

	unlock, err := locker.Lock(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("acm:lock:inst-1"))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	other := NewRedisLocker(redislock.New(client, "acm:", 10*time.Second), nil)
	_, err = other.Lock(ctx, "inst-1")
	assert.Error(t, err, "another replica cannot take a held lease")

	unlock()
	assert.False(t, mr.Exists("acm:lock:inst-1"))
}
