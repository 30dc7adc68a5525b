package coordination

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
)

const shardCount = 64

// Unlock releases a lock obtained from a Locker. It must be called exactly
// once.
type Unlock func()

// Locker serialises read-validate-write sections per key (an instance id or
// composition id). Different keys never block each other.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

type shard struct {
	mu   sync.Mutex
	keys map[string]*keyLock
}

// LocalLocker is an in-process per-key mutex. Keys are spread over shards so
// bookkeeping for unrelated keys does not contend; each key gets its own
// semaphore, so hash collisions never serialise two keys.
type LocalLocker struct {
	shards [shardCount]shard
}

// NewLocalLocker creates an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	l := &LocalLocker{}
	for i := range l.shards {
		l.shards[i].keys = make(map[string]*keyLock)
	}
	return l
}

func (l *LocalLocker) shard(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key)) //nolint:errcheck // hash.Hash never returns an error
	return &l.shards[h.Sum32()%shardCount]
}

// Lock blocks until key is free or ctx is done.
func (l *LocalLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	s := l.shard(key)

	s.mu.Lock()
	kl, ok := s.keys[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		s.keys[key] = kl
	}
	kl.refs++
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(s.keys, key)
		}
		s.mu.Unlock()
	}

	select {
	case kl.sem <- struct{}{}:
	case <-ctx.Done():
		release()
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.sem
			release()
		})
	}, nil
}

// held reports how many keys currently have holders or waiters.
func (l *LocalLocker) held() int {
	n := 0
	for i := range l.shards {
		l.shards[i].mu.Lock()
		n += len(l.shards[i].keys)
		l.shards[i].mu.Unlock()
	}
	return n
}

// Chain acquires every locker in order and releases them in reverse. It is
// used to hold the local lock and a distributed lease together.
type Chain []Locker

// Lock acquires all lockers for key. On failure, locks already taken are
// released.
func (c Chain) Lock(ctx context.Context, key string) (Unlock, error) {
	unlocks := make([]Unlock, 0, len(c))
	for _, l := range c {
		u, err := l.Lock(ctx, key)
		if err != nil {
			releaseAll(unlocks)
			return nil, err
		}
		unlocks = append(unlocks, u)
	}
	return func() { releaseAll(unlocks) }, nil
}

// LockAll acquires several keys in sorted order so that two callers locking
// overlapping sets cannot deadlock. Duplicate keys are locked once.
func LockAll(ctx context.Context, l Locker, keys []string) (Unlock, error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	unlocks := make([]Unlock, 0, len(sorted))
	for i, key := range sorted {
		if i > 0 && sorted[i-1] == key {
			continue
		}
		u, err := l.Lock(ctx, key)
		if err != nil {
			releaseAll(unlocks)
			return nil, err
		}
		unlocks = append(unlocks, u)
	}
	return func() { releaseAll(unlocks) }, nil
}

func releaseAll(unlocks []Unlock) {
	for i := len(unlocks) - 1; i >= 0; i-- {
		unlocks[i]()
	}
}

// Lock keys for entities other than compositions, which are keyed by their
// bare instance id.

// DefinitionKey returns the lock key of a composition definition.
func DefinitionKey(compositionID string) string {
	return "definition/" + compositionID
}

// ParticipantKey returns the lock key of a participant registration.
func ParticipantKey(participantID string) string {
	return "participant/" + participantID
}
