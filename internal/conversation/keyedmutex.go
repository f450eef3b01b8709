package conversation

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// keyedMutex serialises work per key while letting different keys proceed
// concurrently. Entries are dropped once no goroutine holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refSem
}

type refSem struct {
	sem  *semaphore.Weighted
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refSem)}
}

// Lock acquires the lock for key and returns its release function. It gives
// up with ctx.Err() when ctx ends first.
func (k *keyedMutex) Lock(ctx context.Context, key string) (unlock func(), err error) {
	k.mu.Lock()
	s, ok := k.locks[key]
	if !ok {
		s = &refSem{sem: semaphore.NewWeighted(1)}
		k.locks[key] = s
	}
	s.refs++
	k.mu.Unlock()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		k.release(key, s)
		return nil, err
	}
	return func() {
		s.sem.Release(1)
		k.release(key, s)
	}, nil
}

func (k *keyedMutex) release(key string, s *refSem) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(k.locks, key)
	}
}

// Len returns the number of keys currently held or awaited.
func (k *keyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
