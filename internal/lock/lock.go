// internal/lock/lock.go
package lock

import (
	"context"
	"sync"
	"time"

	"remittance-service/internal/domain"
)

// Locker serializes work per key (one wallet address per key). Acquire
// blocks until the key is free, ctx is done or the wait budget runs out.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// LocalLocker is an in-process keyed mutex
type LocalLocker struct {
	mu      sync.Mutex
	slots   map[string]*slot
	maxWait time.Duration
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker(maxWait time.Duration) *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot), maxWait: maxWait}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	if l.maxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.maxWait)
		defer cancel()
	}

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.unref(key, s)
			})
		}, nil
	case <-ctx.Done():
		l.unref(key, s)
		return nil, domain.ErrLockNotAcquired
	}
}

func (l *LocalLocker) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
