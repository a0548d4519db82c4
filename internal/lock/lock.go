// Package lock serializes work on a single key, such as completions of one
// habit arriving from two devices at once.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrBusy = errors.New("lock is held by another caller")

const DefaultWait = 3 * time.Second

type Locker interface {
	// Acquire blocks up to the locker's wait budget. The returned release
	// func is safe to call more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// Local is an in-process keyed mutex for single-instance deployments and tests.
type Local struct {
	mu   sync.Mutex
	held map[string]chan struct{}
	wait time.Duration
}

func NewLocal(wait time.Duration) *Local {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Local{held: make(map[string]chan struct{}), wait: wait}
}

func (l *Local) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	timer := time.NewTimer(l.wait)
	defer timer.Stop()
	for {
		l.mu.Lock()
		done, busy := l.held[key]
		if !busy {
			done = make(chan struct{})
			l.held[key] = done
			l.mu.Unlock()
			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, key)
					close(done)
					l.mu.Unlock()
				})
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-done:
		case <-timer.C:
			return nil, ErrBusy
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
