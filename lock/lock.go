// Package lock provides single-flight locks guarding the browser session:
// an in-process one and a Redis-backed one shared between processes.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLocked is returned by TryLock when another holder owns the lock.
var ErrLocked = errors.New("lock: already held")

// Locker hands out at most one lease at a time.
type Locker interface {
	// TryLock acquires the lock without waiting. It returns ErrLocked when
	// the lock is held. release must be called exactly once.
	TryLock(ctx context.Context) (release func(), err error)
}

// Wait polls l every interval until the lock is acquired or ctx is done.
func Wait(ctx context.Context, l Locker, every time.Duration) (func(), error) {
	if every <= 0 {
		every = 100 * time.Millisecond
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		release, err := l.TryLock(ctx)
		if err == nil {
			return release, nil
		}
		if !errors.Is(err, ErrLocked) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Local is an in-process Locker.
type Local struct {
	sem chan struct{}
}

// NewLocal creates an unlocked Local.
func NewLocal() *Local {
	return &Local{sem: make(chan struct{}, 1)}
}

func (l *Local) TryLock(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case l.sem <- struct{}{}:
		return sync.OnceFunc(func() { <-l.sem }), nil
	default:
		return nil, ErrLocked
	}
}
