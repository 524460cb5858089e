// Package lock provides mutual exclusion for expiry passes, within one process
// and across processes sharing a database.
package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when the lock is held elsewhere.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker acquires a lock without waiting. The returned release function must
// be called exactly once.
type Locker interface {
	TryLock(ctx context.Context) (release func(), err error)
}

// Local is an in-process single-flight lock. Unlike a Locker it waits for
// the holder.
type Local struct {
	sem chan struct{}
}

// NewLocal returns an unlocked Local.
func NewLocal() *Local {
	return &Local{sem: make(chan struct{}, 1)}
}

// Lock waits until the lock is free or ctx is done.
func (l *Local) Lock(ctx context.Context) (func(), error) {
	select {
	case l.sem <- struct{}{}:
		return l.release, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Local) release() {
	<-l.sem
}
