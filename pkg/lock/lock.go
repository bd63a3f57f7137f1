// Package lock guards the rotation cycle so that only one owner mints and
// persists a secret at a time.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrHeld is returned by Acquire when another owner holds the lock.
var ErrHeld = errors.New("lock is held by another owner")

// Lease is a held lock.
type Lease interface {
	// Release gives the lock up. Releasing an expired lease is not an error.
	Release(ctx context.Context) error
}

// Locker hands out leases. Acquire never blocks waiting for another owner;
// it fails with ErrHeld instead.
type Locker interface {
	Acquire(ctx context.Context) (Lease, error)
}

// Local is an in-process Locker.
type Local struct {
	mu sync.Mutex
}

// Ensure Local implements Locker interface.
var _ Locker = (*Local)(nil)

// NewLocal creates a Local locker.
func NewLocal() *Local {
	return &Local{}
}

// Acquire takes the lock if it is free.
func (l *Local) Acquire(ctx context.Context) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !l.mu.TryLock() {
		return nil, ErrHeld
	}
	return &localLease{l: l}, nil
}

type localLease struct {
	l    *Local
	once sync.Once
}

func (ll *localLease) Release(context.Context) error {
	ll.once.Do(ll.l.mu.Unlock)
	return nil
}
