package shared

import (
	"context"
	"time"
)

// Locker serializes work on a key across every instance sharing the backend
type Locker interface {
	// Acquire waits until key is held or the locker's wait budget runs out,
	// in which case it returns an error matching ErrLockUnavailable.
	// The lock expires on its own after ttl.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock is a held lock
type Lock interface {
	// Release frees the lock if this holder still owns it
	Release(ctx context.Context) error
}
