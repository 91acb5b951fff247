package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erp/inventory/internal/domain/shared"
	"github.com/google/uuid"
)

// InMemoryLocker implements shared.Locker inside one process. Used when Redis
// is disabled and in tests.
type InMemoryLocker struct {
	mu            sync.Mutex
	held          map[string]heldLock
	wait          time.Duration
	retryInterval time.Duration
}

type heldLock struct {
	token     string
	expiresAt time.Time
}

// NewInMemoryLocker creates a locker that waits up to wait for a busy key
func NewInMemoryLocker(wait time.Duration) *InMemoryLocker {
	return &InMemoryLocker{
		held:          make(map[string]heldLock),
		wait:          wait,
		retryInterval: 5 * time.Millisecond,
	}
}

// Acquire implements shared.Locker
func (l *InMemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (shared.Lock, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		if l.tryAcquire(key, token, ttl) {
			return &inMemoryLock{locker: l, key: key, token: token}, nil
		}
		if !time.Now().Before(deadline) {
			return nil, shared.NewDomainError(shared.ErrLockUnavailable.Code,
				fmt.Sprintf("lock %s is held elsewhere", key))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
}

func (l *InMemoryLocker) tryAcquire(key, token string, ttl time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if h, ok := l.held[key]; ok && now.Before(h.expiresAt) {
		return false
	}
	l.held[key] = heldLock{token: token, expiresAt: now.Add(ttl)}
	return true
}

func (l *InMemoryLocker) release(key, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.held[key]; ok && h.token == token {
		delete(l.held, key)
	}
}

type inMemoryLock struct {
	locker *InMemoryLocker
	key    string
	token  string
}

func (l *inMemoryLock) Release(context.Context) error {
	l.locker.release(l.key, l.token)
	return nil
}

var _ shared.Locker = (*InMemoryLocker)(nil)
