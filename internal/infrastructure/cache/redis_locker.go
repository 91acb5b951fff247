package cache

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/erp/inventory/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLockPrefix    = "inventory:lock:"
	defaultRetryInterval = 25 * time.Millisecond
)

//go:embed release_lock.lua
var releaseLockSource string

var releaseLockScript = redis.NewScript(releaseLockSource)

// RedisLocker implements shared.Locker with SET NX PX and a token-checked
// release, so an instance can never free a lock another instance took over.
type RedisLocker struct {
	client        redis.UniversalClient
	keyPrefix     string
	wait          time.Duration
	retryInterval time.Duration
}

// NewRedisLocker creates a locker that waits up to wait for a busy key
func NewRedisLocker(client redis.UniversalClient, wait time.Duration) *RedisLocker {
	return &RedisLocker{
		client:        client,
		keyPrefix:     defaultLockPrefix,
		wait:          wait,
		retryInterval: defaultRetryInterval,
	}
}

// Acquire implements shared.Locker
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (shared.Lock, error) {
	redisKey := l.keyPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return &redisLock{client: l.client, key: redisKey, token: token}, nil
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

type redisLock struct {
	client redis.UniversalClient
	key    string
	token  string
}

// Release deletes the key if it still carries this lock's token. A lock
// that already expired is not an error.
func (l *redisLock) Release(ctx context.Context) error {
	if err := releaseLockScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

var _ shared.Locker = (*RedisLocker)(nil)
