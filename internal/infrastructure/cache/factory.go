package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/inventory/internal/domain/shared"
	"github.com/erp/inventory/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Coordination bundles the cross-instance primitives the service needs:
// the per-stock lock and the alert dedup store. Both come from Redis when it
// is enabled and from process memory otherwise.
type Coordination struct {
	Locker      shared.Locker
	Idempotency shared.IdempotencyStore
	client      redis.UniversalClient
}

// NewRedisClient creates a client and verifies the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}
	return client, nil
}

// NewCoordination builds the primitives from configuration.
// When Redis is enabled it is required; there is no silent fallback.
func NewCoordination(ctx context.Context, redisCfg config.RedisConfig, lockWait time.Duration, logger *zap.Logger) (*Coordination, error) {
	if !redisCfg.Enabled {
		logger.Warn("Redis disabled, using in-process locks and alert dedup; run a single instance only")
		return &Coordination{
			Locker:      NewInMemoryLocker(lockWait),
			Idempotency: NewInMemoryIdempotencyStore(0),
		}, nil
	}

	client, err := NewRedisClient(ctx, redisCfg)
	if err != nil {
		return nil, err
	}
	logger.Info("using Redis for stock locks and alert dedup", zap.String("addr", redisCfg.Addr()))
	return NewCoordinationWithClient(client, lockWait), nil
}

// NewCoordinationWithClient builds Redis-backed primitives on an existing client
func NewCoordinationWithClient(client redis.UniversalClient, lockWait time.Duration) *Coordination {
	return &Coordination{
		Locker:      NewRedisLocker(client, lockWait),
		Idempotency: NewRedisIdempotencyStore(client, ""),
		client:      client,
	}
}

// Ping reports whether the backing store is reachable
func (c *Coordination) Ping(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close releases the idempotency store and the Redis client
func (c *Coordination) Close() error {
	if err := c.Idempotency.Close(); err != nil {
		return err
	}
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
