package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys that have already been handled
type IdempotencyStore interface {
	// MarkProcessed records key with a TTL.
	// Returns true if the key was newly marked, false if it was already present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if key has already been handled
	IsProcessed(ctx context.Context, key string) (bool, error)

	Close() error
}
