// Package cache holds the small amount of shared mutable state the draw
// pipeline publishes: the period currently accepting wagers. Redis backs it
// in multi-instance deployments; a process-local map serves single nodes and
// tests.
package cache

import (
	"context"
	"time"
)

// Store is a byte-oriented key/value store with optional expiry.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
