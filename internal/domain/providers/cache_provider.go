package providers

import (
	"context"
	"time"
)

// CacheProvider is a byte-oriented cache used for search responses and
// suggestion lookups
type CacheProvider interface {
	// Get retrieves a value, returning a NotFound error on miss
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with a TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value
	Delete(ctx context.Context, key string) error
}
