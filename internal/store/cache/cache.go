package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// CacheService is the gateway's cache contract, used for upstream model
// listings and other data that is expensive to refetch.
type CacheService interface {
	// Get unmarshals the cached value into dest, or returns ErrMiss.
	Get(ctx context.Context, key string, dest interface{}) error

	// Set marshals and stores a value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error
}
