// Package cache stores pipeline outputs keyed by the content they were
// derived from.
//
// Generation and export are deterministic, so a rendered notebook or an
// exported script can be reused whenever the same input arrives with the same
// options. Three backends implement [Cache]:
//
//   - [MemoryCache] for a single server process
//   - [FileCache] for the CLI, under the user cache directory
//   - [RedisCache] for servers sharing one cache
//
// [NullCache] disables caching. Keys come from a [Keyer]; [DefaultKeyer]
// hashes the input together with every option that affects the output.
package cache

import (
	"context"
	"time"
)

// Default TTLs per artifact.
const (
	NotebookTTL = 7 * 24 * time.Hour
	ScriptTTL   = 7 * 24 * time.Hour
	GraphTTL    = 24 * time.Hour
)

// Cache is a byte store with per-entry expiry.
type Cache interface {
	// Get returns the value stored under key. A missing or expired entry is
	// reported as ok == false with a nil error.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)

	// Set stores data under key. A ttl <= 0 never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error
	Close() error
}

// NullCache never stores anything.
type NullCache struct{}

// NewNullCache creates a null cache.
func NewNullCache() Cache {
	return &NullCache{}
}

// Get always misses.
func (c *NullCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

// Set does nothing.
func (c *NullCache) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

// Delete does nothing.
func (c *NullCache) Delete(context.Context, string) error {
	return nil
}

// Close does nothing.
func (c *NullCache) Close() error {
	return nil
}

var _ Cache = (*NullCache)(nil)
