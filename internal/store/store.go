package store

import "context"

// Store hands out namespaced buckets over one backing keyspace.
type Store interface {
	Namespace(name string) KV
}

// KV is a namespaced key-value bucket. The game keeps four of these:
// cumulative scores, game config overrides (running flag, allow/deny lists),
// the blocked-member set, and round stats.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Increment atomically adds delta to an integer-valued key, creating it
	// at delta if absent, and returns the new value.
	Increment(ctx context.Context, key string, delta int64) (int64, error)
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	ToMap(ctx context.Context) (map[string]string, error)
}
