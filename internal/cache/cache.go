// Package cache provides the TTL-bounded read cache sitting in front of the
// record store. Values are serialized read views; a collection entry and its
// singleton entries may diverge in freshness within the TTL.
package cache

import (
	"context"
	"time"
)

// Collection keys. Singleton keys derive from the entity id.
const (
	KeyDVDs      = "dvds"
	KeyDirectors = "directors"
)

// DVDKey returns the singleton cache key for one dvd view.
func DVDKey(id string) string {
	return "dvd:" + id
}

// DirectorKey returns the singleton cache key for one director view.
func DirectorKey(id string) string {
	return "director:" + id
}

// Cache is the read-view cache surface. Get reports a miss with ok=false and
// a nil error; errors mean the cache client itself failed, which callers
// treat as a soft failure and fall through to the record store.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}
