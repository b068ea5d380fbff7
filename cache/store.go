// Package cache holds the client-side view of server state, addressed by
// structured keys, with background refresh from the authoritative source.
package cache

import "context"

// Store is the keyed data store consumed by optimistic mutations.
type Store interface {
	// Get returns the value at key and whether one exists.
	Get(key Key) (any, bool)
	// Set replaces the value at key.
	Set(key Key, value any)
	// Update runs fn against the value at key and stores its result when write
	// is true. Nothing else can write the key while fn runs. It returns the
	// value that was present before fn ran.
	Update(key Key, fn func(current any, ok bool) (next any, write bool)) (previous any, ok bool)
	// CancelRefresh cancels background refreshes of every key under the
	// prefix and waits for them to stop.
	CancelRefresh(ctx context.Context, prefix Key) error
	// Invalidate marks every key under the prefix stale and refreshes it in
	// the background.
	Invalidate(prefix Key)
}

// Fetcher loads the authoritative value for key.
type Fetcher func(ctx context.Context, key Key) (any, error)
