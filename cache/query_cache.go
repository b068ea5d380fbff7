package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrNoFetcher is returned by Fetch when no fetcher is registered for a key
// that holds no value.
var ErrNoFetcher = errors.New("no fetcher registered")

var errSuperseded = errors.New("refresh cancelled")

// Options configures a QueryCache.
type Options struct {
	// RefreshTimeout bounds every background load. Zero disables the bound.
	RefreshTimeout time.Duration
	Logger         *log.Logger
}

// QueryCache is an in-memory Store. Values are loaded through fetchers
// registered per key prefix and refreshed in the background when invalidated.
type QueryCache struct {
	logger  *log.Logger
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	routes  []route
	closed  bool
	wg      sync.WaitGroup
}

type route struct {
	prefix Key
	fetch  Fetcher
}

type entry struct {
	key       Key
	value     any
	ok        bool
	stale     bool
	updatedAt time.Time
	refresh   *refresh
}

type refresh struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewQueryCache creates an empty cache.
func NewQueryCache(opts Options) *QueryCache {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	timeout := opts.RefreshTimeout
	if timeout < 0 {
		timeout = 0
	}
	return &QueryCache{
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Register binds fetch to every key under prefix. The longest matching
// prefix wins.
func (c *QueryCache) Register(prefix Key, fetch Fetcher) {
	if fetch == nil {
		panic("cache.Register: fetcher is nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes = append(c.routes, route{prefix: prefix.clone(), fetch: fetch})
}

func (c *QueryCache) Get(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key.ID()]
	if e == nil || !e.ok {
		return nil, false
	}
	return e.value, true
}

func (c *QueryCache) Set(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeLocked(c.entryLocked(key), value)
}

// Update runs fn while holding the cache lock; fn must not call back into c.
func (c *QueryCache) Update(key Key, fn func(current any, ok bool) (any, bool)) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var (
		prev any
		had  bool
	)
	e := c.entries[key.ID()]
	if e != nil && e.ok {
		prev, had = e.value, true
	}
	next, write := fn(prev, had)
	if write {
		c.writeLocked(c.entryLocked(key), next)
	}
	return prev, had
}

// Stale reports whether key was invalidated and has not been reloaded since.
func (c *QueryCache) Stale(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key.ID()]
	return e != nil && e.stale
}

// UpdatedAt returns when the value at key was last written.
func (c *QueryCache) UpdatedAt(key Key) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key.ID()]
	if e == nil || !e.ok {
		return time.Time{}, false
	}
	return e.updatedAt, true
}

// Remove drops the value at key and cancels its refresh.
func (c *QueryCache) Remove(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key.ID()]
	if e == nil {
		return
	}
	if e.refresh != nil {
		e.refresh.cancel()
		e.refresh = nil
	}
	delete(c.entries, key.ID())
}

// Fetch returns the value at key, loading it through the registered fetcher
// when it is missing or stale. Concurrent callers share one load. A load that
// is cancelled or replaced before the key holds a value is retried until ctx
// is done.
func (c *QueryCache) Fetch(ctx context.Context, key Key) (any, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.mu.Lock()
		e := c.entries[key.ID()]
		if e != nil && e.ok && !e.stale {
			v := e.value
			c.mu.Unlock()
			return v, nil
		}
		r := (*refresh)(nil)
		if e != nil {
			r = e.refresh
		}
		if r == nil {
			fetch := c.fetcherLocked(key)
			if fetch == nil || c.closed {
				defer c.mu.Unlock()
				if e != nil && e.ok {
					return e.value, nil
				}
				return nil, fmt.Errorf("%w: %s", ErrNoFetcher, key)
			}
			e = c.entryLocked(key)
			r = c.startRefreshLocked(e, fetch)
		}
		c.mu.Unlock()

		select {
		case <-r.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		c.mu.Lock()
		cur := c.entries[key.ID()]
		switch {
		case cur != nil && cur.ok && (r.err == nil || errors.Is(r.err, errSuperseded)):
			v := cur.value
			c.mu.Unlock()
			return v, nil
		case errors.Is(r.err, errSuperseded):
			c.mu.Unlock()
			continue
		case r.err != nil:
			c.mu.Unlock()
			return nil, r.err
		}
		c.mu.Unlock()
		return nil, fmt.Errorf("cache: %s was removed during load", key)
	}
}

// Invalidate marks every key under prefix stale. Keys with a registered
// fetcher are reloaded in the background; an older refresh still in flight is
// cancelled first.
func (c *QueryCache) Invalidate(prefix Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		e.stale = true
		if c.closed {
			continue
		}
		fetch := c.fetcherLocked(e.key)
		if fetch == nil {
			continue
		}
		if e.refresh != nil {
			e.refresh.cancel()
		}
		c.startRefreshLocked(e, fetch)
	}
}

// CancelRefresh cancels the refreshes of every key under prefix and waits
// until their fetchers return. Cancelled refreshes never write.
func (c *QueryCache) CancelRefresh(ctx context.Context, prefix Key) error {
	c.mu.Lock()
	var pending []chan struct{}
	for _, e := range c.entries {
		if e.refresh == nil || !e.key.HasPrefix(prefix) {
			continue
		}
		e.refresh.cancel()
		pending = append(pending, e.refresh.done)
		e.refresh = nil
	}
	c.mu.Unlock()

	for _, done := range pending {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Wait blocks until no refresh is in flight for key.
func (c *QueryCache) Wait(ctx context.Context, key Key) error {
	for {
		c.mu.Lock()
		var r *refresh
		if e := c.entries[key.ID()]; e != nil {
			r = e.refresh
		}
		c.mu.Unlock()
		if r == nil {
			return nil
		}
		select {
		case <-r.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close cancels all refreshes and waits for their goroutines to exit.
func (c *QueryCache) Close() {
	c.mu.Lock()
	c.closed = true
	for _, e := range c.entries {
		if e.refresh != nil {
			e.refresh.cancel()
			e.refresh = nil
		}
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *QueryCache) entryLocked(key Key) *entry {
	id := key.ID()
	e := c.entries[id]
	if e == nil {
		e = &entry{key: key.clone()}
		c.entries[id] = e
	}
	return e
}

func (c *QueryCache) writeLocked(e *entry, value any) {
	e.value = value
	e.ok = true
	e.stale = false
	e.updatedAt = c.now()
}

func (c *QueryCache) fetcherLocked(key Key) Fetcher {
	var (
		best   Fetcher
		bestLn = -1
	)
	for _, r := range c.routes {
		if key.HasPrefix(r.prefix) && len(r.prefix) > bestLn {
			best, bestLn = r.fetch, len(r.prefix)
		}
	}
	return best
}

func (c *QueryCache) startRefreshLocked(e *entry, fetch Fetcher) *refresh {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), c.timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	r := &refresh{cancel: cancel, done: make(chan struct{})}
	e.refresh = r
	c.wg.Add(1)
	go c.run(ctx, e.key, r, fetch)
	return r
}

func (c *QueryCache) run(ctx context.Context, key Key, r *refresh, fetch Fetcher) {
	defer c.wg.Done()
	defer close(r.done)
	defer r.cancel()

	start := time.Now()
	v, err := fetch(ctx, key)

	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key.ID()]
	if e == nil || e.refresh != r {
		r.err = errSuperseded
		c.logger.WithField("key", key.String()).Debug("cache refresh discarded")
		return
	}
	e.refresh = nil
	if err != nil {
		r.err = err
		c.logger.WithError(err).WithField("key", key.String()).Warn("cache refresh failed")
		return
	}
	c.writeLocked(e, v)
	c.logger.WithFields(log.Fields{
		"key":     key.String(),
		"load_ms": float64(time.Since(start)) / float64(time.Millisecond),
	}).Debug("cache refreshed")
}
