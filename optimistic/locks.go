package optimistic

import (
	"context"
	"sync"

	"github.com/AndreEgeli/theAtlasBoard/cache"
)

// keyLocks hands out one lock per cache key. Locks are dropped once no
// invocation holds or waits for them.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*keyLock)}
}

func (l *keyLocks) acquire(ctx context.Context, key cache.Key) (func(), error) {
	id := key.ID()
	l.mu.Lock()
	kl := l.locks[id]
	if kl == nil {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		l.locks[id] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(id, kl)
		return nil, ctx.Err()
	}
	return func() {
		<-kl.sem
		l.release(id, kl)
	}, nil
}

func (l *keyLocks) release(id string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, id)
	}
}
