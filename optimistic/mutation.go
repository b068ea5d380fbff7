package optimistic

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/AndreEgeli/theAtlasBoard/cache"
)

// Config describes one optimistic mutation over values of type T cached at
// Key, taking inputs of type V and producing remote results of type R.
type Config[T, V, R any] struct {
	// Name labels logs and spans.
	Name string
	Key  cache.Key
	// Mutate performs the authoritative write.
	Mutate func(ctx context.Context, vars V) (R, error)
	// Update projects the cached value. It must return a new value and leave
	// old untouched: old is the rollback snapshot and may still be read
	// elsewhere. A nil Update skips the projection.
	Update    func(old T, vars V) T
	OnSuccess func(result R, vars V)
	OnError   func(err error, vars V)
	// DisableRollback keeps the projection in the cache when Mutate fails.
	DisableRollback bool
	// DisableInvalidation skips the refresh after the mutation settles.
	DisableInvalidation bool
	// AlsoInvalidate lists further key prefixes refreshed after settling.
	AlsoInvalidate []cache.Key
	// Serialize makes invocations of mutations that set it and share Key run
	// one at a time.
	Serialize bool
	// OnPending observes the in-flight flag when it changes.
	OnPending func(inFlight bool)
}

// Mutation is a reusable handle for one Config.
type Mutation[T, V, R any] struct {
	engine  *Engine
	cfg     Config[T, V, R]
	pending atomic.Int32

	// notifyMu orders OnPending calls; reported is the last flag sent.
	notifyMu sync.Mutex
	reported bool
}

// New binds cfg to engine.
func New[T, V, R any](engine *Engine, cfg Config[T, V, R]) *Mutation[T, V, R] {
	if engine == nil {
		panic("optimistic.New: engine is nil")
	}
	if len(cfg.Key) == 0 {
		panic("optimistic.New: key is empty")
	}
	if cfg.Mutate == nil {
		panic("optimistic.New: mutate is nil")
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Key.String()
	}
	cfg.Key = append(cache.Key(nil), cfg.Key...)
	return &Mutation[T, V, R]{engine: engine, cfg: cfg}
}

// Key returns the cache key the mutation projects into.
func (m *Mutation[T, V, R]) Key() cache.Key {
	return append(cache.Key(nil), m.cfg.Key...)
}

// InFlight reports whether any invocation has not settled yet.
func (m *Mutation[T, V, R]) InFlight() bool {
	return m.pending.Load() > 0
}

// Pending returns the number of unsettled invocations.
func (m *Mutation[T, V, R]) Pending() int {
	return int(m.pending.Load())
}

// Invoke runs the mutation. It returns the remote result, or the remote
// error once the snapshot has been restored and OnError has run. The refresh
// started on settling is not awaited.
func (m *Mutation[T, V, R]) Invoke(ctx context.Context, vars V) (result R, err error) {
	m.begin()
	defer m.end()

	ctx, obs := m.engine.observe(ctx, m.cfg.Name, m.cfg.Key)
	defer func() { obs.Finish(err) }()

	if m.cfg.Serialize {
		unlock, lerr := m.engine.locks.acquire(ctx, m.cfg.Key)
		if lerr != nil {
			return result, lerr
		}
		defer unlock()
	}

	store := m.engine.store
	if err = store.CancelRefresh(ctx, m.cfg.Key); err != nil {
		return result, err
	}

	snapshot, applied, err := m.apply(vars)
	if err != nil {
		return result, err
	}
	obs.SetApplied(applied)

	res, err := m.cfg.Mutate(ctx, vars)
	if err != nil {
		if applied && !m.cfg.DisableRollback {
			store.Set(m.cfg.Key, snapshot)
			obs.SetRolledBack(true)
		}
		if m.cfg.OnError != nil {
			m.cfg.OnError(err, vars)
		}
		m.settle()
		return result, err
	}

	if m.cfg.OnSuccess != nil {
		m.cfg.OnSuccess(res, vars)
	}
	m.settle()
	return res, nil
}

// apply snapshots the cached value and writes the projection in one store
// update. Nothing is written on a cache miss.
func (m *Mutation[T, V, R]) apply(vars V) (snapshot any, applied bool, err error) {
	if m.cfg.Update == nil {
		return nil, false, nil
	}
	snapshot, ok := m.engine.store.Update(m.cfg.Key, func(current any, ok bool) (any, bool) {
		if !ok {
			return nil, false
		}
		old, isT := current.(T)
		if !isT {
			var want T
			err = fmt.Errorf("%w: %s holds %T, want %T", ErrValueType, m.cfg.Key, current, want)
			return nil, false
		}
		return m.cfg.Update(old, vars), true
	})
	if err != nil {
		return nil, false, err
	}
	return snapshot, ok, nil
}

func (m *Mutation[T, V, R]) settle() {
	if m.cfg.DisableInvalidation {
		return
	}
	store := m.engine.store
	store.Invalidate(m.cfg.Key)
	for _, k := range m.cfg.AlsoInvalidate {
		store.Invalidate(k)
	}
}

func (m *Mutation[T, V, R]) begin() {
	m.pending.Add(1)
	m.report()
}

func (m *Mutation[T, V, R]) end() {
	m.pending.Add(-1)
	m.report()
}

// report sends the in-flight flag when it differs from the last one sent.
// The flag is read under notifyMu, so a late caller never reports a state
// that a newer invocation already changed.
func (m *Mutation[T, V, R]) report() {
	if m.cfg.OnPending == nil {
		return
	}
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	inFlight := m.pending.Load() > 0
	if inFlight == m.reported {
		return
	}
	m.reported = inFlight
	m.cfg.OnPending(inFlight)
}
