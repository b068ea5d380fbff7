package api

import "sync"

// pool shares one mutation set per id among the requests holding it. A set
// is dropped when its last holder releases it, so the pool only grows with
// the ids that are in use.
type pool[S any] struct {
	build func(id string) S

	mu   sync.Mutex
	sets map[string]*pooled[S]
}

type pooled[S any] struct {
	set  S
	refs int
}

func newPool[S any](build func(id string) S) *pool[S] {
	return &pool[S]{build: build, sets: make(map[string]*pooled[S])}
}

// acquire returns the set for id and a release func that must be called
// once the caller is done with it.
func (p *pool[S]) acquire(id string) (S, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ps, ok := p.sets[id]
	if !ok {
		ps = &pooled[S]{set: p.build(id)}
		p.sets[id] = ps
	}
	ps.refs++

	var once sync.Once
	return ps.set, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if ps.refs--; ps.refs == 0 && p.sets[id] == ps {
				delete(p.sets, id)
			}
		})
	}
}

func (p *pool[S]) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sets)
}
