// Package optimistic applies mutations to the local cache before the server
// confirms them, then commits or rolls back on the remote outcome.
//
// A mutation runs these steps in order:
//
//  1. cancel in-flight refreshes of its key so stale loads cannot overwrite the projection
//  2. snapshot the cached value
//  3. if a value exists, write Update(snapshot, vars) to the cache
//  4. call the remote operation
//  5. on failure restore the snapshot and call OnError
//  6. on success call OnSuccess
//  7. invalidate the key so the cache converges to server state
//
// Steps 2 and 3 happen in one atomic store update. Invocations of mutations
// sharing a key are not coordinated unless Config.Serialize is set: each one
// snapshots whatever is stored when it starts and the last write wins.
package optimistic

import (
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/AndreEgeli/theAtlasBoard/cache"
)

// ErrValueType is returned when the cached value is not of the type a
// mutation projects.
var ErrValueType = errors.New("cached value has unexpected type")

// Engine runs mutations against one store.
type Engine struct {
	store  cache.Store
	logger *log.Logger
	locks  *keyLocks
}

// NewEngine creates an engine over store. A nil logger uses the logrus
// standard logger.
func NewEngine(store cache.Store, logger *log.Logger) *Engine {
	if store == nil {
		panic("optimistic.NewEngine: store is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Engine{
		store:  store,
		logger: logger,
		locks:  newKeyLocks(),
	}
}

// Store returns the store the engine writes to.
func (e *Engine) Store() cache.Store {
	return e.store
}
