package resources

import (
	"context"
	"fmt"

	"github.com/AndreEgeli/theAtlasBoard/cache"
)

// Registrar binds fetchers to key prefixes.
type Registrar interface {
	Register(prefix cache.Key, fetch cache.Fetcher)
}

// Loader reads a key through the cache.
type Loader interface {
	Fetch(ctx context.Context, key cache.Key) (any, error)
}

// RegisterQueries binds a fetcher for every key family to r.
func RegisterQueries(reg Registrar, r Reader) {
	reg.Register(BoardsKey(), func(ctx context.Context, _ cache.Key) (any, error) {
		return r.ListBoards(ctx)
	})
	reg.Register(cache.Key{boardPrefix}, func(ctx context.Context, key cache.Key) (any, error) {
		id, err := keyArg(key)
		if err != nil {
			return nil, err
		}
		return r.GetBoard(ctx, id)
	})
	reg.Register(cache.Key{tasksPrefix}, func(ctx context.Context, key cache.Key) (any, error) {
		id, err := keyArg(key)
		if err != nil {
			return nil, err
		}
		return r.ListTasks(ctx, id)
	})
	reg.Register(cache.Key{todosPrefix}, func(ctx context.Context, key cache.Key) (any, error) {
		id, err := keyArg(key)
		if err != nil {
			return nil, err
		}
		return r.ListTodos(ctx, id)
	})
	reg.Register(cache.Key{tagsPrefix}, func(ctx context.Context, key cache.Key) (any, error) {
		id, err := keyArg(key)
		if err != nil {
			return nil, err
		}
		return r.ListTags(ctx, id)
	})
	reg.Register(UsersKey(), func(ctx context.Context, _ cache.Key) (any, error) {
		return r.ListUsers(ctx)
	})
}

func keyArg(key cache.Key) (string, error) {
	if len(key) != 2 || key[1] == "" {
		return "", fmt.Errorf("key %s: want family and id", key)
	}
	return key[1], nil
}

// Load reads key through l and asserts the cached type.
func Load[T any](ctx context.Context, l Loader, key cache.Key) (T, error) {
	var zero T
	v, err := l.Fetch(ctx, key)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("key %s holds %T, want %T", key, v, zero)
	}
	return out, nil
}
