package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/AndreEgeli/theAtlasBoard/domain"
	"github.com/AndreEgeli/theAtlasBoard/resources"
)

var (
	_ resources.Backend = (*Storage)(nil)
	_ resources.Backend = (*Cache)(nil)
)

// Cache wraps a backend with Redis-backed caching for read operations. Every
// write evicts the cached reads it can affect.
type Cache struct {
	base  resources.Backend
	redis *redis.Client
	ttl   time.Duration
	log   *log.Logger
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base resources.Backend, client *redis.Client, ttl time.Duration, logger *log.Logger) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Cache{base: base, redis: client, ttl: ttl, log: logger}
}

func (c *Cache) ListBoards(ctx context.Context) ([]domain.Board, error) {
	return readThrough(ctx, c, boardsCacheKey(), func() ([]domain.Board, error) {
		return c.base.ListBoards(ctx)
	})
}

func (c *Cache) GetBoard(ctx context.Context, id string) (domain.Board, error) {
	return readThrough(ctx, c, boardCacheKey(id), func() (domain.Board, error) {
		return c.base.GetBoard(ctx, id)
	})
}

func (c *Cache) ListTasks(ctx context.Context, boardID string) ([]domain.Task, error) {
	return readThrough(ctx, c, tasksCacheKey(boardID), func() ([]domain.Task, error) {
		return c.base.ListTasks(ctx, boardID)
	})
}

func (c *Cache) ListTodos(ctx context.Context, taskID string) ([]domain.Todo, error) {
	return readThrough(ctx, c, todosCacheKey(taskID), func() ([]domain.Todo, error) {
		return c.base.ListTodos(ctx, taskID)
	})
}

func (c *Cache) ListTags(ctx context.Context, orgID string) ([]domain.Tag, error) {
	return readThrough(ctx, c, tagsCacheKey(orgID), func() ([]domain.Tag, error) {
		return c.base.ListTags(ctx, orgID)
	})
}

func (c *Cache) ListUsers(ctx context.Context) ([]domain.User, error) {
	return readThrough(ctx, c, usersCacheKey(), func() ([]domain.User, error) {
		return c.base.ListUsers(ctx)
	})
}

func (c *Cache) CreateBoard(ctx context.Context, userID string, in domain.BoardInput) (domain.Board, error) {
	b, err := c.base.CreateBoard(ctx, userID, in)
	if err == nil {
		c.evict(ctx, boardsCacheKey())
	}
	return b, err
}

func (c *Cache) UpdateBoard(ctx context.Context, id string, upd domain.BoardUpdate) (domain.Board, error) {
	b, err := c.base.UpdateBoard(ctx, id, upd)
	if err == nil {
		c.evict(ctx, boardsCacheKey(), boardCacheKey(id))
	}
	return b, err
}

func (c *Cache) DeleteBoard(ctx context.Context, id string) error {
	if err := c.base.DeleteBoard(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, boardsCacheKey(), boardCacheKey(id), tasksCacheKey(id))
	return nil
}

func (c *Cache) CreateTask(ctx context.Context, boardID, userID string, in domain.TaskInput) (domain.Task, error) {
	t, err := c.base.CreateTask(ctx, boardID, userID, in)
	if err == nil {
		c.evict(ctx, tasksCacheKey(boardID))
	}
	return t, err
}

func (c *Cache) UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) (domain.Task, error) {
	t, err := c.base.UpdateTask(ctx, id, upd)
	if err == nil {
		c.evict(ctx, tasksCacheKey(t.BoardID))
	}
	return t, err
}

func (c *Cache) MoveTask(ctx context.Context, id string, pos domain.Position) (domain.Task, error) {
	t, err := c.base.MoveTask(ctx, id, pos)
	if err == nil {
		c.evict(ctx, tasksCacheKey(t.BoardID))
	}
	return t, err
}

func (c *Cache) DeleteTask(ctx context.Context, id string) error {
	return c.evictingTasks(ctx, c.base.DeleteTask(ctx, id))
}

func (c *Cache) AssignUser(ctx context.Context, taskID, userID, assignedBy string) error {
	return c.evictingTasks(ctx, c.base.AssignUser(ctx, taskID, userID, assignedBy))
}

func (c *Cache) UnassignUser(ctx context.Context, taskID, userID string) error {
	return c.evictingTasks(ctx, c.base.UnassignUser(ctx, taskID, userID))
}

func (c *Cache) AddTag(ctx context.Context, taskID, tagID string) error {
	return c.evictingTasks(ctx, c.base.AddTag(ctx, taskID, tagID))
}

func (c *Cache) RemoveTag(ctx context.Context, taskID, tagID string) error {
	return c.evictingTasks(ctx, c.base.RemoveTag(ctx, taskID, tagID))
}

func (c *Cache) CreateTodo(ctx context.Context, taskID, userID string, in domain.TodoInput) (domain.Todo, error) {
	td, err := c.base.CreateTodo(ctx, taskID, userID, in)
	if err == nil {
		c.evict(ctx, todosCacheKey(taskID))
		c.evictPrefix(ctx, tasksCachePrefix)
	}
	return td, err
}

func (c *Cache) UpdateTodo(ctx context.Context, id string, upd domain.TodoUpdate) (domain.Todo, error) {
	td, err := c.base.UpdateTodo(ctx, id, upd)
	if err == nil {
		c.evict(ctx, todosCacheKey(td.TaskID))
		c.evictPrefix(ctx, tasksCachePrefix)
	}
	return td, err
}

func (c *Cache) DeleteTodo(ctx context.Context, id string) error {
	if err := c.base.DeleteTodo(ctx, id); err != nil {
		return err
	}
	c.evictPrefix(ctx, todosCachePrefix)
	c.evictPrefix(ctx, tasksCachePrefix)
	return nil
}

func (c *Cache) CreateTag(ctx context.Context, in domain.TagInput) (domain.Tag, error) {
	tag, err := c.base.CreateTag(ctx, in)
	if err == nil {
		c.evict(ctx, tagsCacheKey(in.OrganizationID))
	}
	return tag, err
}

func (c *Cache) UpdateTag(ctx context.Context, id string, upd domain.TagUpdate) (domain.Tag, error) {
	tag, err := c.base.UpdateTag(ctx, id, upd)
	if err == nil {
		c.evict(ctx, tagsCacheKey(tag.OrganizationID))
		c.evictPrefix(ctx, tasksCachePrefix)
	}
	return tag, err
}

func (c *Cache) DeleteTag(ctx context.Context, id string) error {
	if err := c.base.DeleteTag(ctx, id); err != nil {
		return err
	}
	c.evictPrefix(ctx, tagsCachePrefix)
	c.evictPrefix(ctx, tasksCachePrefix)
	return nil
}

func (c *Cache) CreateUser(ctx context.Context, in domain.UserInput) (domain.User, error) {
	u, err := c.base.CreateUser(ctx, in)
	if err == nil {
		c.evict(ctx, usersCacheKey())
	}
	return u, err
}

func (c *Cache) UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) (domain.User, error) {
	u, err := c.base.UpdateUser(ctx, id, upd)
	if err == nil {
		c.evict(ctx, usersCacheKey())
		c.evictPrefix(ctx, tasksCachePrefix)
	}
	return u, err
}

func (c *Cache) DeleteUser(ctx context.Context, id string) error {
	if err := c.base.DeleteUser(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, usersCacheKey())
	c.evictPrefix(ctx, tasksCachePrefix)
	return nil
}

func (c *Cache) evictingTasks(ctx context.Context, err error) error {
	if err == nil {
		c.evictPrefix(ctx, tasksCachePrefix)
	}
	return err
}

func readThrough[T any](ctx context.Context, c *Cache, key string, fetch func() (T, error)) (T, error) {
	if v, ok := loadCached[T](ctx, c, key); ok {
		return v, nil
	}
	v, err := fetch()
	if err != nil {
		return v, err
	}
	c.store(ctx, key, v)
	return v, nil
}

func loadCached[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var v T
	if c.redis == nil {
		return v, false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return v, false
	}
	if err := sonic.Unmarshal(data, &v); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		var zero T
		return zero, false
	}
	return v, true
}

func (c *Cache) store(ctx context.Context, key string, v any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(v)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, keys ...string) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.log.WithError(err).WithField("keys", keys).Warn("cache eviction failed")
	}
}

func (c *Cache) evictPrefix(ctx context.Context, prefix string) {
	if c.redis == nil {
		return
	}
	var keys []string
	iter := c.redis.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		// Keys found before the failure are still evicted.
		c.log.WithError(err).WithField("prefix", prefix).Warn("cache scan failed")
	}
	if len(keys) > 0 {
		if err := c.redis.Del(ctx, keys...).Err(); err != nil {
			c.log.WithError(err).WithField("prefix", prefix).Warn("cache eviction failed")
		}
	}
}

const (
	tasksCachePrefix = "tasks:"
	todosCachePrefix = "todos:"
	tagsCachePrefix  = "tags:"
)

func boardsCacheKey() string { return "boards" }
func boardCacheKey(id string) string { return "board:" + id }
func tasksCacheKey(boardID string) string { return tasksCachePrefix + boardID }
func todosCacheKey(taskID string) string { return todosCachePrefix + taskID }
func tagsCacheKey(orgID string) string { return tagsCachePrefix + orgID }
func usersCacheKey() string { return "users" }
