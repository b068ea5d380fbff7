package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// HeaderIdempotencyKey names a write so a retried request is applied once.
const HeaderIdempotencyKey = "Idempotency-Key"

// Deduper records idempotency keys.
type Deduper interface {
	Add(ctx context.Context, userID, key string) (bool, error)
	Remove(ctx context.Context, userID, key string) error
}

// RedisDeduper stores seen idempotency keys in Redis so every client of the
// same user shares them.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(userID, key string) string {
	return "idem:" + userID + ":" + key
}

// Add records the key if it does not already exist. It returns true when the
// key was newly added.
func (r *RedisDeduper) Add(ctx context.Context, userID, key string) (bool, error) {
	return r.client.SetNX(ctx, r.key(userID, key), 1, r.ttl).Result()
}

// Remove forgets a key so the write it named may be retried.
func (r *RedisDeduper) Remove(ctx context.Context, userID, key string) error {
	return r.client.Del(ctx, r.key(userID, key)).Err()
}

// IdempotencyMiddleware rejects a write whose Idempotency-Key was already
// seen with a 409. Keys of writes that fail are removed again. When the
// deduper itself fails the request goes through unchecked.
func IdempotencyMiddleware(d Deduper, userID string, logger *log.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			key := req.Header.Get(HeaderIdempotencyKey)
			if key == "" || req.Method == http.MethodGet || req.Method == http.MethodHead {
				return next(c)
			}
			ctx := req.Context()
			added, err := d.Add(ctx, userID, key)
			if err != nil {
				logger.WithError(err).WithField("key", key).Warn("idempotency check failed")
				return next(c)
			}
			if !added {
				return c.String(http.StatusConflict, "duplicate request")
			}

			err = next(c)
			if err != nil || c.Response().Status >= http.StatusBadRequest {
				if rerr := d.Remove(context.WithoutCancel(ctx), userID, key); rerr != nil {
					logger.WithError(rerr).WithField("key", key).Warn("idempotency key not released")
				}
			}
			return err
		}
	}
}
