package notify

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/AndreEgeli/theAtlasBoard/cache"
	"github.com/AndreEgeli/theAtlasBoard/domain"
	"github.com/AndreEgeli/theAtlasBoard/resources"
)

// Invalidator refreshes cached views.
type Invalidator interface {
	Invalidate(prefix cache.Key)
}

// Subscribe listens for change events on channel and invalidates the cache
// keys each one names. It reconnects when the subscription drops and returns
// once ctx is done.
func Subscribe(ctx context.Context, logger *log.Logger, rc *redis.Client, channel string, store Invalidator) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	for {
		sub := rc.Subscribe(ctx, channel)
		ch := sub.Channel()
	receive:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break receive
				}
				var ev domain.ChangeEvent
				if err := sonic.UnmarshalString(msg.Payload, &ev); err != nil {
					logger.Errorf("unable to parse change: %v", err)
					continue
				}
				keys := resources.KeysForChange(ev)
				for _, k := range keys {
					store.Invalidate(k)
				}
				logger.WithFields(log.Fields{
					"entity": ev.EntityType,
					"id":     ev.EntityID,
					"keys":   len(keys),
				}).Debug("change received")
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Error("pubsub channel closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}
