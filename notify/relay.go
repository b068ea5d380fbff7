package notify

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/AndreEgeli/theAtlasBoard/domain"
)

// Relay republishes change events from a queue on a Redis channel.
type Relay struct {
	source  Source
	redis   *redis.Client
	channel string
	log     *log.Logger
	// Idle is the pause after an empty or failed dequeue.
	Idle time.Duration
}

func NewRelay(source Source, rc *redis.Client, channel string, logger *log.Logger) *Relay {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Relay{source: source, redis: rc, channel: channel, log: logger, Idle: time.Second}
}

// Run relays messages until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	for ctx.Err() == nil {
		msg, err := r.source.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil {
				r.log.WithError(err).Warn("dequeue change event failed")
			}
			r.sleep(ctx)
			continue
		}
		if msg == nil {
			r.sleep(ctx)
			continue
		}
		r.handle(ctx, msg)
	}
}

// handle publishes one message and removes it from the queue. A message that
// cannot be published stays queued and is retried once it becomes visible
// again.
func (r *Relay) handle(ctx context.Context, msg *azqueue.DequeuedMessage) {
	if msg.MessageID == nil || msg.PopReceipt == nil {
		return
	}
	id, receipt := *msg.MessageID, *msg.PopReceipt
	text := ""
	if msg.MessageText != nil {
		text = *msg.MessageText
	}

	var ev domain.ChangeEvent
	if err := sonic.UnmarshalString(text, &ev); err != nil || ev.EntityType == "" {
		r.log.WithField("message", id).Warn("discarding malformed change event")
		r.delete(ctx, id, receipt)
		return
	}
	if err := r.redis.Publish(ctx, r.channel, text).Err(); err != nil {
		r.log.WithError(err).WithFields(log.Fields{
			"entity": ev.EntityType,
			"id":     ev.EntityID,
		}).Errorf("Unable to publish change to %s", r.channel)
		return
	}
	r.log.WithFields(log.Fields{
		"entity": ev.EntityType,
		"id":     ev.EntityID,
		"change": ev.Type,
	}).Debug("change relayed")
	r.delete(ctx, id, receipt)
}

func (r *Relay) delete(ctx context.Context, id, receipt string) {
	if err := r.source.Delete(ctx, id, receipt); err != nil {
		r.log.WithError(err).WithField("message", id).Warn("delete change event failed")
	}
}

func (r *Relay) sleep(ctx context.Context) {
	t := time.NewTimer(r.Idle)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
