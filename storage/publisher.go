package storage

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/AndreEgeli/theAtlasBoard/domain"
)

type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// Publisher enqueues change events on an Azure queue.
type Publisher struct {
	queue queueClient
}

// NewPublisher connects to the named queue.
func NewPublisher(connStr, queueName string) (*Publisher, error) {
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Publisher{queue: q}, nil
}

// Publish enqueues ev as a JSON message.
func (p *Publisher) Publish(ctx context.Context, ev domain.ChangeEvent) error {
	data, err := sonic.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.queue.EnqueueMessage(ctx, string(data), nil)
	return err
}

func newChangeEvent(now time.Time, entityType, entityID, change, scope, userID string) domain.ChangeEvent {
	return domain.ChangeEvent{
		ID:         uuid.NewString(),
		EntityType: entityType,
		EntityID:   entityID,
		Type:       change,
		Scope:      scope,
		Time:       now.UnixMilli(),
		UserID:     userID,
	}
}
