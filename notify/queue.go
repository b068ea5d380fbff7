// Package notify fans committed changes out to every client: a relay moves
// change events from the storage queue onto a Redis channel, and each client
// subscribes to that channel to refresh the cache entries the change
// touches.
package notify

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

// Source yields queued change event messages.
type Source interface {
	Dequeue(ctx context.Context) (*azqueue.DequeuedMessage, error)
	Delete(ctx context.Context, id, receipt string) error
}

// Queue is a Source backed by an Azure queue.
type Queue struct {
	client *azqueue.QueueClient
}

func NewQueue(connStr, name string) (*Queue, error) {
	client, err := azqueue.NewQueueClientFromConnectionString(connStr, name, nil)
	if err != nil {
		return nil, err
	}
	return &Queue{client: client}, nil
}

// Dequeue retrieves a single message, or nil when the queue is empty.
func (q *Queue) Dequeue(ctx context.Context) (*azqueue.DequeuedMessage, error) {
	resp, err := q.client.DequeueMessage(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	return resp.Messages[0], nil
}

// Delete removes a processed message from the queue.
func (q *Queue) Delete(ctx context.Context, id, receipt string) error {
	_, err := q.client.DeleteMessage(ctx, id, receipt, nil)
	return err
}
