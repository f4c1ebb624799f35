package queue

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
)

// PubSubQueue implements MessageQueue on Cloud Pub/Sub.
type PubSubQueue struct {
	client *pubsub.Client

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewPubSubQueue wraps an existing Pub/Sub client.
func NewPubSubQueue(client *pubsub.Client) *PubSubQueue {
	return &PubSubQueue{client: client, topics: map[string]*pubsub.Topic{}}
}

func (q *PubSubQueue) topic(name string) *pubsub.Topic {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.topics[name]
	if !ok {
		t = q.client.Topic(name)
		q.topics[name] = t
	}
	return t
}

// Publish sends a message and waits for the server acknowledgement, so a
// crash after Publish returns cannot lose the message.
func (q *PubSubQueue) Publish(ctx context.Context, topic string, body []byte) error {
	result := q.topic(topic).Publish(ctx, &pubsub.Message{Data: body})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Close releases topic publishing resources.
func (q *PubSubQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.topics {
		t.Stop()
	}
}
