// Package queue abstracts the messaging layer that triggers pipeline
// stages. Cross-invocation control flow is entirely message-driven; a
// stage never waits on another stage in process.
package queue

import "context"

// MessageQueue publishes raw JSON message bodies to named topics.
type MessageQueue interface {
	Publish(ctx context.Context, topic string, body []byte) error
}
