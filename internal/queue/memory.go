package queue

import (
	"context"
	"sync"
)

// Message is a published message captured by the in-memory queue.
type Message struct {
	Topic string
	Body  []byte
}

// MemQueue is an in-memory MessageQueue for tests and local runs. It
// records every published message; a driver drains the backlog and hands
// messages to stage handlers, simulating at-least-once delivery.
type MemQueue struct {
	mu       sync.Mutex
	messages []Message
}

// NewMemQueue returns an empty in-memory queue.
func NewMemQueue() *MemQueue {
	return &MemQueue{}
}

func (q *MemQueue) Publish(_ context.Context, topic string, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, Message{Topic: topic, Body: append([]byte(nil), body...)})
	return nil
}

// Pop removes and returns the oldest pending message.
func (q *MemQueue) Pop() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.messages) == 0 {
		return Message{}, false
	}
	msg := q.messages[0]
	q.messages = q.messages[1:]
	return msg, true
}

// Len reports the number of pending messages.
func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}
