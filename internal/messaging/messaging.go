// Package messaging defines the event publishing boundary.
package messaging

import (
	"context"
	"sync"
)

// Publisher publishes an encoded event to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

// Message is a published event.
type Message struct {
	Topic   string
	Key     string
	Payload []byte
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, string, string, []byte) error { return nil }

// Memory records events in process.
type Memory struct {
	mu       sync.Mutex
	messages []Message
}

// Publish implements Publisher.
func (m *Memory) Publish(_ context.Context, topic, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, Message{
		Topic:   topic,
		Key:     key,
		Payload: append([]byte(nil), payload...),
	})
	return nil
}

// Messages returns the recorded events in publish order.
func (m *Memory) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}
