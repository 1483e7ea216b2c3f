// Package kafka publishes storefront events to Kafka.
package kafka

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/xenking/acidic-storefront/internal/messaging"
)

var _ messaging.Publisher = (*Publisher)(nil)

// Publisher writes events through a single long-lived writer. The topic is
// set per message.
type Publisher struct {
	w *kafkago.Writer
}

// NewPublisher returns a Publisher for brokers.
func NewPublisher(brokers []string) *Publisher {
	return &Publisher{w: &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}
}

// Publish implements messaging.Publisher.
func (p *Publisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	err := p.w.WriteMessages(ctx, kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	})
	if err != nil {
		return errors.Wrapf(err, "write to %s", topic)
	}
	return nil
}

// Close flushes pending messages.
func (p *Publisher) Close() error {
	return p.w.Close()
}
