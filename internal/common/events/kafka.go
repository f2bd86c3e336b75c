// Package events publishes domain events for other OPAS services.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafka "github.com/segmentio/kafka-go"
)

// Event is the envelope written to the topic. Payload is the event body.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Source     string      `json:"source"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, key, eventType string, payload interface{}) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	w      messageWriter
	source string
	now    func() time.Time
}

// NewKafkaPublisher returns a no-op publisher when no brokers are configured.
func NewKafkaPublisher(brokers []string, topic, source string) Publisher {
	if len(brokers) == 0 || topic == "" {
		return NoopPublisher{}
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireOne,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return newKafkaPublisher(w, source)
}

func newKafkaPublisher(w messageWriter, source string) *KafkaPublisher {
	return &KafkaPublisher{w: w, source: source, now: time.Now}
}

// Publish writes one event keyed by key, so events for the same batch land
// on the same partition.
func (p *KafkaPublisher) Publish(ctx context.Context, key, eventType string, payload interface{}) error {
	evt := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Source:     p.source,
		OccurredAt: p.now().UTC(),
		Payload:    payload,
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: b,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
		},
	}); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, string, interface{}) error { return nil }
func (NoopPublisher) Close() error                                               { return nil }
