package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/souqline/fulfillment-service/internal/config"
	"github.com/souqline/fulfillment-service/internal/models"
)

// EventType identifies a fulfillment lifecycle event.
type EventType string

const (
	EventTypeOrderAccepted  EventType = "order.accepted"
	EventTypeOrderRejected  EventType = "order.rejected"
	EventTypeOrderCompleted EventType = "order.completed"
)

// FulfillmentEvent is the envelope written to the fulfillment topic.
type FulfillmentEvent struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	OrderID   string          `json:"order_id"`
	VendorID  string          `json:"vendor_id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Publisher emits fulfillment lifecycle events. Publishing is best-effort:
// the engine logs failures and carries on.
type Publisher interface {
	PublishOrderAccepted(ctx context.Context, order *models.Order) error
	PublishOrderRejected(ctx context.Context, orderID, vendorID string) error
	PublishOrderCompleted(ctx context.Context, order *models.Order) error
	Close() error
}

// KafkaPublisher publishes fulfillment events to Kafka.
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.FulfillmentTopic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	return &KafkaPublisher{
		writer: writer,
		topic:  cfg.FulfillmentTopic,
	}
}

// PublishOrderAccepted publishes an order accepted event.
func (p *KafkaPublisher) PublishOrderAccepted(ctx context.Context, order *models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return p.publish(ctx, newEvent(EventTypeOrderAccepted, order.ID, order.VendorID, data))
}

// PublishOrderRejected publishes an order rejected event. The order record
// is already gone, so the event carries identifiers only.
func (p *KafkaPublisher) PublishOrderRejected(ctx context.Context, orderID, vendorID string) error {
	return p.publish(ctx, newEvent(EventTypeOrderRejected, orderID, vendorID, nil))
}

// PublishOrderCompleted publishes an order completed event.
func (p *KafkaPublisher) PublishOrderCompleted(ctx context.Context, order *models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return p.publish(ctx, newEvent(EventTypeOrderCompleted, order.ID, order.VendorID, data))
}

func (p *KafkaPublisher) publish(ctx context.Context, event FulfillmentEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: value,
		Time:  event.Timestamp,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("Failed to publish fulfillment event",
			"event_type", event.Type,
			"order_id", event.OrderID,
			"error", err)
		return err
	}

	slog.Debug("Fulfillment event published",
		"event_type", event.Type,
		"order_id", event.OrderID,
		"topic", p.topic)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func newEvent(eventType EventType, orderID, vendorID string, data json.RawMessage) FulfillmentEvent {
	return FulfillmentEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		OrderID:   orderID,
		VendorID:  vendorID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// NoopPublisher discards all events. Used when events are disabled and in
// tests.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderAccepted(ctx context.Context, order *models.Order) error {
	return nil
}

func (NoopPublisher) PublishOrderRejected(ctx context.Context, orderID, vendorID string) error {
	return nil
}

func (NoopPublisher) PublishOrderCompleted(ctx context.Context, order *models.Order) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }
