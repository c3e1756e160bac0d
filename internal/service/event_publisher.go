package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Rijughosh14/EShop/internal/domain"
	"github.com/Rijughosh14/EShop/pkg/kafka"
	"github.com/google/uuid"
)

// EventPublisher publishes order events
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, order *domain.Order) error
	PublishOrderFailed(ctx context.Context, order *domain.Order) error
	Close() error
}

// MessageProducer is the part of kafka.Producer the publisher needs
type MessageProducer interface {
	Produce(ctx context.Context, msg *kafka.Message) error
	Close()
}

// EventPublisherConfig contains configuration for the event publisher
type EventPublisherConfig struct {
	Brokers     []string
	Topic       string
	ServiceName string
	ClientID    string
}

// KafkaEventPublisher implements EventPublisher using Kafka
type KafkaEventPublisher struct {
	producer    MessageProducer
	topic       string
	serviceName string
}

// NewKafkaEventPublisher connects to the brokers and returns a publisher
func NewKafkaEventPublisher(ctx context.Context, cfg *EventPublisherConfig) (*KafkaEventPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("event publisher config is required")
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "eshop-api-producer"
	}

	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:       cfg.Brokers,
		ClientID:      clientID,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
		BatchSize:     100,
		LingerMs:      10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return newKafkaEventPublisher(producer, cfg.Topic, cfg.ServiceName), nil
}

func newKafkaEventPublisher(producer MessageProducer, topic, serviceName string) *KafkaEventPublisher {
	if topic == "" {
		topic = "order-events"
	}
	if serviceName == "" {
		serviceName = "eshop-api"
	}
	return &KafkaEventPublisher{producer: producer, topic: topic, serviceName: serviceName}
}

func (p *KafkaEventPublisher) PublishOrderPlaced(ctx context.Context, order *domain.Order) error {
	return p.publishEvent(ctx, domain.OrderEventPlaced, order)
}

func (p *KafkaEventPublisher) PublishOrderFailed(ctx context.Context, order *domain.Order) error {
	return p.publishEvent(ctx, domain.OrderEventFailed, order)
}

// Close flushes and closes the producer
func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		p.producer.Close()
	}
	return nil
}

func (p *KafkaEventPublisher) publishEvent(ctx context.Context, eventType domain.OrderEventType, order *domain.Order) error {
	eventID := uuid.New().String()
	event := domain.NewOrderEvent(eventType, order, eventID)

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.Key()),
		Value: value,
		Headers: map[string]string{
			"event_type":   string(eventType),
			"event_id":     eventID,
			"source":       p.serviceName,
			"content_type": "application/json",
		},
		Timestamp: event.OccurredAt,
	}

	if err := p.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}
	return nil
}

// NoOpEventPublisher drops every event; used when no brokers are configured
type NoOpEventPublisher struct{}

func NewNoOpEventPublisher() *NoOpEventPublisher { return &NoOpEventPublisher{} }

func (p *NoOpEventPublisher) PublishOrderPlaced(ctx context.Context, order *domain.Order) error {
	return nil
}

func (p *NoOpEventPublisher) PublishOrderFailed(ctx context.Context, order *domain.Order) error {
	return nil
}

func (p *NoOpEventPublisher) Close() error { return nil }
