package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientOptions_RequiresBrokers(t *testing.T) {
	_, err := clientOptions(nil)
	assert.ErrorIs(t, err, ErrNoBrokers)

	_, err = clientOptions(&ProducerConfig{})
	assert.ErrorIs(t, err, ErrNoBrokers)

	opts, err := clientOptions(&ProducerConfig{
		Brokers:    []string{"localhost:9092"},
		ClientID:   "eshop-api",
		LingerMs:   10,
		BatchSize:  100,
		MaxRetries: 3,
	})
	require.NoError(t, err)
	assert.Len(t, opts, 6)
}

func TestNewProducer_NoBrokers(t *testing.T) {
	_, err := NewProducer(context.Background(), &ProducerConfig{})
	assert.ErrorIs(t, err, ErrNoBrokers)
}

func TestToRecord(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	record := toRecord(&Message{
		Topic:     "order-events",
		Key:       []byte("order-1"),
		Value:     []byte(`{"ok":true}`),
		Headers:   map[string]string{"event_type": "order.placed"},
		Timestamp: ts,
	})

	assert.Equal(t, "order-events", record.Topic)
	assert.Equal(t, []byte("order-1"), record.Key)
	assert.Equal(t, ts, record.Timestamp)
	require.Len(t, record.Headers, 1)
	assert.Equal(t, "event_type", record.Headers[0].Key)
	assert.Equal(t, []byte("order.placed"), record.Headers[0].Value)
}
