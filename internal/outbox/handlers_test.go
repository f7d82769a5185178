package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/delivery-orders/internal/models"
	apperrors "github.com/vaidashi/delivery-orders/pkg/errors"
	"github.com/vaidashi/delivery-orders/pkg/logger"
)

type recordingPublisher struct {
	topic, key string
	value      []byte
	err        error
}

func (p *recordingPublisher) SendMessage(ctx context.Context, topic string, key string, value []byte) error {
	p.topic, p.key, p.value = topic, key, value
	return p.err
}

func TestKafkaHandlerPublishesKeyedByAggregate(t *testing.T) {
	pub := &recordingPublisher{}
	h := NewKafkaHandler(pub, "orders", logger.NewNop())

	msg := message(1, models.EventOrderMaterialized)
	msg.AggregateID = "42"
	msg.Payload = []byte(`{"event_type":"order_materialized"}`)

	require.NoError(t, h.HandleMessage(context.Background(), msg))
	assert.Equal(t, "orders", pub.topic)
	assert.Equal(t, "42", pub.key)
	assert.Equal(t, msg.Payload, pub.value)
}

func TestKafkaHandlerBrokerErrorsAreRetryable(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("kafka: client has run out of available brokers")}
	h := NewKafkaHandler(pub, "orders", logger.NewNop())

	err := h.HandleMessage(context.Background(), message(1, models.EventOrderCreated))
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.ErrorIs(t, err, pub.err)
}

func TestKafkaHandlerRejectsEmptyPayload(t *testing.T) {
	pub := &recordingPublisher{}
	h := NewKafkaHandler(pub, "orders", logger.NewNop())

	msg := message(1, models.EventOrderCreated)
	msg.Payload = nil

	err := h.HandleMessage(context.Background(), msg)
	require.Error(t, err)
	assert.False(t, apperrors.IsRetryable(err))
	assert.Empty(t, pub.topic)
}

func TestLoggingHandlerAlwaysSucceeds(t *testing.T) {
	h := NewLoggingHandler(logger.NewNop())
	assert.NoError(t, h.HandleMessage(context.Background(), message(1, models.EventOrderDeleted)))
}
