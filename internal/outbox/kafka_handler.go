package outbox

import (
	"context"
	"fmt"

	"github.com/vaidashi/delivery-orders/internal/models"
	apperrors "github.com/vaidashi/delivery-orders/pkg/errors"
	"github.com/vaidashi/delivery-orders/pkg/logger"
)

// Publisher sends a keyed message to a topic
type Publisher interface {
	SendMessage(ctx context.Context, topic string, key string, value []byte) error
}

// KafkaHandler publishes outbox messages to a topic, keyed by aggregate so
// that events for one order stay ordered within a partition
type KafkaHandler struct {
	publisher Publisher
	topic     string
	logger    logger.Logger
}

// NewKafkaHandler creates a new Kafka handler
func NewKafkaHandler(publisher Publisher, topic string, logger logger.Logger) *KafkaHandler {
	return &KafkaHandler{
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}
}

// HandleMessage publishes the message payload. Broker failures are retryable.
func (h *KafkaHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	if len(message.Payload) == 0 {
		return fmt.Errorf("outbox message %d has an empty payload", message.ID)
	}

	if err := h.publisher.SendMessage(ctx, h.topic, message.AggregateID, message.Payload); err != nil {
		return apperrors.NewTemporaryError(fmt.Errorf("publish %s for %s %s: %w",
			message.EventType, message.AggregateType, message.AggregateID, err))
	}

	h.logger.Debug("Published order event",
		"topic", h.topic,
		"eventType", message.EventType,
		"aggregateID", message.AggregateID)

	return nil
}
