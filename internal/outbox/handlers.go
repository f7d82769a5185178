package outbox

import (
	"context"

	"github.com/vaidashi/delivery-orders/internal/models"
	"github.com/vaidashi/delivery-orders/pkg/logger"
)

// LoggingHandler logs messages instead of publishing them. It stands in for
// the broker when Kafka is disabled.
type LoggingHandler struct {
	logger logger.Logger
}

// NewLoggingHandler creates a new logging handler
func NewLoggingHandler(logger logger.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger}
}

// HandleMessage logs the message
func (h *LoggingHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	h.logger.Info("Order event",
		"messageID", message.ID,
		"eventType", message.EventType,
		"aggregateType", message.AggregateType,
		"aggregateID", message.AggregateID,
		"payloadSize", len(message.Payload))
	return nil
}
