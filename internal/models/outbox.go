package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// OutboxStatus represents the status of an outbox message
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusCompleted  OutboxStatus = "completed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// Event types appended to the outbox
const (
	EventOrderCreated       = "order_created"
	EventOrderMaterialized  = "order_materialized"
	EventOrderStatusChanged = "order_status_changed"
	EventOrderDeleted       = "order_deleted"
)

// OrderEventTypes lists every event type the outbox carries
var OrderEventTypes = []string{
	EventOrderCreated,
	EventOrderMaterialized,
	EventOrderStatusChanged,
	EventOrderDeleted,
}

// OutboxMessage represents a message to be published from the outbox table
type OutboxMessage struct {
	ID                  int64        `db:"id" json:"id"`
	AggregateType       string       `db:"aggregate_type" json:"aggregate_type"`
	AggregateID         string       `db:"aggregate_id" json:"aggregate_id"`
	EventType           string       `db:"event_type" json:"event_type"`
	Payload             []byte       `db:"payload" json:"payload"`
	CreatedAt           time.Time    `db:"created_at" json:"created_at"`
	ProcessedAt         *time.Time   `db:"processed_at" json:"processed_at,omitempty"`
	ProcessingAttempts  int          `db:"processing_attempts" json:"processing_attempts"`
	LastError           *string      `db:"last_error" json:"last_error,omitempty"`
	Status              OutboxStatus `db:"status" json:"status"`
	ProcessingStartedAt *time.Time   `db:"processing_started_at" json:"processing_started_at,omitempty"`
}

// OutboxMessageEvent is the JSON envelope stored in OutboxMessage.Payload
type OutboxMessageEvent struct {
	EventType   string      `json:"event_type"`
	EventID     string      `json:"event_id"`
	AggregateID string      `json:"aggregate_id"`
	OccurredAt  time.Time   `json:"occurred_at"`
	Data        interface{} `json:"data"`
}

func newOrderEvent(eventType string, orderID int64, data interface{}) (*OutboxMessage, error) {
	aggregateID := strconv.FormatInt(orderID, 10)
	now := GetCurrentTime()

	payload, err := json.Marshal(OutboxMessageEvent{
		EventType:   eventType,
		EventID:     GenerateID("evt"),
		AggregateID: aggregateID,
		OccurredAt:  now,
		Data:        data,
	})
	if err != nil {
		return nil, err
	}

	return &OutboxMessage{
		AggregateType: "order",
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
		Status:        OutboxStatusPending,
	}, nil
}

// NewOrderCreatedEvent is emitted for manually created orders
func NewOrderCreatedEvent(order *Order) (*OutboxMessage, error) {
	return newOrderEvent(EventOrderCreated, order.ID, order)
}

// NewOrderMaterializedEvent is emitted when a recurring template produced an order
func NewOrderMaterializedEvent(order *Order, itemCount int) (*OutboxMessage, error) {
	return newOrderEvent(EventOrderMaterialized, order.ID, map[string]interface{}{
		"order_id":           order.ID,
		"customer_id":        order.CustomerID,
		"order_date":         order.OrderDate,
		"recurring_order_id": order.RecurringOrderID,
		"item_count":         itemCount,
	})
}

// NewOrderStatusChangedEvent creates a new event for order status change
func NewOrderStatusChangedEvent(order *Order, oldStatus OrderStatus) (*OutboxMessage, error) {
	return newOrderEvent(EventOrderStatusChanged, order.ID, map[string]interface{}{
		"order_id":    order.ID,
		"customer_id": order.CustomerID,
		"old_status":  oldStatus,
		"new_status":  order.Status,
	})
}

// NewOrderDeletedEvent records a single order removal
func NewOrderDeletedEvent(orderID int64, itemsDeleted int64) (*OutboxMessage, error) {
	return newOrderEvent(EventOrderDeleted, orderID, map[string]interface{}{
		"order_id":      orderID,
		"items_deleted": itemsDeleted,
	})
}
