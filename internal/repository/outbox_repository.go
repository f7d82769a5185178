package repository

import (
	"context"
	"time"

	"github.com/vaidashi/delivery-orders/internal/database"
	"github.com/vaidashi/delivery-orders/internal/models"
	"github.com/vaidashi/delivery-orders/pkg/logger"
)

// OutboxRepository handles database operations for outbox messages
type OutboxRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewOutboxRepository creates a new OutboxRepository
func NewOutboxRepository(db *database.Database, logger logger.Logger) *OutboxRepository {
	return &OutboxRepository{
		db:     db,
		logger: logger,
	}
}

const outboxColumns = `id, aggregate_type, aggregate_id, event_type, payload,
	created_at, processed_at, processing_attempts, last_error, status,
	processing_started_at`

// CreateInTx appends a message in the caller's transaction and sets its ID
func (r *OutboxRepository) CreateInTx(ctx context.Context, tx Queryer, message *models.OutboxMessage) error {
	query := `
		INSERT INTO outbox_messages (
			aggregate_type, aggregate_id, event_type, payload, created_at, status
		) VALUES (
			$1, $2, $3, $4, $5, $6
		) RETURNING id
	`

	err := tx.QueryRowxContext(
		ctx,
		query,
		message.AggregateType,
		message.AggregateID,
		message.EventType,
		message.Payload,
		message.CreatedAt,
		message.Status,
	).Scan(&message.ID)

	if err != nil {
		return dbError(r.logger, "Failed to create outbox message", err, "eventType", message.EventType)
	}

	return nil
}

// GetPendingMessages retrieves pending outbox messages, oldest first
func (r *OutboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*models.OutboxMessage, error) {
	query := `SELECT ` + outboxColumns + `
		FROM outbox_messages
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`

	messages := []*models.OutboxMessage{}
	if err := r.db.DB.SelectContext(ctx, &messages, query, models.OutboxStatusPending, limit); err != nil {
		return nil, dbError(r.logger, "Failed to get pending outbox messages", err)
	}

	return messages, nil
}

// MarkAsProcessing claims a pending message and counts the attempt. It
// reports false when another worker claimed it first.
func (r *OutboxRepository) MarkAsProcessing(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.DB.ExecContext(ctx, `
		UPDATE outbox_messages
		SET status = $1, processing_attempts = processing_attempts + 1, processing_started_at = $2
		WHERE id = $3 AND status = $4
	`, models.OutboxStatusProcessing, time.Now().UTC(), id, models.OutboxStatusPending)
	if err != nil {
		return false, dbError(r.logger, "Failed to mark outbox message as processing", err, "messageID", id)
	}

	n, err := rowsAffected(res)
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

// MarkAsCompleted updates the status of an outbox message to completed
func (r *OutboxRepository) MarkAsCompleted(ctx context.Context, id int64) error {
	_, err := r.db.DB.ExecContext(ctx,
		`UPDATE outbox_messages
		 SET status = $1, processed_at = $2, last_error = NULL, processing_started_at = NULL
		 WHERE id = $3`,
		models.OutboxStatusCompleted, time.Now().UTC(), id)
	if err != nil {
		return dbError(r.logger, "Failed to mark outbox message as completed", err, "messageID", id)
	}

	return nil
}

// MarkForRetry puts a message back in the pending queue with the last error
func (r *OutboxRepository) MarkForRetry(ctx context.Context, id int64, errorMessage string) error {
	_, err := r.db.DB.ExecContext(ctx,
		`UPDATE outbox_messages SET status = $1, last_error = $2, processing_started_at = NULL WHERE id = $3`,
		models.OutboxStatusPending, errorMessage, id)
	if err != nil {
		return dbError(r.logger, "Failed to reschedule outbox message", err, "messageID", id)
	}

	return nil
}

// MarkAsFailed parks a message for good
func (r *OutboxRepository) MarkAsFailed(ctx context.Context, id int64, errorMessage string) error {
	_, err := r.db.DB.ExecContext(ctx,
		`UPDATE outbox_messages SET status = $1, last_error = $2, processing_started_at = NULL WHERE id = $3`,
		models.OutboxStatusFailed, errorMessage, id)
	if err != nil {
		return dbError(r.logger, "Failed to mark outbox message as failed", err, "messageID", id)
	}

	return nil
}

// ReclaimStale returns messages claimed before cutoff to the pending queue.
// Their attempt stays counted.
func (r *OutboxRepository) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.DB.ExecContext(ctx, `
		UPDATE outbox_messages
		SET status = $1, processing_started_at = NULL
		WHERE status = $2 AND (processing_started_at IS NULL OR processing_started_at < $3)
	`, models.OutboxStatusPending, models.OutboxStatusProcessing, cutoff.UTC())
	if err != nil {
		return 0, dbError(r.logger, "Failed to reclaim stale outbox messages", err)
	}

	return rowsAffected(res)
}

// CountByAggregate counts messages for one aggregate, optionally of one event type
func (r *OutboxRepository) CountByAggregate(ctx context.Context, aggregateType, aggregateID, eventType string) (int64, error) {
	var n int64

	err := r.db.DB.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM outbox_messages
		WHERE aggregate_type = $1 AND aggregate_id = $2 AND ($3 = '' OR event_type = $3)
	`, aggregateType, aggregateID, eventType)
	if err != nil {
		return 0, dbError(r.logger, "Failed to count outbox messages", err)
	}

	return n, nil
}
