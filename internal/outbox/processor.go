// Package outbox relays order events written to the outbox table to a
// message broker.
package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vaidashi/delivery-orders/internal/config"
	"github.com/vaidashi/delivery-orders/internal/models"
	"github.com/vaidashi/delivery-orders/pkg/circuitbreaker"
	apperrors "github.com/vaidashi/delivery-orders/pkg/errors"
	"github.com/vaidashi/delivery-orders/pkg/logger"
	"github.com/vaidashi/delivery-orders/pkg/metrics"
)

// Store is the outbox table as seen by the processor
type Store interface {
	GetPendingMessages(ctx context.Context, limit int) ([]*models.OutboxMessage, error)
	// MarkAsProcessing claims a pending message. It reports false when
	// another processor claimed it first.
	MarkAsProcessing(ctx context.Context, id int64) (bool, error)
	MarkAsCompleted(ctx context.Context, id int64) error
	MarkForRetry(ctx context.Context, id int64, errorMessage string) error
	MarkAsFailed(ctx context.Context, id int64, errorMessage string) error
	// ReclaimStale returns messages claimed before cutoff to pending
	ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// MessageHandler delivers one outbox message
type MessageHandler interface {
	HandleMessage(ctx context.Context, message *models.OutboxMessage) error
}

// Processor polls the outbox table and hands pending messages to handlers
type Processor struct {
	store    Store
	handlers map[string]MessageHandler
	fallback MessageHandler
	breaker  *circuitbreaker.CircuitBreaker
	logger   logger.Logger
	metrics  *metrics.OutboxMetrics

	interval          time.Duration
	batchSize         int
	maxRetries        int
	processingTimeout time.Duration
	now               func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProcessor creates a new outbox processor. m may be nil.
func NewProcessor(store Store, cfg config.OutboxConfig, logger logger.Logger, m *metrics.OutboxMetrics) *Processor {
	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.BreakerThreshold,
		ResetTimeout:     cfg.BreakerResetTimeout,
	})

	timeout := cfg.ProcessingTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Processor{
		store:             store,
		handlers:          make(map[string]MessageHandler),
		breaker:           breaker,
		logger:            logger.With("component", "outbox"),
		metrics:           m,
		interval:          cfg.PollingInterval,
		batchSize:         cfg.BatchSize,
		maxRetries:        cfg.MaxRetries,
		processingTimeout: timeout,
		now:               time.Now,
	}
}

// RegisterHandler registers a handler for an event type
func (p *Processor) RegisterHandler(eventType string, handler MessageHandler) {
	p.handlers[eventType] = handler
}

// SetFallbackHandler sets the handler for event types without one of their own
func (p *Processor) SetFallbackHandler(handler MessageHandler) {
	p.fallback = handler
}

// Start begins polling until ctx is done or Stop is called
func (p *Processor) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	p.logger.Info("Starting outbox processor",
		"interval", p.interval,
		"batchSize", p.batchSize,
		"maxRetries", p.maxRetries)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Info("Outbox processor stopped")
				return
			case <-ticker.C:
				if err := p.ProcessBatch(ctx); err != nil {
					p.logger.Error("Failed to process outbox batch", "error", err)
				}
			}
		}
	}()
}

// Stop stops the processor and waits for the current batch to finish
func (p *Processor) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// ProcessBatch handles one batch of pending messages. Polling pauses while
// the breaker is open, so an unreachable broker does not use up attempts.
func (p *Processor) ProcessBatch(ctx context.Context) error {
	if !p.breaker.Allow() {
		p.logger.Debug("Outbox delivery paused", "breaker", p.breaker.State())
		return nil
	}

	// claims left behind by a crash or a failed status write
	reclaimed, err := p.store.ReclaimStale(ctx, p.now().Add(-p.processingTimeout))
	if err != nil {
		return fmt.Errorf("failed to reclaim stale messages: %w", err)
	}
	if reclaimed > 0 {
		p.logger.Warn("Reclaimed stale outbox messages", "count", reclaimed)
	}

	messages, err := p.store.GetPendingMessages(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending messages: %w", err)
	}

	if len(messages) == 0 {
		return nil
	}

	p.logger.Debug("Processing outbox messages", "count", len(messages))

	for _, message := range messages {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p.breaker.State() == circuitbreaker.StateOpen {
			p.logger.Warn("Outbox delivery paused after repeated failures")
			return nil
		}
		p.processMessage(ctx, message)
	}

	return nil
}

func (p *Processor) processMessage(ctx context.Context, message *models.OutboxMessage) {
	log := p.logger.With(
		"messageID", message.ID,
		"eventType", message.EventType,
		"aggregateID", message.AggregateID)

	claimed, err := p.store.MarkAsProcessing(ctx, message.ID)
	if err != nil {
		log.Error("Failed to claim message", "error", err)
		return
	}
	if !claimed {
		log.Debug("Message claimed elsewhere")
		return
	}

	// the claim must be settled even when shutdown cancels ctx mid-delivery
	settleCtx := context.WithoutCancel(ctx)

	handler, ok := p.handlers[message.EventType]
	if !ok {
		handler = p.fallback
	}
	if handler == nil {
		p.fail(settleCtx, log, message, fmt.Sprintf("no handler registered for event type: %s", message.EventType))
		return
	}

	err = handler.HandleMessage(ctx, message)
	if err == nil {
		if err := p.store.MarkAsCompleted(settleCtx, message.ID); err != nil {
			log.Error("Failed to mark message as completed", "error", err)
			return
		}
		p.breaker.Success()
		p.metrics.IncPublished(message.EventType, metrics.PublishSuccess)
		log.Debug("Message processed")
		return
	}

	if ctx.Err() != nil {
		// interrupted by shutdown; the attempt does not count against the broker
		if err := p.store.MarkForRetry(settleCtx, message.ID, err.Error()); err != nil {
			log.Error("Failed to return message to pending, it will be reclaimed", "error", err)
			return
		}
		log.Info("Message delivery interrupted, returned to pending")
		return
	}

	retryable := apperrors.IsRetryable(err)
	if retryable {
		p.breaker.Failure()
	}

	// MarkAsProcessing already counted this attempt
	attempts := message.ProcessingAttempts + 1
	if !retryable || attempts >= p.maxRetries {
		p.fail(settleCtx, log, message, err.Error())
		return
	}

	if err := p.store.MarkForRetry(settleCtx, message.ID, err.Error()); err != nil {
		log.Error("Failed to return message to pending, it will be reclaimed", "error", err)
		return
	}
	p.metrics.IncPublished(message.EventType, metrics.PublishRetry)
	log.Warn("Message delivery failed, will retry", "error", err, "attempts", attempts)
}

func (p *Processor) fail(ctx context.Context, log logger.Logger, message *models.OutboxMessage, reason string) {
	if err := p.store.MarkAsFailed(ctx, message.ID, reason); err != nil {
		log.Error("Failed to mark message as failed", "error", err)
		return
	}
	p.metrics.IncPublished(message.EventType, metrics.PublishFailed)
	log.Error("Message delivery failed permanently", "reason", reason)
}
