// Package recurring turns standing order templates into concrete orders for
// a delivery date.
//
// Each (template, date) pair produces at most one order. The store's unique
// constraint on orders(recurring_order_id, order_date) is the only arbiter:
// an insert that hits it means another run got there first, and the template
// is counted as skipped. Runs for the same date may therefore overlap freely.
package recurring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vaidashi/delivery-orders/internal/models"
	"github.com/vaidashi/delivery-orders/internal/repository"
	"github.com/vaidashi/delivery-orders/pkg/logger"
	"github.com/vaidashi/delivery-orders/pkg/metrics"
)

// Outcome is what a single template yielded for a date
type Outcome int

const (
	Created Outcome = iota + 1
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return metrics.OutcomeCreated
	case Skipped:
		return metrics.OutcomeSkipped
	}
	return "unknown"
}

// Result counts the outcomes of a run
type Result struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// Tx is the write surface available inside one template's transaction
type Tx interface {
	// CreateOrder returns repository.ErrRecurringOrderExists when the
	// template already has an order for the date.
	CreateOrder(ctx context.Context, order *models.Order) error
	ListTemplateItems(ctx context.Context, recurringOrderID int64) ([]*models.RecurringOrderItem, error)
	CreateOrderItems(ctx context.Context, items []*models.OrderItem) error
	AppendEvent(ctx context.Context, msg *models.OutboxMessage) error
	MarkMaterialized(ctx context.Context, recurringOrderID int64, date models.Date) error
}

// Store is what the materializer needs from persistence
type Store interface {
	ListActiveByWeekday(ctx context.Context, weekday int) ([]*models.RecurringOrder, error)
	MarkMaterialized(ctx context.Context, recurringOrderID int64, date models.Date) error
	// InTx commits when fn returns nil and rolls back otherwise
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Service materializes recurring orders
type Service struct {
	store   Store
	logger  logger.Logger
	metrics *metrics.MaterializationMetrics
}

// NewService creates a new Service. m may be nil.
func NewService(store Store, logger logger.Logger, m *metrics.MaterializationMetrics) *Service {
	return &Service{
		store:   store,
		logger:  logger.With("component", "recurring"),
		metrics: m,
	}
}

// MaterializeDate validates a raw YYYY-MM-DD date and materializes it.
// An invalid date yields ErrInvalidDateFormat and touches nothing.
func (s *Service) MaterializeDate(ctx context.Context, raw string) (*Result, error) {
	date, err := ParseOrderDate(raw)
	if err != nil {
		return nil, err
	}

	return s.Materialize(ctx, date)
}

// Materialize creates the orders due on date, one template at a time. The
// first failure other than an already existing order aborts the run: orders
// created before it stay committed and the partial counts are discarded.
func (s *Service) Materialize(ctx context.Context, date models.Date) (*Result, error) {
	start := time.Now()
	weekday := ISOWeekday(date.Time)

	templates, err := s.store.ListActiveByWeekday(ctx, weekday)
	if err != nil {
		s.metrics.ObserveRun(metrics.RunFailure, time.Since(start))
		failure := &StoreFailure{Date: date, Err: err}
		s.logger.Error("Materialization aborted",
			"error", failure.Err,
			"at", failure.Context(),
			"orderDate", date)
		return nil, failure
	}

	result := &Result{}

	for _, tmpl := range templates {
		outcome, err := s.MaterializeTemplate(ctx, tmpl, date)
		if err != nil {
			cause, at := err, ""
			var failure *StoreFailure
			if errors.As(err, &failure) {
				cause, at = failure.Err, failure.Context()
			}
			s.logger.Error("Materialization aborted",
				"error", cause,
				"at", at,
				"orderDate", date,
				"recurringOrderID", tmpl.ID,
				"createdSoFar", result.Created,
				"skippedSoFar", result.Skipped)
			s.metrics.ObserveRun(metrics.RunFailure, time.Since(start))
			return nil, err
		}

		switch outcome {
		case Created:
			result.Created++
		case Skipped:
			result.Skipped++
		}
	}

	s.metrics.ObserveRun(metrics.RunSuccess, time.Since(start))
	s.logger.Info("Recurring orders materialized",
		"orderDate", date,
		"weekday", weekday,
		"templates", len(templates),
		"created", result.Created,
		"skipped", result.Skipped)

	return result, nil
}

// MaterializeTemplate creates the order for one template and date. The order,
// its lines, the outbox event and the template marker commit together. When
// the order already exists only the marker is updated.
func (s *Service) MaterializeTemplate(ctx context.Context, tmpl *models.RecurringOrder, date models.Date) (Outcome, error) {
	order := models.NewMaterializedOrder(tmpl, date)
	var itemCount int

	err := s.store.InTx(ctx, func(tx Tx) error {
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}

		templateItems, err := tx.ListTemplateItems(ctx, tmpl.ID)
		if err != nil {
			return err
		}

		items := make([]*models.OrderItem, 0, len(templateItems))
		for _, it := range templateItems {
			items = append(items, it.ToOrderItem(order.ID))
		}

		if err := tx.CreateOrderItems(ctx, items); err != nil {
			return err
		}

		event, err := models.NewOrderMaterializedEvent(order, len(items))
		if err != nil {
			return fmt.Errorf("build order_materialized event: %w", err)
		}
		if err := tx.AppendEvent(ctx, event); err != nil {
			return err
		}

		itemCount = len(items)
		return tx.MarkMaterialized(ctx, tmpl.ID, date)
	})

	switch {
	case err == nil:
		s.metrics.IncOutcome(metrics.OutcomeCreated)
		s.logger.Info("Order materialized",
			"orderID", order.ID,
			"recurringOrderID", tmpl.ID,
			"customerID", tmpl.CustomerID,
			"orderDate", date,
			"items", itemCount)
		return Created, nil

	case errors.Is(err, repository.ErrRecurringOrderExists):
		if err := s.store.MarkMaterialized(ctx, tmpl.ID, date); err != nil {
			return 0, &StoreFailure{RecurringOrderID: tmpl.ID, Date: date, Err: err}
		}
		s.metrics.IncOutcome(metrics.OutcomeSkipped)
		s.logger.Debug("Order already materialized",
			"recurringOrderID", tmpl.ID,
			"orderDate", date)
		return Skipped, nil

	default:
		return 0, &StoreFailure{RecurringOrderID: tmpl.ID, Date: date, Err: err}
	}
}
