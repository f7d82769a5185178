package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/vaidashi/delivery-orders/internal/database"
	"github.com/vaidashi/delivery-orders/internal/models"
	"github.com/vaidashi/delivery-orders/internal/repository"
	apperrors "github.com/vaidashi/delivery-orders/pkg/errors"
	"github.com/vaidashi/delivery-orders/pkg/logger"
)

// ItemInput is a line to add to, or replace on, an order
type ItemInput struct {
	ProductID           int64
	UnitType            models.UnitType
	QtyUnits            decimal.Decimal
	DescriptionOverride *string
}

func (in ItemInput) validate() error {
	if !in.UnitType.IsValid() {
		return apperrors.NewInvalidInputError("unit_type non valido (KG, CS, PZ)")
	}
	if !in.QtyUnits.IsPositive() {
		return apperrors.NewInvalidInputError("qty_units deve essere maggiore di zero")
	}
	return nil
}

// OrderService handles order-related operations
type OrderService struct {
	db         *database.Database
	orderRepo  *repository.OrderRepository
	itemRepo   *repository.OrderItemRepository
	outboxRepo *repository.OutboxRepository
	logger     logger.Logger
}

// NewOrderService creates a new OrderService
func NewOrderService(
	db *database.Database,
	orderRepo *repository.OrderRepository,
	itemRepo *repository.OrderItemRepository,
	outboxRepo *repository.OutboxRepository,
	logger logger.Logger,
) *OrderService {
	return &OrderService{
		db:         db,
		orderRepo:  orderRepo,
		itemRepo:   itemRepo,
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// CreateOrder creates an open manual order and its order_created event
func (s *OrderService) CreateOrder(ctx context.Context, customerID int64, date models.Date) (*models.Order, error) {
	if customerID <= 0 {
		return nil, apperrors.NewInvalidInputError(MsgMissingFields)
	}

	order := models.NewOrder(customerID, date)

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.orderRepo.CreateInTx(ctx, tx, order); err != nil {
			return err
		}

		outboxMsg, err := models.NewOrderCreatedEvent(order)
		if err != nil {
			return fmt.Errorf("failed to create outbox message: %w", err)
		}
		return s.outboxRepo.CreateInTx(ctx, tx, outboxMsg)
	})
	if err != nil {
		return nil, translate(err, "cliente")
	}

	s.logger.Info("Order created", "orderID", order.ID, "customerID", customerID, "orderDate", date)
	return order, nil
}

// GetOrder retrieves an order with its lines
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "ordine")
	}

	order.Items, err = s.itemRepo.ListByOrder(ctx, s.db.DB, id)
	if err != nil {
		return nil, err
	}

	return order, nil
}

// ListOrders returns the non-empty orders dated within [from, to]
func (s *OrderService) ListOrders(ctx context.Context, from, to models.Date) ([]*models.Order, error) {
	if to.Before(from.Time) {
		return nil, apperrors.NewInvalidInputError(MsgInvalidDates)
	}
	return s.orderRepo.ListByDateRange(ctx, repository.DateRange{From: from, To: to})
}

// PickList sums the lines to prepare for the orders dated within [from, to]
func (s *OrderService) PickList(ctx context.Context, from, to models.Date) ([]*models.PickListLine, error) {
	if to.Before(from.Time) {
		return nil, apperrors.NewInvalidInputError(MsgInvalidDates)
	}
	return s.itemRepo.PickList(ctx, repository.DateRange{From: from, To: to})
}

// UpdateOrderStatus changes the status and appends an order_status_changed
// event in the same transaction. Setting the current status is a no-op.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, apperrors.NewInvalidInputError("status non valido")
	}

	var order *models.Order
	var oldStatus models.OrderStatus

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		order, err = s.orderRepo.GetForUpdateInTx(ctx, tx, id)
		if err != nil {
			return err
		}

		oldStatus = order.Status
		if oldStatus == status {
			return nil
		}

		if err := s.orderRepo.UpdateStatusInTx(ctx, tx, id, status); err != nil {
			return err
		}
		order.Status = status

		outboxMsg, err := models.NewOrderStatusChangedEvent(order, oldStatus)
		if err != nil {
			return fmt.Errorf("failed to create outbox message: %w", err)
		}
		return s.outboxRepo.CreateInTx(ctx, tx, outboxMsg)
	})
	if err != nil {
		return nil, translate(err, "ordine")
	}

	if oldStatus != status {
		s.logger.Info("Order status updated",
			"orderID", id,
			"oldStatus", oldStatus,
			"newStatus", status)
	}

	return order, nil
}

// DeleteOrder removes an order and its lines, lines first, in one transaction
func (s *OrderService) DeleteOrder(ctx context.Context, id int64) (*models.OrderDeletion, error) {
	res := &models.OrderDeletion{}

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.orderRepo.GetForUpdateInTx(ctx, tx, id); err != nil {
			return err
		}

		var err error
		if res.Items, err = s.itemRepo.DeleteByOrderInTx(ctx, tx, id); err != nil {
			return err
		}
		if res.Orders, err = s.orderRepo.DeleteInTx(ctx, tx, id); err != nil {
			return err
		}

		outboxMsg, err := models.NewOrderDeletedEvent(id, res.Items)
		if err != nil {
			return fmt.Errorf("failed to create outbox message: %w", err)
		}
		return s.outboxRepo.CreateInTx(ctx, tx, outboxMsg)
	})
	if err != nil {
		return nil, translate(err, "ordine")
	}

	s.logger.Info("Order deleted", "orderID", id, "items", res.Items)
	return res, nil
}

// AddItem appends a line with no weighed quantity to an unprinted order
func (s *OrderService) AddItem(ctx context.Context, orderID int64, in ItemInput) (*models.OrderItem, error) {
	if in.ProductID <= 0 {
		return nil, apperrors.NewInvalidInputError(MsgMissingFields)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	item := models.NewOrderItem(orderID, in.ProductID, in.UnitType, in.QtyUnits, models.NullableString(in.DescriptionOverride))

	err := s.withUnlockedOrder(ctx, orderID, func(tx *sqlx.Tx) error {
		return s.itemRepo.CreateInTx(ctx, tx, item)
	})
	if err != nil {
		return nil, translate(err, "prodotto")
	}

	return item, nil
}

// UpdateItem replaces the unit, quantity and description override of a line
func (s *OrderService) UpdateItem(ctx context.Context, orderID, itemID int64, in ItemInput) (*models.OrderItem, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var item *models.OrderItem

	err := s.withUnlockedOrder(ctx, orderID, func(tx *sqlx.Tx) error {
		var err error
		item, err = s.itemRepo.GetInTx(ctx, tx, orderID, itemID)
		if err != nil {
			return err
		}

		item.UnitType = in.UnitType
		item.QtyUnits = in.QtyUnits
		item.DescriptionOverride = models.NullableString(in.DescriptionOverride)

		return s.itemRepo.UpdateInTx(ctx, tx, item)
	})
	if err != nil {
		return nil, translate(err, "riga")
	}

	return item, nil
}

// DeleteItem removes one line of an unprinted order
func (s *OrderService) DeleteItem(ctx context.Context, orderID, itemID int64) error {
	err := s.withUnlockedOrder(ctx, orderID, func(tx *sqlx.Tx) error {
		return s.itemRepo.DeleteInTx(ctx, tx, orderID, itemID)
	})
	return translate(err, "riga")
}

// withUnlockedOrder runs fn in a transaction holding the order row lock,
// refusing printed orders.
func (s *OrderService) withUnlockedOrder(ctx context.Context, orderID int64, fn func(tx *sqlx.Tx) error) error {
	return s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		order, err := s.orderRepo.GetForUpdateInTx(ctx, tx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewNotFoundError("ordine non trovato")
			}
			return err
		}
		if order.IsLocked() {
			return ErrOrderLocked
		}
		return fn(tx)
	})
}
