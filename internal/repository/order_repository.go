package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vaidashi/delivery-orders/internal/database"
	"github.com/vaidashi/delivery-orders/internal/models"
	"github.com/vaidashi/delivery-orders/pkg/logger"
)

// OrderRepository handles database operations for orders
type OrderRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(db *database.Database, logger logger.Logger) *OrderRepository {
	return &OrderRepository{
		db:     db,
		logger: logger,
	}
}

const orderSelect = `
	SELECT o.id, o.customer_id, o.order_date, o.status, o.is_recurring,
	       o.recurring_order_id, o.created_at, c.name AS customer_name
	FROM orders o
	JOIN customers c ON c.id = o.customer_id
`

// CreateInTx inserts an order and sets its ID. A clash on the one-order-per-
// template-and-date constraint is reported as ErrRecurringOrderExists and is
// not logged as a failure.
func (r *OrderRepository) CreateInTx(ctx context.Context, tx Queryer, order *models.Order) error {
	query := `
		INSERT INTO orders (customer_id, order_date, status, is_recurring, recurring_order_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := tx.QueryRowxContext(
		ctx,
		query,
		order.CustomerID,
		order.OrderDate,
		order.Status,
		order.IsRecurring,
		order.RecurringOrderID,
		order.CreatedAt,
	).Scan(&order.ID)

	if err != nil {
		switch {
		case database.IsUniqueViolation(err, RecurringOrderDateConstraint):
			r.logger.Debug("Order already exists for template and date",
				"recurringOrderID", order.RecurringOrderID,
				"orderDate", order.OrderDate)
			return ErrRecurringOrderExists
		case database.IsForeignKeyViolation(err):
			return fmt.Errorf("%w: %w", ErrInvalidReference, err)
		}
		return dbError(r.logger, "Failed to create order", err, "customerID", order.CustomerID)
	}

	return nil
}

// GetByID retrieves an order by its ID
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	return r.get(ctx, r.db.DB, orderSelect+` WHERE o.id = $1`, id)
}

// GetForUpdateInTx retrieves an order and locks its row until the transaction ends
func (r *OrderRepository) GetForUpdateInTx(ctx context.Context, tx Queryer, id int64) (*models.Order, error) {
	return r.get(ctx, tx, orderSelect+` WHERE o.id = $1 FOR UPDATE OF o`, id)
}

func (r *OrderRepository) get(ctx context.Context, q Queryer, query string, id int64) (*models.Order, error) {
	var order models.Order

	if err := sqlx.GetContext(ctx, q, &order, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dbError(r.logger, "Failed to get order by ID", err, "orderID", id)
	}

	return &order, nil
}

// ListByDateRange returns orders in the range that have at least one line
// with a positive quantity, by date then id.
func (r *OrderRepository) ListByDateRange(ctx context.Context, rng DateRange) ([]*models.Order, error) {
	query := orderSelect + `
		WHERE o.order_date BETWEEN $1 AND $2
		  AND EXISTS (
		      SELECT 1 FROM order_items i
		      WHERE i.order_id = o.id AND i.qty_units > 0
		  )
		ORDER BY o.order_date ASC, o.id ASC
	`

	orders := []*models.Order{}
	if err := r.db.DB.SelectContext(ctx, &orders, query, rng.From, rng.To); err != nil {
		return nil, dbError(r.logger, "Failed to list orders", err, "from", rng.From, "to", rng.To)
	}

	return orders, nil
}

// UpdateStatusInTx changes the status of an order
func (r *OrderRepository) UpdateStatusInTx(ctx context.Context, tx Queryer, id int64, status models.OrderStatus) error {
	res, err := tx.ExecContext(ctx, `UPDATE orders SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return dbError(r.logger, "Failed to update order status", err, "orderID", id)
	}

	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteInTx deletes one order row. Its items must be gone already.
func (r *OrderRepository) DeleteInTx(ctx context.Context, tx Queryer, id int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return 0, dbError(r.logger, "Failed to delete order", err, "orderID", id)
	}

	return rowsAffected(res)
}

// CountInRange counts orders in the range, or all orders when rng is nil
func (r *OrderRepository) CountInRange(ctx context.Context, rng *DateRange) (int64, error) {
	cond, args := rng.where("order_date", 0)

	var n int64
	if err := r.db.DB.GetContext(ctx, &n, `SELECT COUNT(*) FROM orders WHERE `+cond, args...); err != nil {
		return 0, dbError(r.logger, "Failed to count orders", err)
	}

	return n, nil
}

// DeleteInRangeInTx deletes orders in the range, or all orders when rng is nil
func (r *OrderRepository) DeleteInRangeInTx(ctx context.Context, tx Queryer, rng *DateRange) (int64, error) {
	cond, args := rng.where("order_date", 0)

	res, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE `+cond, args...)
	if err != nil {
		return 0, dbError(r.logger, "Failed to delete orders", err)
	}

	return rowsAffected(res)
}
