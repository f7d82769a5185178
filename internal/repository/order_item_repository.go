package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/vaidashi/delivery-orders/internal/database"
	"github.com/vaidashi/delivery-orders/internal/models"
	"github.com/vaidashi/delivery-orders/pkg/logger"
)

// OrderItemRepository handles database operations for order lines
type OrderItemRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewOrderItemRepository creates a new OrderItemRepository
func NewOrderItemRepository(db *database.Database, logger logger.Logger) *OrderItemRepository {
	return &OrderItemRepository{db: db, logger: logger}
}

const orderItemSelect = `
	SELECT i.id, i.order_id, i.product_id, i.unit_type, i.qty_units, i.qty_kg,
	       i.description_override, i.created_at,
	       p.cod AS product_cod, p.description AS product_description
	FROM order_items i
	JOIN products p ON p.id = i.product_id
`

// CreateInTx inserts a line and sets its ID
func (r *OrderItemRepository) CreateInTx(ctx context.Context, tx Queryer, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, unit_type, qty_units, qty_kg, description_override, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := tx.QueryRowxContext(
		ctx,
		query,
		item.OrderID,
		item.ProductID,
		item.UnitType,
		item.QtyUnits,
		item.QtyKg,
		item.DescriptionOverride,
		item.CreatedAt,
	).Scan(&item.ID)

	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: %w", ErrInvalidReference, err)
		}
		return dbError(r.logger, "Failed to create order item", err, "orderID", item.OrderID, "productID", item.ProductID)
	}

	return nil
}

// CreateBatchInTx inserts lines with one multi-row statement and sets their
// IDs in slice order
func (r *OrderItemRepository) CreateBatchInTx(ctx context.Context, tx Queryer, items []*models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	query, args, err := sqlx.Named(`
		INSERT INTO order_items (order_id, product_id, unit_type, qty_units, qty_kg, description_override, created_at)
		VALUES (:order_id, :product_id, :unit_type, :qty_units, :qty_kg, :description_override, :created_at)
		RETURNING id
	`, items)
	if err != nil {
		return fmt.Errorf("bind order items: %w", err)
	}

	rows, err := tx.QueryxContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return r.batchError(err, items[0].OrderID)
	}
	defer rows.Close()

	ids := make([]int64, 0, len(items))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return r.batchError(err, items[0].OrderID)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return r.batchError(err, items[0].OrderID)
	}
	if len(ids) != len(items) {
		return fmt.Errorf("%w: inserted %d of %d order items", ErrDatabase, len(ids), len(items))
	}

	// the sequence hands out ids in VALUES order
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i, item := range items {
		item.ID = ids[i]
	}

	return nil
}

func (r *OrderItemRepository) batchError(err error, orderID int64) error {
	if database.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: %w", ErrInvalidReference, err)
	}
	return dbError(r.logger, "Failed to create order items", err, "orderID", orderID)
}

// ListByOrder returns the lines of an order in insertion order
func (r *OrderItemRepository) ListByOrder(ctx context.Context, q Queryer, orderID int64) ([]*models.OrderItem, error) {
	items := []*models.OrderItem{}

	if err := sqlx.SelectContext(ctx, q, &items, orderItemSelect+` WHERE i.order_id = $1 ORDER BY i.id ASC`, orderID); err != nil {
		return nil, dbError(r.logger, "Failed to list order items", err, "orderID", orderID)
	}

	return items, nil
}

// GetInTx returns one line of an order
func (r *OrderItemRepository) GetInTx(ctx context.Context, tx Queryer, orderID, itemID int64) (*models.OrderItem, error) {
	var item models.OrderItem

	err := sqlx.GetContext(ctx, tx, &item, orderItemSelect+` WHERE i.order_id = $1 AND i.id = $2`, orderID, itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dbError(r.logger, "Failed to get order item", err, "orderID", orderID, "itemID", itemID)
	}

	return &item, nil
}

// UpdateInTx overwrites the editable fields of a line
func (r *OrderItemRepository) UpdateInTx(ctx context.Context, tx Queryer, item *models.OrderItem) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE order_items
		SET unit_type = $1, qty_units = $2, qty_kg = $3, description_override = $4
		WHERE id = $5 AND order_id = $6
	`, item.UnitType, item.QtyUnits, item.QtyKg, item.DescriptionOverride, item.ID, item.OrderID)
	if err != nil {
		return dbError(r.logger, "Failed to update order item", err, "itemID", item.ID)
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

// DeleteInTx removes one line of an order
func (r *OrderItemRepository) DeleteInTx(ctx context.Context, tx Queryer, orderID, itemID int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1 AND id = $2`, orderID, itemID)
	if err != nil {
		return dbError(r.logger, "Failed to delete order item", err, "orderID", orderID, "itemID", itemID)
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

// DeleteByOrderInTx removes every line of an order and reports how many went
func (r *OrderItemRepository) DeleteByOrderInTx(ctx context.Context, tx Queryer, orderID int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return 0, dbError(r.logger, "Failed to delete order items", err, "orderID", orderID)
	}

	return rowsAffected(res)
}

// CountInRange counts lines of orders in the range, or all lines when rng is nil
func (r *OrderItemRepository) CountInRange(ctx context.Context, rng *DateRange) (int64, error) {
	cond, args := rng.where("o.order_date", 0)

	var n int64
	err := r.db.DB.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM order_items i
		JOIN orders o ON o.id = i.order_id
		WHERE `+cond, args...)
	if err != nil {
		return 0, dbError(r.logger, "Failed to count order items", err)
	}

	return n, nil
}

// DeleteInRangeInTx deletes lines of orders in the range, or all lines when rng is nil
func (r *OrderItemRepository) DeleteInRangeInTx(ctx context.Context, tx Queryer, rng *DateRange) (int64, error) {
	cond, args := rng.where("o.order_date", 0)

	res, err := tx.ExecContext(ctx, `
		DELETE FROM order_items i
		USING orders o
		WHERE o.id = i.order_id AND `+cond, args...)
	if err != nil {
		return 0, dbError(r.logger, "Failed to delete order items", err)
	}

	return rowsAffected(res)
}

// PickList sums the lines of orders in the range per product and unit,
// skipping cancelled orders, ordered by product cod then description.
func (r *OrderItemRepository) PickList(ctx context.Context, rng DateRange) ([]*models.PickListLine, error) {
	query := `
		SELECT p.id AS product_id, p.cod, p.description,
		       COALESCE(SUM(i.qty_units) FILTER (WHERE i.unit_type = 'KG'), 0) AS total_kg,
		       COALESCE(SUM(i.qty_units) FILTER (WHERE i.unit_type = 'CS'), 0) AS total_cs,
		       COALESCE(SUM(i.qty_units) FILTER (WHERE i.unit_type = 'PZ'), 0) AS total_pz,
		       BOOL_OR(i.description_override IS NOT NULL AND i.description_override <> '') AS has_override
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		JOIN products p ON p.id = i.product_id
		WHERE o.order_date BETWEEN $1 AND $2
		  AND o.status <> $3
		  AND i.qty_units > 0
		GROUP BY p.id, p.cod, p.description
		ORDER BY p.cod ASC NULLS LAST, p.description ASC
	`

	lines := []*models.PickListLine{}
	if err := r.db.DB.SelectContext(ctx, &lines, query, rng.From, rng.To, models.OrderStatusCancelled); err != nil {
		return nil, dbError(r.logger, "Failed to build pick list", err, "from", rng.From, "to", rng.To)
	}

	return lines, nil
}
