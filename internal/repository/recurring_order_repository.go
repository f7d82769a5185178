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

// RecurringOrderRepository handles database operations for recurring order
// templates and their lines
type RecurringOrderRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewRecurringOrderRepository creates a new RecurringOrderRepository
func NewRecurringOrderRepository(db *database.Database, logger logger.Logger) *RecurringOrderRepository {
	return &RecurringOrderRepository{db: db, logger: logger}
}

const recurringOrderSelect = `
	SELECT r.id, r.customer_id, r.is_active, r.days_of_week, r.last_materialized_at,
	       r.created_at, c.name AS customer_name
	FROM recurring_orders r
	JOIN customers c ON c.id = r.customer_id
`

const recurringItemSelect = `
	SELECT i.id, i.recurring_order_id, i.product_id, i.unit_type, i.qty_units,
	       i.description_override, i.position, i.created_at,
	       p.cod AS product_cod, p.description AS product_description
	FROM recurring_order_items i
	JOIN products p ON p.id = i.product_id
`

// Create inserts a template and sets its ID
func (r *RecurringOrderRepository) Create(ctx context.Context, ro *models.RecurringOrder) error {
	query := `
		INSERT INTO recurring_orders (customer_id, is_active, days_of_week, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.db.DB.QueryRowxContext(ctx, query, ro.CustomerID, ro.IsActive, ro.DaysOfWeek, ro.CreatedAt).Scan(&ro.ID)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: %w", ErrInvalidReference, err)
		}
		return dbError(r.logger, "Failed to create recurring order", err, "customerID", ro.CustomerID)
	}

	return nil
}

// GetByID retrieves a template by its ID
func (r *RecurringOrderRepository) GetByID(ctx context.Context, id int64) (*models.RecurringOrder, error) {
	var ro models.RecurringOrder

	if err := r.db.DB.GetContext(ctx, &ro, recurringOrderSelect+` WHERE r.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dbError(r.logger, "Failed to get recurring order", err, "recurringOrderID", id)
	}

	return &ro, nil
}

// List returns every template, newest first
func (r *RecurringOrderRepository) List(ctx context.Context) ([]*models.RecurringOrder, error) {
	templates := []*models.RecurringOrder{}

	if err := r.db.DB.SelectContext(ctx, &templates, recurringOrderSelect+` ORDER BY r.created_at DESC, r.id DESC`); err != nil {
		return nil, dbError(r.logger, "Failed to list recurring orders", err)
	}

	return templates, nil
}

// ListActiveByWeekday returns active templates whose weekday set contains
// the ISO weekday, by id.
func (r *RecurringOrderRepository) ListActiveByWeekday(ctx context.Context, weekday int) ([]*models.RecurringOrder, error) {
	query := recurringOrderSelect + `
		WHERE r.is_active = TRUE
		  AND r.days_of_week @> ARRAY[$1::integer]
		ORDER BY r.id ASC
	`

	templates := []*models.RecurringOrder{}
	if err := r.db.DB.SelectContext(ctx, &templates, query, weekday); err != nil {
		return nil, dbError(r.logger, "Failed to select recurring orders for weekday", err, "weekday", weekday)
	}

	return templates, nil
}

// UpdateSchedule overwrites the active flag and weekday set
func (r *RecurringOrderRepository) UpdateSchedule(ctx context.Context, ro *models.RecurringOrder) error {
	res, err := r.db.DB.ExecContext(ctx,
		`UPDATE recurring_orders SET is_active = $1, days_of_week = $2 WHERE id = $3`,
		ro.IsActive, ro.DaysOfWeek, ro.ID)
	if err != nil {
		return dbError(r.logger, "Failed to update recurring order", err, "recurringOrderID", ro.ID)
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

// Delete removes a template; its lines go with it
func (r *RecurringOrderRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.DB.ExecContext(ctx, `DELETE FROM recurring_orders WHERE id = $1`, id)
	if err != nil {
		return dbError(r.logger, "Failed to delete recurring order", err, "recurringOrderID", id)
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

// MarkMaterialized records the last date a run handled the template
func (r *RecurringOrderRepository) MarkMaterialized(ctx context.Context, tx Queryer, id int64, date models.Date) error {
	_, err := tx.ExecContext(ctx, `UPDATE recurring_orders SET last_materialized_at = $1 WHERE id = $2`, date, id)
	if err != nil {
		return dbError(r.logger, "Failed to update last materialized date", err, "recurringOrderID", id, "date", date)
	}

	return nil
}

// ListItems returns the lines of a template in position order
func (r *RecurringOrderRepository) ListItems(ctx context.Context, q Queryer, recurringOrderID int64) ([]*models.RecurringOrderItem, error) {
	items := []*models.RecurringOrderItem{}

	query := recurringItemSelect + ` WHERE i.recurring_order_id = $1 ORDER BY i.position ASC, i.id ASC`
	if err := sqlx.SelectContext(ctx, q, &items, query, recurringOrderID); err != nil {
		return nil, dbError(r.logger, "Failed to list recurring order items", err, "recurringOrderID", recurringOrderID)
	}

	return items, nil
}

// AddItem appends a line after the last one and sets its ID and Position.
// Concurrent adds to one template are serialized on the template row.
func (r *RecurringOrderRepository) AddItem(ctx context.Context, item *models.RecurringOrderItem) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var locked int64
		err := tx.GetContext(ctx, &locked, `SELECT id FROM recurring_orders WHERE id = $1 FOR UPDATE`, item.RecurringOrderID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return dbError(r.logger, "Failed to lock recurring order", err, "recurringOrderID", item.RecurringOrderID)
		}

		query := `
			INSERT INTO recurring_order_items
				(recurring_order_id, product_id, unit_type, qty_units, description_override, position, created_at)
			SELECT $1, $2, $3, $4, $5,
			       (SELECT COALESCE(MAX(position), 0) FROM recurring_order_items WHERE recurring_order_id = $1) + 1,
			       $6
			RETURNING id, position
		`

		err = tx.QueryRowxContext(
			ctx,
			query,
			item.RecurringOrderID,
			item.ProductID,
			item.UnitType,
			item.QtyUnits,
			item.DescriptionOverride,
			item.CreatedAt,
		).Scan(&item.ID, &item.Position)

		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return fmt.Errorf("%w: %w", ErrInvalidReference, err)
			}
			return dbError(r.logger, "Failed to add recurring order item", err, "recurringOrderID", item.RecurringOrderID)
		}

		return nil
	})
}

// DeleteItem removes one line of a template
func (r *RecurringOrderRepository) DeleteItem(ctx context.Context, recurringOrderID, itemID int64) error {
	res, err := r.db.DB.ExecContext(ctx,
		`DELETE FROM recurring_order_items WHERE recurring_order_id = $1 AND id = $2`,
		recurringOrderID, itemID)
	if err != nil {
		return dbError(r.logger, "Failed to delete recurring order item", err, "recurringOrderID", recurringOrderID, "itemID", itemID)
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
