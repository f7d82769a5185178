package repository

import (
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vaidashi/delivery-orders/internal/models"
	"github.com/vaidashi/delivery-orders/pkg/logger"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDatabase  = errors.New("database error")
	ErrDuplicate = errors.New("duplicate record")
	// ErrInvalidReference is returned when a foreign key points nowhere
	ErrInvalidReference = errors.New("referenced record does not exist")
	// ErrRecurringOrderExists means the (template, date) pair already has an order
	ErrRecurringOrderExists = errors.New("order already materialized for template and date")
)

// RecurringOrderDateConstraint guards one order per template and date
const RecurringOrderDateConstraint = "uq_orders_recurring_order_date"

// Queryer is satisfied by both *sqlx.DB and *sqlx.Tx, so the same statement
// can run standalone or inside a caller's transaction.
type Queryer interface {
	sqlx.ExtContext
}

// DateRange bounds a query by order date, both ends inclusive. A nil range
// matches every order.
type DateRange struct {
	From models.Date
	To   models.Date
}

// where returns the SQL predicate on column for the range, and its args
// numbered from argOffset+1.
func (r *DateRange) where(column string, argOffset int) (string, []interface{}) {
	if r == nil {
		return "TRUE", nil
	}
	return fmt.Sprintf("%s BETWEEN $%d AND $%d", column, argOffset+1, argOffset+2), []interface{}{r.From, r.To}
}

func dbError(log logger.Logger, msg string, err error, keyvals ...interface{}) error {
	log.Error(msg, append([]interface{}{"error", err}, keyvals...)...)
	return fmt.Errorf("%w: %w", ErrDatabase, err)
}

func rowsAffected(res interface{ RowsAffected() (int64, error) }) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDatabase, err)
	}
	return n, nil
}
