package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vaidashi/delivery-orders/internal/database"
	"github.com/vaidashi/delivery-orders/internal/models"
	"github.com/vaidashi/delivery-orders/pkg/logger"
)

// CustomerFilter narrows customer listings
type CustomerFilter struct {
	Query           string // matches name or code, case-insensitive
	IncludeInactive bool
	Limit           int
}

// CustomerRepository handles database operations for customers
type CustomerRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewCustomerRepository creates a new CustomerRepository
func NewCustomerRepository(db *database.Database, logger logger.Logger) *CustomerRepository {
	return &CustomerRepository{db: db, logger: logger}
}

const customerColumns = `id, code, name, phone, is_active, created_at`

// Create inserts a customer and sets its ID
func (r *CustomerRepository) Create(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO customers (code, name, phone, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.db.DB.QueryRowxContext(ctx, query, c.Code, c.Name, c.Phone, c.IsActive, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return fmt.Errorf("%w: customer code %v", ErrDuplicate, deref(c.Code))
		}
		return dbError(r.logger, "Failed to create customer", err, "name", c.Name)
	}

	return nil
}

// GetByID retrieves a customer by its ID
func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*models.Customer, error) {
	var c models.Customer

	err := r.db.DB.GetContext(ctx, &c, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dbError(r.logger, "Failed to get customer by ID", err, "customerID", id)
	}

	return &c, nil
}

// Update overwrites the editable customer fields
func (r *CustomerRepository) Update(ctx context.Context, c *models.Customer) error {
	query := `UPDATE customers SET code = $1, name = $2, phone = $3, is_active = $4 WHERE id = $5`

	res, err := r.db.DB.ExecContext(ctx, query, c.Code, c.Name, c.Phone, c.IsActive, c.ID)
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return fmt.Errorf("%w: customer code %v", ErrDuplicate, deref(c.Code))
		}
		return dbError(r.logger, "Failed to update customer", err, "customerID", c.ID)
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

// SetActive toggles the active flag
func (r *CustomerRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.DB.ExecContext(ctx, `UPDATE customers SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return dbError(r.logger, "Failed to toggle customer", err, "customerID", id)
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

// List returns customers ordered by name
func (r *CustomerRepository) List(ctx context.Context, f CustomerFilter) ([]*models.Customer, error) {
	var (
		conds []string
		args  []interface{}
	)

	if !f.IncludeInactive {
		conds = append(conds, "is_active = TRUE")
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR code ILIKE $%d)", len(args), len(args)))
	}

	query := `SELECT ` + customerColumns + ` FROM customers`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY name ASC, id ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	customers := []*models.Customer{}
	if err := r.db.DB.SelectContext(ctx, &customers, query, args...); err != nil {
		return nil, dbError(r.logger, "Failed to list customers", err)
	}

	return customers, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
