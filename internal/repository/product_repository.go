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

// ProductFilter narrows product listings
type ProductFilter struct {
	Query           string // matches cod or description, case-insensitive
	IncludeInactive bool
	Limit           int
}

// ProductRepository handles database operations for products
type ProductRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewProductRepository creates a new ProductRepository
func NewProductRepository(db *database.Database, logger logger.Logger) *ProductRepository {
	return &ProductRepository{db: db, logger: logger}
}

const productColumns = `id, cod, description, is_active, created_at`

// Create inserts a product and sets its ID
func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (cod, description, is_active, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.db.DB.QueryRowxContext(ctx, query, p.Cod, p.Description, p.IsActive, p.CreatedAt).Scan(&p.ID)
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return fmt.Errorf("%w: product cod %v", ErrDuplicate, deref(p.Cod))
		}
		return dbError(r.logger, "Failed to create product", err, "description", p.Description)
	}

	return nil
}

// GetByID retrieves a product by its ID
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product

	err := r.db.DB.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dbError(r.logger, "Failed to get product by ID", err, "productID", id)
	}

	return &p, nil
}

// Update overwrites the editable product fields
func (r *ProductRepository) Update(ctx context.Context, p *models.Product) error {
	res, err := r.db.DB.ExecContext(ctx,
		`UPDATE products SET cod = $1, description = $2, is_active = $3 WHERE id = $4`,
		p.Cod, p.Description, p.IsActive, p.ID)
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return fmt.Errorf("%w: product cod %v", ErrDuplicate, deref(p.Cod))
		}
		return dbError(r.logger, "Failed to update product", err, "productID", p.ID)
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
func (r *ProductRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.DB.ExecContext(ctx, `UPDATE products SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return dbError(r.logger, "Failed to toggle product", err, "productID", id)
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

// List returns products ordered by cod, then description
func (r *ProductRepository) List(ctx context.Context, f ProductFilter) ([]*models.Product, error) {
	var (
		conds []string
		args  []interface{}
	)

	if !f.IncludeInactive {
		conds = append(conds, "is_active = TRUE")
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		conds = append(conds, fmt.Sprintf("(cod ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY cod ASC NULLS LAST, description ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	products := []*models.Product{}
	if err := r.db.DB.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, dbError(r.logger, "Failed to list products", err)
	}

	return products, nil
}

// FindActiveByCod returns active products whose cod equals q (exact) or starts
// with q (prefix), case-insensitive.
func (r *ProductRepository) FindActiveByCod(ctx context.Context, q string, prefix bool, limit int) ([]*models.Product, error) {
	cond := `lower(cod) = lower($1)`
	arg := q
	if prefix {
		cond = `cod ILIKE $1`
		arg = escapeLike(q) + "%"
	}

	query := `SELECT ` + productColumns + ` FROM products
		WHERE is_active = TRUE AND ` + cond + `
		ORDER BY cod ASC LIMIT $2`

	products := []*models.Product{}
	if err := r.db.DB.SelectContext(ctx, &products, query, arg, limit); err != nil {
		return nil, dbError(r.logger, "Failed to search products by cod", err, "query", q)
	}

	return products, nil
}

// FindActiveByDescription returns active products whose description contains q
func (r *ProductRepository) FindActiveByDescription(ctx context.Context, q string, limit int) ([]*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products
		WHERE is_active = TRUE AND description ILIKE $1
		ORDER BY description ASC LIMIT $2`

	products := []*models.Product{}
	if err := r.db.DB.SelectContext(ctx, &products, query, "%"+escapeLike(q)+"%", limit); err != nil {
		return nil, dbError(r.logger, "Failed to search products by description", err, "query", q)
	}

	return products, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
