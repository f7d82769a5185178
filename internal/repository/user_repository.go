package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vaidashi/delivery-orders/internal/database"
	"github.com/vaidashi/delivery-orders/internal/models"
	"github.com/vaidashi/delivery-orders/pkg/logger"
)

// UserRepository handles database operations for staff accounts
type UserRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *database.Database, logger logger.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

// Create inserts a user
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, full_name, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.DB.ExecContext(ctx, query, u.ID, u.Username, u.Email, u.PasswordHash, u.FullName, u.Role, u.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return fmt.Errorf("%w: user %s", ErrDuplicate, u.Username)
		}
		return dbError(r.logger, "Failed to create user", err, "username", u.Username)
	}

	return nil
}

// GetByLogin finds a user by username or e-mail
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	var u models.User

	err := r.db.DB.GetContext(ctx, &u, `
		SELECT id, username, email, password_hash, full_name, role, created_at
		FROM users
		WHERE username = $1 OR email = $1
		LIMIT 1
	`, login)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dbError(r.logger, "Failed to get user", err, "login", login)
	}

	return &u, nil
}

// Count returns the number of users
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var n int64

	if err := r.db.DB.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, dbError(r.logger, "Failed to count users", err)
	}

	return n, nil
}
