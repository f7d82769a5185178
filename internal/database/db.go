package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/vaidashi/delivery-orders/internal/config"
	"github.com/vaidashi/delivery-orders/pkg/logger"
	"github.com/vaidashi/delivery-orders/pkg/retry"
)

// Database represents a database connection
type Database struct {
	DB     *sqlx.DB
	logger logger.Logger
}

// New connects using the process configuration, retrying while Postgres comes up
func New(ctx context.Context, cfg *config.Config, logger logger.Logger) (*Database, error) {
	var db *sqlx.DB

	err := retry.Retry(ctx, func(ctx context.Context) error {
		conn, err := sqlx.ConnectContext(ctx, "postgres", cfg.GetDBConnString())
		if err != nil {
			return err
		}
		db = conn
		return nil
	}, &retry.RetryConfig{
		MaxAttempts:     cfg.DB.ConnectAttempts,
		BackoffStrategy: retry.NewDefaultExponentialBackoff(),
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	logger.Info("Connected to database", "host", cfg.DB.Host, "database", cfg.DB.Name)

	return &Database{DB: db, logger: logger}, nil
}

// Open connects to an explicit DSN with default pool settings
func Open(ctx context.Context, dsn string, logger logger.Logger) (*Database, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Database{DB: db, logger: logger}, nil
}

// Ping checks the database connection
func (d *Database) Ping(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.DB.Close()
}

// WithTx runs fn inside a transaction. The transaction is rolled back when
// fn returns an error or panics, and committed otherwise.
func (d *Database) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := d.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			d.logger.Error("Failed to rollback transaction", "error", rbErr)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		d.logger.Error("Failed to commit transaction", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
