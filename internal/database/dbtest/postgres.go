// Package dbtest starts a throwaway migrated Postgres for store-level tests.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/vaidashi/delivery-orders/internal/database"
	"github.com/vaidashi/delivery-orders/pkg/logger"
)

const image = "postgres:16-alpine"

// SetupTestPostgres returns a migrated database backed by a container that
// is removed when the test ends. It skips under -short or without Docker.
func SetupTestPostgres(t *testing.T) *database.Database {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres-backed test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := postgres.Run(ctx, image,
		postgres.WithDatabase("orders_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres dsn: %v", err)
	}

	db, err := database.Open(ctx, dsn, logger.NewNop())
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Migrate(ctx, "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return db
}
