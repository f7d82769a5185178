package recurring

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/vaidashi/delivery-orders/internal/database"
	"github.com/vaidashi/delivery-orders/internal/models"
	"github.com/vaidashi/delivery-orders/internal/repository"
)

// SQLStore implements Store on the Postgres repositories
type SQLStore struct {
	db        *database.Database
	templates *repository.RecurringOrderRepository
	orders    *repository.OrderRepository
	items     *repository.OrderItemRepository
	outbox    *repository.OutboxRepository
}

// NewSQLStore creates a new SQLStore
func NewSQLStore(
	db *database.Database,
	templates *repository.RecurringOrderRepository,
	orders *repository.OrderRepository,
	items *repository.OrderItemRepository,
	outbox *repository.OutboxRepository,
) *SQLStore {
	return &SQLStore{
		db:        db,
		templates: templates,
		orders:    orders,
		items:     items,
		outbox:    outbox,
	}
}

func (s *SQLStore) ListActiveByWeekday(ctx context.Context, weekday int) ([]*models.RecurringOrder, error) {
	return s.templates.ListActiveByWeekday(ctx, weekday)
}

func (s *SQLStore) MarkMaterialized(ctx context.Context, recurringOrderID int64, date models.Date) error {
	return s.templates.MarkMaterialized(ctx, s.db.DB, recurringOrderID, date)
}

func (s *SQLStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&sqlTx{store: s, tx: tx})
	})
}

type sqlTx struct {
	store *SQLStore
	tx    *sqlx.Tx
}

func (t *sqlTx) CreateOrder(ctx context.Context, order *models.Order) error {
	return t.store.orders.CreateInTx(ctx, t.tx, order)
}

func (t *sqlTx) ListTemplateItems(ctx context.Context, recurringOrderID int64) ([]*models.RecurringOrderItem, error) {
	return t.store.templates.ListItems(ctx, t.tx, recurringOrderID)
}

func (t *sqlTx) CreateOrderItems(ctx context.Context, items []*models.OrderItem) error {
	return t.store.items.CreateBatchInTx(ctx, t.tx, items)
}

func (t *sqlTx) AppendEvent(ctx context.Context, msg *models.OutboxMessage) error {
	return t.store.outbox.CreateInTx(ctx, t.tx, msg)
}

func (t *sqlTx) MarkMaterialized(ctx context.Context, recurringOrderID int64, date models.Date) error {
	return t.store.templates.MarkMaterialized(ctx, t.tx, recurringOrderID, date)
}
