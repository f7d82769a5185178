package recurring_test

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/delivery-orders/internal/database"
	"github.com/vaidashi/delivery-orders/internal/database/dbtest"
	"github.com/vaidashi/delivery-orders/internal/models"
	"github.com/vaidashi/delivery-orders/internal/recurring"
	"github.com/vaidashi/delivery-orders/internal/repository"
	"github.com/vaidashi/delivery-orders/pkg/logger"
)

type fixture struct {
	db        *database.Database
	customers *repository.CustomerRepository
	products  *repository.ProductRepository
	templates *repository.RecurringOrderRepository
	orders    *repository.OrderRepository
	items     *repository.OrderItemRepository
	outbox    *repository.OutboxRepository
	svc       *recurring.Service
}

func newFixture(t *testing.T) *fixture {
	db := dbtest.SetupTestPostgres(t)
	log := logger.NewNop()

	f := &fixture{
		db:        db,
		customers: repository.NewCustomerRepository(db, log),
		products:  repository.NewProductRepository(db, log),
		templates: repository.NewRecurringOrderRepository(db, log),
		orders:    repository.NewOrderRepository(db, log),
		items:     repository.NewOrderItemRepository(db, log),
		outbox:    repository.NewOutboxRepository(db, log),
	}
	store := recurring.NewSQLStore(db, f.templates, f.orders, f.items, f.outbox)
	f.svc = recurring.NewService(store, log, nil)

	return f
}

func (f *fixture) customer(t *testing.T, name string) int64 {
	c := &models.Customer{Name: name, IsActive: true, CreatedAt: models.GetCurrentTime()}
	require.NoError(t, f.customers.Create(context.Background(), c))
	return c.ID
}

func (f *fixture) product(t *testing.T, cod, description string) int64 {
	p := &models.Product{Cod: &cod, Description: description, IsActive: true, CreatedAt: models.GetCurrentTime()}
	require.NoError(t, f.products.Create(context.Background(), p))
	return p.ID
}

func (f *fixture) template(t *testing.T, customerID int64, active bool, days ...int64) int64 {
	ro := &models.RecurringOrder{CustomerID: customerID, IsActive: active, DaysOfWeek: pq.Int64Array(days), CreatedAt: models.GetCurrentTime()}
	require.NoError(t, f.templates.Create(context.Background(), ro))
	return ro.ID
}

func (f *fixture) line(t *testing.T, templateID, productID int64, unit models.UnitType, qty string, override *string) {
	it := &models.RecurringOrderItem{
		RecurringOrderID:    templateID,
		ProductID:           productID,
		UnitType:            unit,
		QtyUnits:            decimal.RequireFromString(qty),
		DescriptionOverride: override,
		CreatedAt:           models.GetCurrentTime(),
	}
	require.NoError(t, f.templates.AddItem(context.Background(), it))
}

func (f *fixture) ordersForTemplate(t *testing.T, templateID int64, date models.Date) []int64 {
	var ids []int64
	err := f.db.DB.SelectContext(context.Background(), &ids,
		`SELECT id FROM orders WHERE recurring_order_id = $1 AND order_date = $2`, templateID, date)
	require.NoError(t, err)
	return ids
}

func TestSQLStoreMaterializeEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cust := f.customer(t, "Trattoria da Mario")
	mozz := f.product(t, "MOZ01", "Mozzarella fior di latte")
	ric := f.product(t, "RIC02", "Ricotta")
	override := "Ricotta fresca di giornata"

	tmpl := f.template(t, cust, true, 1, 4)
	f.line(t, tmpl, mozz, models.UnitKG, "2.5", nil)
	f.line(t, tmpl, ric, models.UnitPZ, "4", &override)

	monday := models.NewDate(2024, 1, 1)

	res, err := f.svc.Materialize(ctx, monday)
	require.NoError(t, err)
	assert.Equal(t, &recurring.Result{Created: 1}, res)

	ids := f.ordersForTemplate(t, tmpl, monday)
	require.Len(t, ids, 1)

	order, err := f.orders.GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, cust, order.CustomerID)
	assert.Equal(t, models.OrderStatusOpen, order.Status)
	assert.True(t, order.IsRecurring)
	assert.Equal(t, "Trattoria da Mario", order.CustomerName)

	lines, err := f.items.ListByOrder(ctx, f.db.DB, order.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, mozz, lines[0].ProductID)
	assert.Equal(t, models.UnitKG, lines[0].UnitType)
	assert.True(t, lines[0].QtyUnits.Equal(decimal.RequireFromString("2.5")))
	assert.True(t, lines[0].QtyKg.IsZero())
	assert.Nil(t, lines[0].DescriptionOverride)
	assert.Equal(t, ric, lines[1].ProductID)
	require.NotNil(t, lines[1].DescriptionOverride)
	assert.Equal(t, override, *lines[1].DescriptionOverride)

	ro, err := f.templates.GetByID(ctx, tmpl)
	require.NoError(t, err)
	require.NotNil(t, ro.LastMaterializedAt)
	assert.Equal(t, "2024-01-01", ro.LastMaterializedAt.String())

	events, err := f.outbox.CountByAggregate(ctx, "order", strconv.FormatInt(order.ID, 10), models.EventOrderMaterialized)
	require.NoError(t, err)
	assert.Equal(t, int64(1), events)

	again, err := f.svc.Materialize(ctx, monday)
	require.NoError(t, err)
	assert.Equal(t, &recurring.Result{Skipped: 1}, again)

	assert.Len(t, f.ordersForTemplate(t, tmpl, monday), 1)
	lines, err = f.items.ListByOrder(ctx, f.db.DB, order.ID)
	require.NoError(t, err)
	assert.Len(t, lines, 2)
}

func TestSQLStoreSelectsActiveTemplatesForWeekday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cust := f.customer(t, "Bar Centrale")
	sundayOnly := f.template(t, cust, true, 7)
	weekdays := f.template(t, cust, true, 1, 2, 3, 4, 5)
	inactive := f.template(t, cust, false, 7)

	sunday := models.NewDate(2024, 1, 7)

	res, err := f.svc.MaterializeDate(ctx, "2024-01-07")
	require.NoError(t, err)
	assert.Equal(t, &recurring.Result{Created: 1}, res)

	assert.Len(t, f.ordersForTemplate(t, sundayOnly, sunday), 1)
	assert.Empty(t, f.ordersForTemplate(t, weekdays, sunday))
	assert.Empty(t, f.ordersForTemplate(t, inactive, sunday))

	ro, err := f.templates.GetByID(ctx, inactive)
	require.NoError(t, err)
	assert.Nil(t, ro.LastMaterializedAt)
}

func TestSQLStoreSkipUpdatesMarker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cust := f.customer(t, "Pizzeria Vesuvio")
	prod := f.product(t, "FDL", "Fior di latte")
	tmpl := f.template(t, cust, true, 2)
	f.line(t, tmpl, prod, models.UnitCS, "1", nil)

	tuesday := models.NewDate(2024, 1, 2)

	// an order for the pair already exists, created by an earlier run that
	// never got to update the marker
	templateID := tmpl
	existing := &models.Order{
		CustomerID:       cust,
		OrderDate:        tuesday,
		Status:           models.OrderStatusOpen,
		IsRecurring:      true,
		RecurringOrderID: &templateID,
		CreatedAt:        models.GetCurrentTime(),
	}
	require.NoError(t, f.orders.CreateInTx(ctx, f.db.DB, existing))

	res, err := f.svc.Materialize(ctx, tuesday)
	require.NoError(t, err)
	assert.Equal(t, &recurring.Result{Skipped: 1}, res)

	lines, err := f.items.ListByOrder(ctx, f.db.DB, existing.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	ro, err := f.templates.GetByID(ctx, tmpl)
	require.NoError(t, err)
	require.NotNil(t, ro.LastMaterializedAt)
	assert.Equal(t, "2024-01-02", ro.LastMaterializedAt.String())
}

func TestSQLStoreConcurrentRunsCreateExactlyOneOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cust := f.customer(t, "Hotel Miramare")
	prod := f.product(t, "BUR", "Burrata")
	tmpl := f.template(t, cust, true, 3)
	f.line(t, tmpl, prod, models.UnitPZ, "6", nil)
	f.line(t, tmpl, prod, models.UnitKG, "1", nil)

	wednesday := models.NewDate(2024, 1, 3)

	const runs = 6
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		skipped int
	)

	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Materialize(ctx, wednesday)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			created += res.Created
			skipped += res.Skipped
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, runs-1, skipped)

	ids := f.ordersForTemplate(t, tmpl, wednesday)
	require.Len(t, ids, 1)

	lines, err := f.items.ListByOrder(ctx, f.db.DB, ids[0])
	require.NoError(t, err)
	assert.Len(t, lines, 2)
}

func TestSQLStoreManualOrdersDoNotBlockMaterialization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cust := f.customer(t, "Salumeria Rossi")
	tmpl := f.template(t, cust, true, 5)
	friday := models.NewDate(2024, 1, 5)

	for i := 0; i < 2; i++ {
		manual := models.NewOrder(cust, friday)
		require.NoError(t, f.orders.CreateInTx(ctx, f.db.DB, manual))
	}

	res, err := f.svc.Materialize(ctx, friday)
	require.NoError(t, err)
	assert.Equal(t, &recurring.Result{Created: 1}, res)
	assert.Len(t, f.ordersForTemplate(t, tmpl, friday), 1)
}
