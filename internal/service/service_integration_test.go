package service_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/delivery-orders/internal/database"
	"github.com/vaidashi/delivery-orders/internal/database/dbtest"
	"github.com/vaidashi/delivery-orders/internal/models"
	"github.com/vaidashi/delivery-orders/internal/repository"
	"github.com/vaidashi/delivery-orders/internal/service"
	apperrors "github.com/vaidashi/delivery-orders/pkg/errors"
	"github.com/vaidashi/delivery-orders/pkg/logger"
)

type env struct {
	db        *database.Database
	outbox    *repository.OutboxRepository
	orders    *service.OrderService
	catalog   *service.CatalogService
	templates *service.TemplateService
	cleanup   *service.CleanupService
}

func setup(t *testing.T) *env {
	db := dbtest.SetupTestPostgres(t)
	log := logger.NewNop()

	orderRepo := repository.NewOrderRepository(db, log)
	itemRepo := repository.NewOrderItemRepository(db, log)
	outboxRepo := repository.NewOutboxRepository(db, log)

	return &env{
		db:        db,
		outbox:    outboxRepo,
		orders:    service.NewOrderService(db, orderRepo, itemRepo, outboxRepo, log),
		catalog:   service.NewCatalogService(repository.NewCustomerRepository(db, log), repository.NewProductRepository(db, log), log),
		templates: service.NewTemplateService(repository.NewRecurringOrderRepository(db, log), db.DB, log),
		cleanup:   service.NewCleanupService(db, orderRepo, itemRepo, log),
	}
}

func strPtr(s string) *string { return &s }

func (e *env) customer(t *testing.T, name string) *models.Customer {
	c, err := e.catalog.CreateCustomer(context.Background(), service.CustomerInput{Name: name})
	require.NoError(t, err)
	return c
}

func (e *env) product(t *testing.T, cod, desc string) *models.Product {
	p, err := e.catalog.CreateProduct(context.Background(), service.ProductInput{Cod: strPtr(cod), Description: desc})
	require.NoError(t, err)
	return p
}

func (e *env) order(t *testing.T, customerID int64, date models.Date, lines ...service.ItemInput) *models.Order {
	o, err := e.orders.CreateOrder(context.Background(), customerID, date)
	require.NoError(t, err)
	for _, l := range lines {
		_, err := e.orders.AddItem(context.Background(), o.ID, l)
		require.NoError(t, err)
	}
	return o
}

func kg(productID int64, qty string) service.ItemInput {
	return service.ItemInput{ProductID: productID, UnitType: models.UnitKG, QtyUnits: decimal.RequireFromString(qty)}
}

func TestOrderLifecycle(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	cust := e.customer(t, "Osteria del Ponte")
	prod := e.product(t, "PRM", "Parmigiano 24 mesi")
	date := models.NewDate(2024, 3, 4)

	order := e.order(t, cust.ID, date, kg(prod.ID, "1.25"))

	got, err := e.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Osteria del Ponte", got.CustomerName)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Parmigiano 24 mesi", *got.Items[0].ProductDescription)
	assert.True(t, got.Items[0].QtyKg.IsZero())

	_, err = e.orders.UpdateItem(ctx, order.ID, got.Items[0].ID, service.ItemInput{UnitType: models.UnitPZ, QtyUnits: decimal.NewFromInt(2)})
	require.NoError(t, err)

	_, err = e.orders.UpdateOrderStatus(ctx, order.ID, models.OrderStatusPrinted)
	require.NoError(t, err)

	_, err = e.orders.AddItem(ctx, order.ID, kg(prod.ID, "1"))
	assert.ErrorIs(t, err, service.ErrOrderLocked)
	err = e.orders.DeleteItem(ctx, order.ID, got.Items[0].ID)
	assert.ErrorIs(t, err, service.ErrOrderLocked)

	n, err := e.outbox.CountByAggregate(ctx, "order", strconv.FormatInt(order.ID, 10), "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n) // created + status changed

	res, err := e.orders.DeleteOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, &models.OrderDeletion{Orders: 1, Items: 1}, res)

	_, err = e.orders.GetOrder(ctx, order.ID)
	assert.Equal(t, 404, apperrors.StatusCode(err))

	_, err = e.orders.DeleteOrder(ctx, order.ID)
	assert.Equal(t, 404, apperrors.StatusCode(err))
}

func TestCreateOrderUnknownCustomer(t *testing.T) {
	e := setup(t)

	_, err := e.orders.CreateOrder(context.Background(), 4242, models.NewDate(2024, 1, 1))
	assert.Equal(t, 400, apperrors.StatusCode(err))
}

func TestListOrdersSkipsEmptyOrders(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	cust := e.customer(t, "Bar Sport")
	prod := e.product(t, "CAF", "Caffè in grani")

	withLines := e.order(t, cust.ID, models.NewDate(2024, 5, 2), kg(prod.ID, "3"))
	e.order(t, cust.ID, models.NewDate(2024, 5, 2))
	earlier := e.order(t, cust.ID, models.NewDate(2024, 5, 1), kg(prod.ID, "1"))
	e.order(t, cust.ID, models.NewDate(2024, 5, 9), kg(prod.ID, "1"))

	orders, err := e.orders.ListOrders(ctx, models.NewDate(2024, 5, 1), models.NewDate(2024, 5, 3))
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, earlier.ID, orders[0].ID)
	assert.Equal(t, withLines.ID, orders[1].ID)
}

func TestPickList(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	cust := e.customer(t, "Ristorante Aurora")
	a := e.product(t, "A01", "Acciughe")
	b := e.product(t, "B01", "Burro")
	day := models.NewDate(2024, 6, 3)

	e.order(t, cust.ID, day,
		kg(a.ID, "1.5"),
		service.ItemInput{ProductID: a.ID, UnitType: models.UnitCS, QtyUnits: decimal.NewFromInt(2), DescriptionOverride: strPtr("sott'olio")},
		kg(b.ID, "0.5"))
	e.order(t, cust.ID, day, kg(a.ID, "2"))
	cancelled := e.order(t, cust.ID, day, kg(b.ID, "10"))
	_, err := e.orders.UpdateOrderStatus(ctx, cancelled.ID, models.OrderStatusCancelled)
	require.NoError(t, err)

	lines, err := e.orders.PickList(ctx, day, day)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, a.ID, lines[0].ProductID)
	assert.True(t, lines[0].TotalKG.Equal(decimal.RequireFromString("3.5")))
	assert.True(t, lines[0].TotalCS.Equal(decimal.NewFromInt(2)))
	assert.True(t, lines[0].TotalPZ.IsZero())
	assert.True(t, lines[0].HasOverride)

	assert.Equal(t, b.ID, lines[1].ProductID)
	assert.True(t, lines[1].TotalKG.Equal(decimal.RequireFromString("0.5")))
	assert.False(t, lines[1].HasOverride)
}

func TestCleanupPreviewAndDelete(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	cust := e.customer(t, "Mensa Scolastica")
	prod := e.product(t, "PAS", "Pasta fresca")

	e.order(t, cust.ID, models.NewDate(2024, 2, 1), kg(prod.ID, "1"), kg(prod.ID, "2"))
	e.order(t, cust.ID, models.NewDate(2024, 2, 15), kg(prod.ID, "1"))
	e.order(t, cust.ID, models.NewDate(2024, 3, 1), kg(prod.ID, "1"))

	feb := service.CleanupScope{Mode: service.CleanupRange, From: "2024-02-01", To: "2024-02-29"}

	preview, err := e.cleanup.Preview(ctx, feb)
	require.NoError(t, err)
	assert.Equal(t, &models.OrderDeletion{Orders: 2, Items: 3}, preview)

	deleted, err := e.cleanup.Delete(ctx, feb)
	require.NoError(t, err)
	assert.Equal(t, preview, deleted)

	rest, err := e.cleanup.Preview(ctx, service.CleanupScope{Mode: service.CleanupAll})
	require.NoError(t, err)
	assert.Equal(t, &models.OrderDeletion{Orders: 1, Items: 1}, rest)

	all, err := e.cleanup.Delete(ctx, service.CleanupScope{Mode: service.CleanupAll})
	require.NoError(t, err)
	assert.Equal(t, rest, all)

	_, err = e.cleanup.Delete(ctx, service.CleanupScope{Mode: service.CleanupRange, From: "2024-02-31", To: "2024-03-01"})
	assert.Equal(t, 400, apperrors.StatusCode(err))
}

func TestTemplateManagement(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	cust := e.customer(t, "Gelateria Polo")
	milk := e.product(t, "LAT", "Latte intero")
	cream := e.product(t, "PAN", "Panna")

	_, err := e.templates.CreateTemplate(ctx, cust.ID, nil, true)
	assert.Equal(t, 400, apperrors.StatusCode(err))
	_, err = e.templates.CreateTemplate(ctx, cust.ID, []int{8}, true)
	assert.Equal(t, 400, apperrors.StatusCode(err))

	ro, err := e.templates.CreateTemplate(ctx, cust.ID, []int{5, 1, 1}, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 5}, []int64(ro.DaysOfWeek))

	first, err := e.templates.AddItem(ctx, ro.ID, kg(milk.ID, "10"))
	require.NoError(t, err)
	second, err := e.templates.AddItem(ctx, ro.ID, kg(cream.ID, "2"))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Position)
	assert.Equal(t, 2, second.Position)

	got, err := e.templates.GetTemplate(ctx, ro.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, milk.ID, got.Items[0].ProductID)
	assert.Equal(t, "Gelateria Polo", got.CustomerName)

	updated, err := e.templates.UpdateSchedule(ctx, ro.ID, []int{7}, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	require.NoError(t, e.templates.DeleteItem(ctx, ro.ID, first.ID))
	assert.Equal(t, 404, apperrors.StatusCode(e.templates.DeleteItem(ctx, ro.ID, first.ID)))

	list, err := e.templates.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []int64{7}, []int64(list[0].DaysOfWeek))

	require.NoError(t, e.templates.DeleteTemplate(ctx, ro.ID))
	_, err = e.templates.GetTemplate(ctx, ro.ID)
	assert.Equal(t, 404, apperrors.StatusCode(err))
}

func TestSearchProductsPriority(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	mz := e.product(t, "MZ", "Mozzarella di bufala")
	mz1 := e.product(t, "MZ1", "Mozzarella fior di latte")
	e.product(t, "RIC", "Ricotta con mz di panna")
	inactive := e.product(t, "MZ9", "Mozzarella affumicata")
	require.NoError(t, e.catalog.SetProductActive(ctx, inactive.ID, false))

	// code-like query with code hits stops before descriptions
	res, err := e.catalog.SearchProducts(ctx, "mz")
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, mz.ID, res[0].ID)
	assert.Equal(t, mz1.ID, res[1].ID)

	// longer query falls through to descriptions
	res, err = e.catalog.SearchProducts(ctx, "mozzarella")
	require.NoError(t, err)
	assert.Len(t, res, 2)

	res, err = e.catalog.SearchProducts(ctx, "   ")
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestCatalogCustomers(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	c, err := e.catalog.CreateCustomer(ctx, service.CustomerInput{Code: strPtr("C001"), Name: "Alimentari Russo", Phone: strPtr(" ")})
	require.NoError(t, err)
	assert.Nil(t, c.Phone)

	_, err = e.catalog.CreateCustomer(ctx, service.CustomerInput{Code: strPtr("C001"), Name: "Altro"})
	assert.Equal(t, 409, apperrors.StatusCode(err))

	_, err = e.catalog.CreateCustomer(ctx, service.CustomerInput{Name: "  "})
	assert.Equal(t, 400, apperrors.StatusCode(err))

	require.NoError(t, e.catalog.SetCustomerActive(ctx, c.ID, false))

	active, err := e.catalog.ListCustomers(ctx, repository.CustomerFilter{})
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := e.catalog.ListCustomers(ctx, repository.CustomerFilter{IncludeInactive: true, Query: "russo"})
	require.NoError(t, err)
	require.Len(t, all, 1)

	updated, err := e.catalog.UpdateCustomer(ctx, c.ID, service.CustomerInput{Name: "Alimentari Russo & Figli", IsActive: true})
	require.NoError(t, err)
	assert.Nil(t, updated.Code)
	assert.True(t, updated.IsActive)
}
