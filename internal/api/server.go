package api

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vaidashi/delivery-orders/internal/config"
	"github.com/vaidashi/delivery-orders/internal/models"
	"github.com/vaidashi/delivery-orders/internal/recurring"
	"github.com/vaidashi/delivery-orders/internal/repository"
	"github.com/vaidashi/delivery-orders/internal/service"
	"github.com/vaidashi/delivery-orders/pkg/logger"
	"github.com/vaidashi/delivery-orders/pkg/metrics"
)

// OrderService manages orders and their lines
type OrderService interface {
	CreateOrder(ctx context.Context, customerID int64, date models.Date) (*models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, from, to models.Date) ([]*models.Order, error)
	PickList(ctx context.Context, from, to models.Date) ([]*models.PickListLine, error)
	UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.Order, error)
	DeleteOrder(ctx context.Context, id int64) (*models.OrderDeletion, error)
	AddItem(ctx context.Context, orderID int64, in service.ItemInput) (*models.OrderItem, error)
	UpdateItem(ctx context.Context, orderID, itemID int64, in service.ItemInput) (*models.OrderItem, error)
	DeleteItem(ctx context.Context, orderID, itemID int64) error
}

// CatalogService manages customers and products
type CatalogService interface {
	CreateCustomer(ctx context.Context, in service.CustomerInput) (*models.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, id int64, in service.CustomerInput) (*models.Customer, error)
	SetCustomerActive(ctx context.Context, id int64, active bool) error
	ListCustomers(ctx context.Context, f repository.CustomerFilter) ([]*models.Customer, error)
	CreateProduct(ctx context.Context, in service.ProductInput) (*models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	UpdateProduct(ctx context.Context, id int64, in service.ProductInput) (*models.Product, error)
	SetProductActive(ctx context.Context, id int64, active bool) error
	ListProducts(ctx context.Context, f repository.ProductFilter) ([]*models.Product, error)
	SearchProducts(ctx context.Context, q string) ([]*models.Product, error)
}

// TemplateService manages recurring order templates
type TemplateService interface {
	CreateTemplate(ctx context.Context, customerID int64, days []int, active bool) (*models.RecurringOrder, error)
	ListTemplates(ctx context.Context) ([]*models.RecurringOrder, error)
	GetTemplate(ctx context.Context, id int64) (*models.RecurringOrder, error)
	UpdateSchedule(ctx context.Context, id int64, days []int, active bool) (*models.RecurringOrder, error)
	DeleteTemplate(ctx context.Context, id int64) error
	AddItem(ctx context.Context, templateID int64, in service.ItemInput) (*models.RecurringOrderItem, error)
	DeleteItem(ctx context.Context, templateID, itemID int64) error
}

// CleanupService bulk-deletes orders
type CleanupService interface {
	Preview(ctx context.Context, scope service.CleanupScope) (*models.OrderDeletion, error)
	Delete(ctx context.Context, scope service.CleanupScope) (*models.OrderDeletion, error)
}

// UserService provisions accounts and issues tokens
type UserService interface {
	CreateUser(ctx context.Context, in service.NewUserInput) (*models.User, error)
	Login(ctx context.Context, login, password string) (*service.LoginResult, error)
}

// Materializer creates the recurring orders due on a date
type Materializer interface {
	MaterializeDate(ctx context.Context, raw string) (*recurring.Result, error)
}

// LoginLimiter counts attempts in fixed windows
type LoginLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators of the HTTP server. Limiter, DB,
// Metrics and Gatherer are optional.
type Dependencies struct {
	Orders       OrderService
	Catalog      CatalogService
	Templates    TemplateService
	Cleanup      CleanupService
	Users        UserService
	Materializer Materializer
	Limiter      LoginLimiter
	DB           Pinger
	Metrics      *metrics.HTTPMetrics
	Gatherer     prometheus.Gatherer
}

type Server struct {
	logger         logger.Logger
	authConfig     config.AuthConfig
	trustedProxies []netip.Prefix
	router         *mux.Router
	httpServer     *http.Server

	orders       OrderService
	catalog      CatalogService
	templates    TemplateService
	cleanup      CleanupService
	users        UserService
	materializer Materializer
	limiter      LoginLimiter
	db           Pinger
	metrics      *metrics.HTTPMetrics
	gatherer     prometheus.Gatherer
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, deps Dependencies, logger logger.Logger) *Server {
	r := mux.NewRouter()

	s := &Server{
		logger:     logger.With("component", "api"),
		authConfig: cfg.Auth,
		router:     r,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.App.Port),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		orders:       deps.Orders,
		catalog:      deps.Catalog,
		templates:    deps.Templates,
		cleanup:      deps.Cleanup,
		users:        deps.Users,
		materializer: deps.Materializer,
		limiter:      deps.Limiter,
		db:           deps.DB,
		metrics:      deps.Metrics,
		gatherer:     deps.Gatherer,
	}

	proxies, err := cfg.Auth.ProxyPrefixes()
	if err != nil {
		s.logger.Warn("Ignoring trusted proxies", "error", err)
	}
	s.trustedProxies = proxies

	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures all the routes of the API
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.respondWithError(w, http.StatusNotFound, "Risorsa non trovata")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.respondWithError(w, http.StatusMethodNotAllowed, "Metodo non consentito")
	})

	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", s.healthCheckHandler).Methods(http.MethodGet)
	api.HandleFunc("/auth/login", s.loginThrottle(s.loginHandler)).Methods(http.MethodPost)

	authed := api.NewRoute().Subrouter()
	authed.Use(s.authMiddleware)

	read := func(h http.HandlerFunc) http.HandlerFunc { return s.requireRole(models.RoleViewer, h) }
	write := func(h http.HandlerFunc) http.HandlerFunc { return s.requireRole(models.RoleOperator, h) }
	master := func(h http.HandlerFunc) http.HandlerFunc { return s.requireRole(models.RoleMaster, h) }
	admin := func(h http.HandlerFunc) http.HandlerFunc { return s.requireRole(models.RoleAdmin, h) }

	authed.HandleFunc("/customers", read(s.listCustomersHandler)).Methods(http.MethodGet)
	authed.HandleFunc("/customers", write(s.createCustomerHandler)).Methods(http.MethodPost)
	authed.HandleFunc("/customers/{id}", read(s.getCustomerHandler)).Methods(http.MethodGet)
	authed.HandleFunc("/customers/{id}", write(s.updateCustomerHandler)).Methods(http.MethodPut)
	authed.HandleFunc("/customers/{id}/active", write(s.setCustomerActiveHandler)).Methods(http.MethodPatch)

	authed.HandleFunc("/products", read(s.listProductsHandler)).Methods(http.MethodGet)
	authed.HandleFunc("/products", write(s.createProductHandler)).Methods(http.MethodPost)
	authed.HandleFunc("/products/search", read(s.searchProductsHandler)).Methods(http.MethodGet)
	authed.HandleFunc("/products/{id}", read(s.getProductHandler)).Methods(http.MethodGet)
	authed.HandleFunc("/products/{id}", write(s.updateProductHandler)).Methods(http.MethodPut)
	authed.HandleFunc("/products/{id}/active", write(s.setProductActiveHandler)).Methods(http.MethodPatch)

	authed.HandleFunc("/orders", read(s.listOrdersHandler)).Methods(http.MethodGet)
	authed.HandleFunc("/orders", write(s.createOrderHandler)).Methods(http.MethodPost)
	authed.HandleFunc("/orders/picklist", read(s.pickListHandler)).Methods(http.MethodGet)
	authed.HandleFunc("/orders/{id}", read(s.getOrderHandler)).Methods(http.MethodGet)
	authed.HandleFunc("/orders/{id}", write(s.deleteOrderHandler)).Methods(http.MethodDelete)
	authed.HandleFunc("/orders/{id}/status", write(s.updateOrderStatusHandler)).Methods(http.MethodPatch)
	authed.HandleFunc("/orders/{id}/items", write(s.addOrderItemHandler)).Methods(http.MethodPost)
	authed.HandleFunc("/orders/{id}/items/{itemID}", write(s.updateOrderItemHandler)).Methods(http.MethodPut)
	authed.HandleFunc("/orders/{id}/items/{itemID}", write(s.deleteOrderItemHandler)).Methods(http.MethodDelete)

	authed.HandleFunc("/recurring-orders", read(s.listTemplatesHandler)).Methods(http.MethodGet)
	authed.HandleFunc("/recurring-orders", write(s.createTemplateHandler)).Methods(http.MethodPost)
	authed.HandleFunc("/recurring-orders/{id}", read(s.getTemplateHandler)).Methods(http.MethodGet)
	authed.HandleFunc("/recurring-orders/{id}", write(s.updateTemplateHandler)).Methods(http.MethodPut)
	authed.HandleFunc("/recurring-orders/{id}", write(s.deleteTemplateHandler)).Methods(http.MethodDelete)
	authed.HandleFunc("/recurring-orders/{id}/items", write(s.addTemplateItemHandler)).Methods(http.MethodPost)
	authed.HandleFunc("/recurring-orders/{id}/items/{itemID}", write(s.deleteTemplateItemHandler)).Methods(http.MethodDelete)

	authed.HandleFunc("/admin/materialize-recurring", write(s.materializeRecurringHandler)).Methods(http.MethodPost)
	authed.HandleFunc("/admin/delete-order", master(s.adminDeleteOrderHandler)).Methods(http.MethodPost)
	authed.HandleFunc("/admin/delete-orders-preview", master(s.deleteOrdersPreviewHandler)).Methods(http.MethodPost)
	authed.HandleFunc("/admin/delete-orders", master(s.deleteOrdersHandler)).Methods(http.MethodPost)
	authed.HandleFunc("/admin/users", admin(s.createUserHandler)).Methods(http.MethodPost)
}
