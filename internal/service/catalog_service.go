package service

import (
	"context"
	"strings"

	"github.com/vaidashi/delivery-orders/internal/models"
	"github.com/vaidashi/delivery-orders/internal/repository"
	apperrors "github.com/vaidashi/delivery-orders/pkg/errors"
	"github.com/vaidashi/delivery-orders/pkg/logger"
)

const (
	// MaxSearchResults caps product search results
	MaxSearchResults = 20
	// codeLikeMaxLen is the longest query still treated as a product code
	codeLikeMaxLen = 6
)

// CustomerInput carries the editable customer fields
type CustomerInput struct {
	Code     *string
	Name     string
	Phone    *string
	IsActive bool
}

// ProductInput carries the editable product fields
type ProductInput struct {
	Cod         *string
	Description string
	IsActive    bool
}

// CatalogService manages customers and products
type CatalogService struct {
	customerRepo *repository.CustomerRepository
	productRepo  *repository.ProductRepository
	logger       logger.Logger
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(
	customerRepo *repository.CustomerRepository,
	productRepo *repository.ProductRepository,
	logger logger.Logger,
) *CatalogService {
	return &CatalogService{
		customerRepo: customerRepo,
		productRepo:  productRepo,
		logger:       logger,
	}
}

func (s *CatalogService) CreateCustomer(ctx context.Context, in CustomerInput) (*models.Customer, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.NewInvalidInputError(MsgMissingFields)
	}

	c := &models.Customer{
		Code:      models.NullableString(in.Code),
		Name:      name,
		Phone:     models.NullableString(in.Phone),
		IsActive:  true,
		CreatedAt: models.GetCurrentTime(),
	}
	if err := s.customerRepo.Create(ctx, c); err != nil {
		return nil, translate(err, "cliente")
	}

	s.logger.Info("Customer created", "customerID", c.ID, "name", c.Name)
	return c, nil
}

func (s *CatalogService) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	c, err := s.customerRepo.GetByID(ctx, id)
	return c, translate(err, "cliente")
}

func (s *CatalogService) UpdateCustomer(ctx context.Context, id int64, in CustomerInput) (*models.Customer, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.NewInvalidInputError(MsgMissingFields)
	}

	c, err := s.customerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "cliente")
	}

	c.Code = models.NullableString(in.Code)
	c.Name = name
	c.Phone = models.NullableString(in.Phone)
	c.IsActive = in.IsActive

	if err := s.customerRepo.Update(ctx, c); err != nil {
		return nil, translate(err, "cliente")
	}
	return c, nil
}

func (s *CatalogService) SetCustomerActive(ctx context.Context, id int64, active bool) error {
	return translate(s.customerRepo.SetActive(ctx, id, active), "cliente")
}

func (s *CatalogService) ListCustomers(ctx context.Context, f repository.CustomerFilter) ([]*models.Customer, error) {
	return s.customerRepo.List(ctx, f)
}

func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return nil, apperrors.NewInvalidInputError(MsgMissingFields)
	}

	p := &models.Product{
		Cod:         models.NullableString(in.Cod),
		Description: desc,
		IsActive:    true,
		CreatedAt:   models.GetCurrentTime(),
	}
	if err := s.productRepo.Create(ctx, p); err != nil {
		return nil, translate(err, "prodotto")
	}

	s.logger.Info("Product created", "productID", p.ID, "description", p.Description)
	return p, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, err := s.productRepo.GetByID(ctx, id)
	return p, translate(err, "prodotto")
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, in ProductInput) (*models.Product, error) {
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return nil, apperrors.NewInvalidInputError(MsgMissingFields)
	}

	p, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "prodotto")
	}

	p.Cod = models.NullableString(in.Cod)
	p.Description = desc
	p.IsActive = in.IsActive

	if err := s.productRepo.Update(ctx, p); err != nil {
		return nil, translate(err, "prodotto")
	}
	return p, nil
}

func (s *CatalogService) SetProductActive(ctx context.Context, id int64, active bool) error {
	return translate(s.productRepo.SetActive(ctx, id, active), "prodotto")
}

func (s *CatalogService) ListProducts(ctx context.Context, f repository.ProductFilter) ([]*models.Product, error) {
	return s.productRepo.List(ctx, f)
}

// SearchProducts looks up active products for order entry. Exact code
// matches come first, then code prefixes, then descriptions containing q.
// A code-like query stops before the description pass when codes matched.
func (s *CatalogService) SearchProducts(ctx context.Context, q string) ([]*models.Product, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []*models.Product{}, nil
	}

	results := make([]*models.Product, 0, MaxSearchResults)
	seen := make(map[int64]bool)
	add := func(ps []*models.Product) {
		for _, p := range ps {
			if len(results) == MaxSearchResults || seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			results = append(results, p)
		}
	}

	exact, err := s.productRepo.FindActiveByCod(ctx, q, false, MaxSearchResults)
	if err != nil {
		return nil, err
	}
	add(exact)

	prefix, err := s.productRepo.FindActiveByCod(ctx, q, true, MaxSearchResults)
	if err != nil {
		return nil, err
	}
	add(prefix)

	if len(results) > 0 && isCodeLike(q) {
		return results, nil
	}
	if len(results) == MaxSearchResults {
		return results, nil
	}

	byDesc, err := s.productRepo.FindActiveByDescription(ctx, q, MaxSearchResults)
	if err != nil {
		return nil, err
	}
	add(byDesc)

	return results, nil
}

func isCodeLike(q string) bool {
	return len([]rune(q)) <= codeLikeMaxLen && !strings.ContainsAny(q, " \t")
}
