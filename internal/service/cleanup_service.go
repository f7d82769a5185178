package service

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/vaidashi/delivery-orders/internal/database"
	"github.com/vaidashi/delivery-orders/internal/models"
	"github.com/vaidashi/delivery-orders/internal/repository"
	apperrors "github.com/vaidashi/delivery-orders/pkg/errors"
	"github.com/vaidashi/delivery-orders/pkg/logger"
)

// Cleanup modes
const (
	CleanupRange = "range"
	CleanupAll   = "all"
)

// CleanupScope selects the orders a bulk cleanup touches
type CleanupScope struct {
	Mode string
	From string
	To   string
}

// rangeOf validates the scope; a nil range means every order
func (c CleanupScope) rangeOf() (*repository.DateRange, error) {
	switch c.Mode {
	case CleanupAll:
		return nil, nil
	case CleanupRange, "":
		from, err := models.ParseDate(c.From)
		if err != nil {
			return nil, apperrors.NewInvalidInputError(MsgInvalidDates)
		}
		to, err := models.ParseDate(c.To)
		if err != nil || to.Before(from.Time) {
			return nil, apperrors.NewInvalidInputError(MsgInvalidDates)
		}
		return &repository.DateRange{From: from, To: to}, nil
	}
	return nil, apperrors.NewInvalidInputError("mode non valido (range, all)")
}

// CleanupService bulk-deletes orders for administrators
type CleanupService struct {
	db        *database.Database
	orderRepo *repository.OrderRepository
	itemRepo  *repository.OrderItemRepository
	logger    logger.Logger
}

// NewCleanupService creates a new CleanupService
func NewCleanupService(
	db *database.Database,
	orderRepo *repository.OrderRepository,
	itemRepo *repository.OrderItemRepository,
	logger logger.Logger,
) *CleanupService {
	return &CleanupService{db: db, orderRepo: orderRepo, itemRepo: itemRepo, logger: logger}
}

// Preview counts what Delete would remove for the same scope
func (s *CleanupService) Preview(ctx context.Context, scope CleanupScope) (*models.OrderDeletion, error) {
	rng, err := scope.rangeOf()
	if err != nil {
		return nil, err
	}

	orders, err := s.orderRepo.CountInRange(ctx, rng)
	if err != nil {
		return nil, err
	}
	items, err := s.itemRepo.CountInRange(ctx, rng)
	if err != nil {
		return nil, err
	}

	return &models.OrderDeletion{Orders: orders, Items: items}, nil
}

// Delete removes the lines and then the orders of the scope in one transaction
func (s *CleanupService) Delete(ctx context.Context, scope CleanupScope) (*models.OrderDeletion, error) {
	rng, err := scope.rangeOf()
	if err != nil {
		return nil, err
	}

	res := &models.OrderDeletion{}
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if res.Items, err = s.itemRepo.DeleteInRangeInTx(ctx, tx, rng); err != nil {
			return err
		}
		res.Orders, err = s.orderRepo.DeleteInRangeInTx(ctx, tx, rng)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Warn("Orders deleted",
		"mode", scope.Mode,
		"from", scope.From,
		"to", scope.To,
		"orders", res.Orders,
		"items", res.Items)

	return res, nil
}
