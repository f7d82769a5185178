package service

import (
	"context"

	"github.com/vaidashi/delivery-orders/internal/models"
	"github.com/vaidashi/delivery-orders/internal/repository"
	apperrors "github.com/vaidashi/delivery-orders/pkg/errors"
	"github.com/vaidashi/delivery-orders/pkg/logger"
)

// TemplateService manages recurring order templates and their lines
type TemplateService struct {
	templateRepo *repository.RecurringOrderRepository
	db           repository.Queryer
	logger       logger.Logger
}

// NewTemplateService creates a new TemplateService. q runs the line reads.
func NewTemplateService(templateRepo *repository.RecurringOrderRepository, q repository.Queryer, logger logger.Logger) *TemplateService {
	return &TemplateService{templateRepo: templateRepo, db: q, logger: logger}
}

// CreateTemplate stores a template for customerID on the given ISO weekdays
func (s *TemplateService) CreateTemplate(ctx context.Context, customerID int64, days []int, active bool) (*models.RecurringOrder, error) {
	if customerID <= 0 || len(days) == 0 {
		return nil, apperrors.NewInvalidInputError(MsgMissingFields)
	}

	weekdays, err := models.NormalizeWeekdays(days)
	if err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}

	ro := &models.RecurringOrder{
		CustomerID: customerID,
		IsActive:   active,
		DaysOfWeek: weekdays,
		CreatedAt:  models.GetCurrentTime(),
	}
	if err := s.templateRepo.Create(ctx, ro); err != nil {
		return nil, translate(err, "cliente")
	}

	s.logger.Info("Recurring order created", "recurringOrderID", ro.ID, "customerID", customerID, "days", weekdays)
	return ro, nil
}

func (s *TemplateService) ListTemplates(ctx context.Context) ([]*models.RecurringOrder, error) {
	return s.templateRepo.List(ctx)
}

// GetTemplate returns a template with its lines in position order
func (s *TemplateService) GetTemplate(ctx context.Context, id int64) (*models.RecurringOrder, error) {
	ro, err := s.templateRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "ordine ricorrente")
	}

	ro.Items, err = s.templateRepo.ListItems(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return ro, nil
}

// UpdateSchedule replaces the weekdays and active flag of a template
func (s *TemplateService) UpdateSchedule(ctx context.Context, id int64, days []int, active bool) (*models.RecurringOrder, error) {
	if len(days) == 0 {
		return nil, apperrors.NewInvalidInputError(MsgMissingFields)
	}

	weekdays, err := models.NormalizeWeekdays(days)
	if err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}

	ro, err := s.templateRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "ordine ricorrente")
	}
	ro.DaysOfWeek = weekdays
	ro.IsActive = active

	if err := s.templateRepo.UpdateSchedule(ctx, ro); err != nil {
		return nil, translate(err, "ordine ricorrente")
	}
	return ro, nil
}

func (s *TemplateService) DeleteTemplate(ctx context.Context, id int64) error {
	if err := s.templateRepo.Delete(ctx, id); err != nil {
		return translate(err, "ordine ricorrente")
	}
	s.logger.Info("Recurring order deleted", "recurringOrderID", id)
	return nil
}

// AddItem appends a line after the template's existing ones
func (s *TemplateService) AddItem(ctx context.Context, templateID int64, in ItemInput) (*models.RecurringOrderItem, error) {
	if in.ProductID <= 0 {
		return nil, apperrors.NewInvalidInputError(MsgMissingFields)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	if _, err := s.templateRepo.GetByID(ctx, templateID); err != nil {
		return nil, translate(err, "ordine ricorrente")
	}

	item := &models.RecurringOrderItem{
		RecurringOrderID:    templateID,
		ProductID:           in.ProductID,
		UnitType:            in.UnitType,
		QtyUnits:            in.QtyUnits,
		DescriptionOverride: models.NullableString(in.DescriptionOverride),
		CreatedAt:           models.GetCurrentTime(),
	}
	if err := s.templateRepo.AddItem(ctx, item); err != nil {
		return nil, translate(err, "prodotto")
	}
	return item, nil
}

func (s *TemplateService) DeleteItem(ctx context.Context, templateID, itemID int64) error {
	return translate(s.templateRepo.DeleteItem(ctx, templateID, itemID), "riga")
}
