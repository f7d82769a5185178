package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/vaidashi/delivery-orders/internal/models"
	"github.com/vaidashi/delivery-orders/internal/recurring"
	"github.com/vaidashi/delivery-orders/pkg/logger"
)

// Materializer creates the recurring orders due on a date
type Materializer interface {
	Materialize(ctx context.Context, date models.Date) (*recurring.Result, error)
}

// MaterializeJob materializes the current work date and the days after it
type MaterializeJob struct {
	materializer Materializer
	cutoffHour   int
	location     *time.Location
	daysAhead    int
	now          func() time.Time
	logger       logger.Logger
}

// NewMaterializeJob creates a job covering the work date plus daysAhead days
func NewMaterializeJob(m Materializer, cutoffHour int, loc *time.Location, daysAhead int, logger logger.Logger) *MaterializeJob {
	return &MaterializeJob{
		materializer: m,
		cutoffHour:   cutoffHour,
		location:     loc,
		daysAhead:    daysAhead,
		now:          time.Now,
		logger:       logger,
	}
}

func (j *MaterializeJob) Name() string { return "materialize-recurring" }

// Dates returns the dates the next run covers, work date first
func (j *MaterializeJob) Dates() []models.Date {
	start := recurring.WorkDate(j.now(), j.cutoffHour, j.location)

	dates := make([]models.Date, 0, j.daysAhead+1)
	for i := 0; i <= j.daysAhead; i++ {
		dates = append(dates, start.AddDays(i))
	}
	return dates
}

// Run stops at the first date that fails; earlier dates stay materialized
func (j *MaterializeJob) Run(ctx context.Context) error {
	for _, date := range j.Dates() {
		res, err := j.materializer.Materialize(ctx, date)
		if err != nil {
			return fmt.Errorf("materialize %s: %w", date, err)
		}
		j.logger.Info("Scheduled materialization",
			"orderDate", date,
			"created", res.Created,
			"skipped", res.Skipped)
	}
	return nil
}
