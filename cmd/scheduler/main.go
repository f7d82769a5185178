package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vaidashi/delivery-orders/internal/config"
	"github.com/vaidashi/delivery-orders/internal/database"
	"github.com/vaidashi/delivery-orders/internal/recurring"
	"github.com/vaidashi/delivery-orders/internal/repository"
	"github.com/vaidashi/delivery-orders/internal/scheduler"
	"github.com/vaidashi/delivery-orders/pkg/logger"
	"github.com/vaidashi/delivery-orders/pkg/metrics"
	"github.com/vaidashi/delivery-orders/pkg/redis"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(logger.Options{
		ServiceName: "delivery-orders-scheduler",
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, l); err != nil && !errors.Is(err, context.Canceled) {
		l.Error("Scheduler failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, l logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return err
	}

	db, err := database.New(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := redis.New(ctx, cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("scheduler lock needs redis: %w", err)
	}
	defer rdb.Close()

	lock, err := scheduler.NewRedisLock(rdb, cfg.Scheduler.LockKey, cfg.Scheduler.LockTTL)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store := recurring.NewSQLStore(db,
		repository.NewRecurringOrderRepository(db, l),
		repository.NewOrderRepository(db, l),
		repository.NewOrderItemRepository(db, l),
		repository.NewOutboxRepository(db, l),
	)
	materializer := recurring.NewService(store, l, metrics.NewMaterializationMetrics(reg))

	svc, err := scheduler.NewService(scheduler.ServiceParams{
		Logger:   l,
		Registry: scheduler.NewRegistry(scheduler.NewMaterializeJob(materializer, cfg.Scheduler.CutoffHour, loc, cfg.Scheduler.DaysAhead, l)),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
		Interval: cfg.Scheduler.Interval,
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("Metrics server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	l.Info("Scheduler started",
		"interval", cfg.Scheduler.Interval,
		"timezone", cfg.Scheduler.Timezone,
		"cutoffHour", cfg.Scheduler.CutoffHour,
		"daysAhead", cfg.Scheduler.DaysAhead)

	return svc.Run(ctx)
}
