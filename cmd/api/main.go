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

	"github.com/vaidashi/delivery-orders/internal/api"
	"github.com/vaidashi/delivery-orders/internal/auth"
	"github.com/vaidashi/delivery-orders/internal/config"
	"github.com/vaidashi/delivery-orders/internal/database"
	"github.com/vaidashi/delivery-orders/internal/models"
	"github.com/vaidashi/delivery-orders/internal/outbox"
	"github.com/vaidashi/delivery-orders/internal/recurring"
	"github.com/vaidashi/delivery-orders/internal/repository"
	"github.com/vaidashi/delivery-orders/internal/service"
	"github.com/vaidashi/delivery-orders/pkg/kafka"
	"github.com/vaidashi/delivery-orders/pkg/logger"
	"github.com/vaidashi/delivery-orders/pkg/metrics"
	"github.com/vaidashi/delivery-orders/pkg/ratelimit"
	"github.com/vaidashi/delivery-orders/pkg/redis"
	"github.com/vaidashi/delivery-orders/pkg/retry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Auth.Validate(); err != nil {
		log.Fatalf("Invalid auth configuration: %v", err)
	}

	l := logger.New(logger.Options{
		ServiceName: "delivery-orders-api",
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
	})
	l.Info("Starting API server...", "env", cfg.App.Env)

	if err := run(cfg, l); err != nil {
		l.Error("API server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, l logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.MaybeAutoMigrate(ctx, cfg.DB.AutoMigrate); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Repositories
	customerRepo := repository.NewCustomerRepository(db, l)
	productRepo := repository.NewProductRepository(db, l)
	orderRepo := repository.NewOrderRepository(db, l)
	itemRepo := repository.NewOrderItemRepository(db, l)
	templateRepo := repository.NewRecurringOrderRepository(db, l)
	outboxRepo := repository.NewOutboxRepository(db, l)
	userRepo := repository.NewUserRepository(db, l)

	// Services
	users := service.NewUserService(userRepo, auth.NewHasher(0), cfg.Auth, l)
	if err := users.EnsureBootstrapAdmin(ctx); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	materializer := recurring.NewService(
		recurring.NewSQLStore(db, templateRepo, orderRepo, itemRepo, outboxRepo),
		l,
		metrics.NewMaterializationMetrics(reg),
	)

	var limiter api.LoginLimiter
	if cfg.Redis.URL != "" {
		rdb, err := redis.New(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		limiter = rdb
	} else {
		local := ratelimit.NewWindowLimiter(cfg.Auth.LoginWindow)
		defer local.Stop()
		limiter = local
		l.Info("REDIS_URL not set, login throttling is per process")
	}

	// Outbox relay
	processor := outbox.NewProcessor(outboxRepo, cfg.Outbox, l, metrics.NewOutboxMetrics(reg))
	if cfg.Kafka.Enabled {
		producer, err := connectKafka(ctx, cfg, l)
		if err != nil {
			return err
		}
		defer producer.Close()

		kafkaHandler := outbox.NewKafkaHandler(producer, cfg.Kafka.OrdersTopic, l)
		for _, eventType := range models.OrderEventTypes {
			processor.RegisterHandler(eventType, kafkaHandler)
		}
	} else {
		l.Info("Kafka disabled, order events are logged only")
		processor.SetFallbackHandler(outbox.NewLoggingHandler(l))
	}
	processor.Start(ctx)
	defer processor.Stop()

	server := api.NewServer(cfg, api.Dependencies{
		Orders:       service.NewOrderService(db, orderRepo, itemRepo, outboxRepo, l),
		Catalog:      service.NewCatalogService(customerRepo, productRepo, l),
		Templates:    service.NewTemplateService(templateRepo, db.DB, l),
		Cleanup:      service.NewCleanupService(db, orderRepo, itemRepo, l),
		Users:        users,
		Materializer: materializer,
		Limiter:      limiter,
		DB:           db,
		Metrics:      metrics.NewHTTPMetrics(reg),
		Gatherer:     reg,
	}, l)

	errCh := make(chan error, 1)
	go func() {
		l.Info(fmt.Sprintf("Server is starting on port %d", cfg.App.Port))
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	l.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	l.Info("Server exiting")
	return nil
}

// connectKafka retries while the brokers come up
func connectKafka(ctx context.Context, cfg *config.Config, l logger.Logger) (*kafka.Producer, error) {
	var producer *kafka.Producer

	err := retry.Retry(ctx, func(ctx context.Context) error {
		p, err := kafka.NewProducer(cfg.Kafka.Brokers, "delivery-orders-api", l)
		if err != nil {
			return err
		}
		producer = p
		return nil
	}, &retry.RetryConfig{
		MaxAttempts:     5,
		BackoffStrategy: retry.NewDefaultExponentialBackoff(),
		Logger:          l,
	})
	if err != nil {
		return nil, err
	}

	l.Info("Connected to Kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.OrdersTopic)
	return producer, nil
}
