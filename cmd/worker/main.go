package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/storefront-pipeline/internal/application/catalog"
	"github.com/storefront-pipeline/internal/application/identity"
	"github.com/storefront-pipeline/internal/application/order"
	"github.com/storefront-pipeline/internal/application/retention"
	"github.com/storefront-pipeline/internal/application/review"
	"github.com/storefront-pipeline/internal/application/subscription"
	"github.com/storefront-pipeline/internal/config"
	"github.com/storefront-pipeline/internal/infrastructure/cache"
	"github.com/storefront-pipeline/internal/infrastructure/dynamo"
	"github.com/storefront-pipeline/internal/infrastructure/eventbus"
	identityinfra "github.com/storefront-pipeline/internal/infrastructure/identity"
	jwtinfra "github.com/storefront-pipeline/internal/infrastructure/jwt"
	s3infra "github.com/storefront-pipeline/internal/infrastructure/s3"
	"github.com/storefront-pipeline/internal/infrastructure/smtp"
	"github.com/storefront-pipeline/internal/infrastructure/sns"
	"github.com/storefront-pipeline/internal/metrics"
	"github.com/storefront-pipeline/internal/pkg/mailtmpl"
	"github.com/storefront-pipeline/internal/transport/events"
	transporthttp "github.com/storefront-pipeline/internal/transport/http"
	"github.com/storefront-pipeline/internal/transport/http/handler"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, reading from environment")
	}

	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("dynamo client: %w", err)
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	userRepo := dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)
	productRepo := dynamo.NewProductRepo(dynamoClient, cfg.DynamoTables.Products)
	orderRepo := dynamo.NewOrderRepo(dynamoClient, cfg.DynamoTables.Orders)
	reviewRepo := dynamo.NewReviewRepo(dynamoClient, cfg.DynamoTables.Reviews)
	addressRepo := dynamo.NewAddressRepo(dynamoClient, cfg.DynamoTables.Addresses)
	subscriptionRepo := dynamo.NewSubscriptionRepo(dynamoClient, cfg.DynamoTables.Subscriptions)

	checks := map[string]handler.Check{
		"dynamodb": func(ctx context.Context) error { return dynamo.Ping(ctx, dynamoClient, cfg.DynamoTables.Users) },
	}

	// S3 media store.
	s3Client, err := s3infra.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("s3 client: %w", err)
	}
	media := s3infra.NewMediaStore(s3Client, cfg.S3BucketName)

	m := metrics.New()
	busOpts := []eventbus.BusOption{
		eventbus.WithLogger(logger),
		eventbus.WithRecorder(m),
	}

	// Idempotency store: Redis when configured, process memory otherwise.
	if cfg.RedisAddr != "" {
		store, err := cache.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer store.Close()
		checks["redis"] = store.Ping
		busOpts = append(busOpts, eventbus.WithIdempotency(store, cfg.IdempotencyTTL))
	} else {
		logger.Warn("REDIS_ADDR not set, de-duplication is local to this process")
		store := cache.NewMemoryStore(time.Minute)
		defer store.Close()
		busOpts = append(busOpts, eventbus.WithIdempotency(store, cfg.IdempotencyTTL))
	}

	// SNS mirror (optional).
	if cfg.SNSTopicARN != "" {
		fwd, err := sns.NewForwarder(ctx, cfg)
		if err != nil {
			logger.Warn("SNS forwarder not available", "error", err)
		} else {
			busOpts = append(busOpts, eventbus.WithForwarder(fwd))
		}
	}

	bus := eventbus.New(eventbus.Config{
		Workers:        cfg.Events.Workers,
		MaxAttempts:    cfg.Events.MaxAttempts,
		RetryBackoff:   cfg.Events.RetryBackoff,
		HandlerTimeout: cfg.Events.HandlerTimeout,
	}, busOpts...)

	var resolver identityinfra.Resolver
	if cfg.IdentityAPIKey != "" {
		resolver = identityinfra.NewClient(cfg.IdentityAPIURL, cfg.IdentityAPIKey, cfg.OutboundTimeout)
	} else {
		logger.Warn("IDENTITY_API_KEY not set, resolving emails from the users table")
		resolver = identityinfra.NewStoreResolver(userRepo)
	}

	mailer := smtp.NewMailer(cfg)
	renderer := mailtmpl.New(cfg.PublicBaseURL, cfg.CurrencySymbol)

	subscriptionSvc := subscription.NewService(subscription.ServiceDeps{
		SubscriptionRepo: subscriptionRepo,
		ProductRepo:      productRepo,
		Resolver:         resolver,
		Mailer:           mailer,
		Renderer:         renderer,
		Metrics:          m,
		OutboundTimeout:  cfg.OutboundTimeout,
		Logger:           logger,
	})

	svc := events.Services{
		Identity: identity.NewService(identity.ServiceDeps{
			UserRepo:         userRepo,
			ProductRepo:      productRepo,
			ReviewRepo:       reviewRepo,
			AddressRepo:      addressRepo,
			SubscriptionRepo: subscriptionRepo,
			Media:            media,
			MediaPrefix:      s3infra.UserPrefix,
			Logger:           logger,
		}),
		Orders: order.NewService(order.ServiceDeps{
			OrderRepo:   orderRepo,
			ProductRepo: productRepo,
			AddressRepo: addressRepo,
			Resolver:    resolver,
			Mailer:      mailer,
			Renderer:    renderer,
			Metrics:     m,
			Logger:      logger,
		}),
		Subscriptions: subscriptionSvc,
		Reviews: review.NewService(review.ServiceDeps{
			ProductRepo: productRepo,
			UserRepo:    userRepo,
			Resolver:    resolver,
			Mailer:      mailer,
			Renderer:    renderer,
			Metrics:     m,
			Logger:      logger,
		}),
		Retention: retention.NewService(retention.ServiceDeps{
			SubscriptionRepo:      subscriptionRepo,
			OrderRepo:             orderRepo,
			SubscriptionRetention: cfg.Retention.Subscriptions,
			OrderRetention:        cfg.Retention.Orders,
			Metrics:               m,
			Logger:                logger,
		}),
	}

	if err := events.Register(bus, svc, events.Config{
		OrderBatch:  eventbus.BatchPolicy{MaxSize: cfg.Events.OrderBatchMaxSize, Timeout: cfg.Events.OrderBatchTimeout},
		RetentionAt: eventbus.DailyAt{Hour: cfg.Retention.Hour, Minute: cfg.Retention.Minute},
	}, logger); err != nil {
		return fmt.Errorf("register handlers: %w", err)
	}
	if err := bus.Start(ctx); err != nil {
		return fmt.Errorf("start bus: %w", err)
	}

	// JWT verifier (optional; authenticated routes answer 401 without it).
	deps := &transporthttp.Deps{
		Bus:           bus,
		Catalog:       catalog.NewService(catalog.ServiceDeps{ProductRepo: productRepo, Bus: bus}),
		Subscriptions: subscriptionSvc,
		Metrics:       m.Handler(),
		Checks:        checks,
		Logger:        logger,
	}
	if v, err := jwtinfra.NewVerifierFromFile(cfg.JWTPublicKeyPath); err == nil {
		deps.Verifier = v
	} else {
		logger.Warn("JWT verifier not available", "error", err)
	}

	router, stopRouter := transporthttp.NewRouter(cfg, deps)
	defer stopRouter()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		if err != nil {
			logger.Error("server error", "error", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	// The bus drains queued events and open batches after the server stops accepting new ones.
	if err := bus.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("bus stop: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
