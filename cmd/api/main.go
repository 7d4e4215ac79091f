package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/customiseme/storefront-api/internal/handlers"
	"github.com/customiseme/storefront-api/internal/notifications"
	"github.com/customiseme/storefront-api/internal/payments"
	"github.com/customiseme/storefront-api/internal/platform/auth"
	"github.com/customiseme/storefront-api/internal/platform/config"
	pfirestore "github.com/customiseme/storefront-api/internal/platform/firestore"
	"github.com/customiseme/storefront-api/internal/platform/observability"
	"github.com/customiseme/storefront-api/internal/platform/secrets"
	firestoreRepo "github.com/customiseme/storefront-api/internal/repositories/firestore"
	"github.com/customiseme/storefront-api/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("storefront")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := secrets.NewFetcher(ctx, secrets.WithLogger(logger.Named("secrets")))
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher))
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.Firestore.ProjectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()

	topic := pubsubClient.Topic(cfg.Notifications.TopicID)
	defer topic.Stop()

	notifier, err := notifications.NewPubSubPublisher(topic)
	if err != nil {
		logger.Fatal("failed to initialise notification publisher", zap.Error(err))
	}

	paymentsLogger := logger.Named("payments")
	stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
		APIKey: cfg.PSP.StripeAPIKey,
		Logger: func(ctx context.Context, event string, fields map[string]any) {
			zFields := make([]zap.Field, 0, len(fields)+1)
			zFields = append(zFields, zap.String("event", event))
			for k, v := range fields {
				zFields = append(zFields, zap.Any(k, v))
			}
			paymentsLogger.Debug("stripe log", zFields...)
		},
		Clock: time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise stripe provider", zap.Error(err))
	}

	eventVerifier, err := payments.NewStripeEventVerifier(cfg.PSP.StripeWebhookSecret)
	if err != nil {
		logger.Fatal("failed to initialise stripe event verifier", zap.Error(err))
	}

	// Checkout works for anonymous customers, so a missing Firebase project
	// only disables account attribution.
	var tokenVerifier auth.TokenVerifier
	if strings.TrimSpace(cfg.Firebase.ProjectID) != "" {
		firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
		if err != nil {
			logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
		}
		tokenVerifier = firebaseVerifier
	} else {
		logger.Info("firebase project not configured; checkout runs guest-only")
	}

	counterRepo, err := firestoreRepo.NewCounterRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise counter repository", zap.Error(err))
	}
	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider, counterRepo)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	productRepo, err := firestoreRepo.NewProductRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise product repository", zap.Error(err))
	}

	pricingService, err := services.NewPricingService(services.PricingServiceDeps{
		Products: productRepo,
		Config:   cfg.Pricing,
	})
	if err != nil {
		logger.Fatal("failed to initialise pricing service", zap.Error(err))
	}
	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Pricing:  pricingService,
		Orders:   orderRepo,
		Checkout: stripeProvider,
		Config:   cfg.Orders,
		Clock:    time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}
	settlementService, err := services.NewSettlementService(services.SettlementServiceDeps{
		Orders:   orderRepo,
		Notifier: notifier,
		Config:   cfg.Notifications,
		Clock:    time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise settlement service", zap.Error(err))
	}
	statusService, err := services.NewStatusService(services.StatusServiceDeps{
		Orders:   orderRepo,
		Notifier: notifier,
	})
	if err != nil {
		logger.Fatal("failed to initialise status service", zap.Error(err))
	}
	lookupService, err := services.NewLookupService(services.LookupServiceDeps{
		Orders: orderRepo,
	})
	if err != nil {
		logger.Fatal("failed to initialise lookup service", zap.Error(err))
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfoFromEnv(startedAt)),
		handlers.WithReadinessCheck("firestore", firestoreCheck(firestoreClient)),
		handlers.WithReadinessCheck("pubsub", pubsubCheck(topic)),
	)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(cfg.Firestore.ProjectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(cfg.Firestore.ProjectID),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCheckoutRoutes(handlers.NewCheckoutHandlers(orderService).Routes),
		handlers.WithCheckoutMiddlewares(auth.OptionalIdentityMiddleware(tokenVerifier)),
		handlers.WithOrderRoutes(handlers.NewOrderHandlers(lookupService).Routes),
		handlers.WithWebhookRoutes(handlers.NewWebhookHandlers(eventVerifier, settlementService).Routes),
		handlers.WithAdminRoutes(handlers.NewAdminOrderHandlers(statusService).Routes),
		handlers.WithAdminMiddlewares(auth.RequireAPIKeyMiddleware(cfg.Admin.APIKeyHeader, cfg.Admin.APIKey)),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("storefront api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(started time.Time) handlers.BuildInfo {
	version := strings.TrimSpace(os.Getenv("API_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(os.Getenv("API_BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(os.Getenv("API_ENVIRONMENT"))
	if environment == "" {
		environment = "local"
	}
	return handlers.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func firestoreCheck(client *firestore.Client) handlers.ReadinessCheck {
	return func(ctx context.Context) error {
		iter := client.Collections(ctx)
		_, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		return err
	}
}

func pubsubCheck(topic *pubsub.Topic) handlers.ReadinessCheck {
	return func(ctx context.Context) error {
		exists, err := topic.Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("topic %s does not exist", topic.ID())
		}
		return nil
	}
}
