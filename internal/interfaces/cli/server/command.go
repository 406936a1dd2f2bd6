package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"mizan/internal/application/entitlement"
	"mizan/internal/domain/subscription"
	"mizan/internal/infrastructure/billing"
	"mizan/internal/infrastructure/cache"
	"mizan/internal/infrastructure/config"
	"mizan/internal/infrastructure/database"
	"mizan/internal/infrastructure/migration"
	"mizan/internal/infrastructure/pubsub"
	"mizan/internal/infrastructure/repository"
	httpRouter "mizan/internal/interfaces/http"
	"mizan/internal/shared/goroutine"
	"mizan/internal/shared/logger"
)

var (
	env         string
	autoMigrate bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server",
		Long:  `Start the Mizan entitlement server with the specified configuration.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Automatically run database migrations on startup (not recommended for production)")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	log.Infow("starting server", "environment", env, "auto-migrate", autoMigrate)

	gin.SetMode(mapEnvToGinMode(env))
	gin.DefaultWriter = io.Discard

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	if err := handleMigrations(cfg, log); err != nil {
		return fmt.Errorf("migration handling failed: %w", err)
	}

	// Redis is optional; the cached-tier hint and the cross-instance relay
	// simply switch off without it.
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		log.Warnw("redis unavailable, continuing without tier cache and event relay", "error", err)
	}
	defer cache.CloseRedis()
	redisClient := cache.GetRedis()

	catalogRepo := repository.NewCatalogRepository(database.Get(), log)

	var tierCache subscription.TierCache
	if redisClient != nil {
		tierCache = cache.NewRedisTierStore(redisClient, log)
	}

	billingClient := billing.NewHTTPClient(&cfg.Billing, log)
	factory := providerFactory(cfg, billingClient)

	stores := entitlement.NewManager(factory, catalogRepo, tierCache, log,
		entitlement.WithRetryDelay(time.Duration(cfg.Billing.RetryDelayMS)*time.Millisecond))
	defer stores.Close()

	var eventBus *pubsub.RedisEntitlementEventBus
	var publisher pubsub.EntitlementEventPublisher
	if redisClient != nil {
		eventBus = pubsub.NewRedisEntitlementEventBus(redisClient, log)
		publisher = eventBus
	}

	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()
	if eventBus != nil {
		goroutine.SafeGo(log, "entitlement-event-relay", func() {
			err := eventBus.Subscribe(relayCtx, func(ctx context.Context, event pubsub.EntitlementChangeEvent) {
				stores.RefreshUser(ctx, event.UserID)
			})
			if err != nil && relayCtx.Err() == nil {
				log.Errorw("entitlement event relay stopped", "error", err)
			}
		})
	}

	router := httpRouter.NewRouter(httpRouter.RouterDeps{
		Stores:        stores,
		BillingClient: billingClient,
		Publisher:     publisher,
		DB:            database.Get(),
		Redis:         redisClient,
		Config:        cfg,
		Logger:        log,
	})
	router.SetupRoutes()

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      router.GetEngine(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "address", cfg.Server.GetAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
		return err
	}

	log.Infow("server exited gracefully")
	return nil
}

func providerFactory(cfg *config.Config, client *billing.HTTPClient) entitlement.ProviderFactory {
	if cfg.Billing.Provider == "noop" {
		return func() subscription.BillingProvider {
			return billing.NewNoopProvider()
		}
	}
	return func() subscription.BillingProvider {
		return client.Session()
	}
}

func handleMigrations(cfg *config.Config, log logger.Interface) error {
	if autoMigrate || cfg.Database.Driver == "sqlite" {
		return migration.AutoMigrate(database.Get(), log)
	}

	version, dirty, err := migration.Version(database.Get(), cfg.Migration.ScriptsPath)
	if err != nil {
		log.Warnw("failed to check migration status", "error", err)
		return nil
	}
	log.Infow("current migration version", "version", version, "dirty", dirty)
	return nil
}

func mapEnvToGinMode(environment string) string {
	switch environment {
	case "production", "prod", "release":
		return "release"
	case "test", "testing":
		return "test"
	default:
		return "debug"
	}
}
