package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/SigNoz/storefront-go-app/internal/api"
	"github.com/SigNoz/storefront-go-app/internal/db"
	"github.com/SigNoz/storefront-go-app/internal/lock"
	"github.com/SigNoz/storefront-go-app/internal/metrics"
	"github.com/SigNoz/storefront-go-app/internal/repository"
	"github.com/SigNoz/storefront-go-app/internal/repository/memory"
	"github.com/SigNoz/storefront-go-app/internal/repository/mysql"
	"github.com/SigNoz/storefront-go-app/internal/services"
	"github.com/SigNoz/storefront-go-app/pkg/config"
	"github.com/SigNoz/storefront-go-app/pkg/logger"
)

func main() {
	reconcileOnly := flag.Bool("reconcile", false, "run one counter reconciliation pass and exit")
	flag.Parse()

	decimal.MarshalJSONWithoutQuotes = true

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Init(cfg.AppEnv, cfg.OTELServiceName)

	if err := run(cfg, *reconcileOnly); err != nil {
		log.Fatal().Err(err).Msg("Server exited with error")
	}
}

func run(cfg *config.Config, reconcileOnly bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry metrics
	appMetrics, meterProvider, err := metrics.InitMetrics(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down meter provider")
		}
	}()

	store, closeStore, err := openStore(ctx, cfg, appMetrics)
	if err != nil {
		return err
	}
	defer closeStore()

	locker, closeLocker, err := openLocker(cfg)
	if err != nil {
		return err
	}
	defer closeLocker()
	locker = lock.Instrument(locker, appMetrics)

	// Initialize services
	productService := services.NewProductService(store.Products, appMetrics, cfg.ProductCacheTTL)
	cartService := services.NewCartService(store.Carts, store.Products, locker, appMetrics)
	favoriteService := services.NewFavoriteService(store.Favorites, store.Products, locker, appMetrics)
	reconciler := services.NewReconciler(favoriteService, store.Products, appMetrics)

	if reconcileOnly {
		_, err := reconciler.Reconcile(ctx)
		return err
	}
	if cfg.ReconcileInterval > 0 {
		log.Info().Dur("interval", cfg.ReconcileInterval).Msg("Scheduled reconciliation enabled")
		go reconciler.Run(ctx, cfg.ReconcileInterval)
	}

	app := api.NewApp(cfg, appMetrics, productService, cartService, favoriteService, reconciler)
	router := mux.NewRouter()
	app.SetupRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.AppPort).
			Str("store", cfg.StoreDriver).
			Str("lock", cfg.LockBackend).
			Str("otlp_endpoint", cfg.OTELExporterOTLPEndpoint).
			Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exited")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, m *metrics.AppMetrics) (repository.Store, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		store := memory.NewStore()
		if err := seedCatalog(ctx, store.Products); err != nil {
			return repository.Store{}, nil, fmt.Errorf("failed to seed catalog: %w", err)
		}
		log.Warn().Msg("Using in-memory store; data is lost on restart")
		return store, func() {}, nil
	}

	database, err := db.NewDB(cfg.GetDSN(), cfg.OTELServiceName)
	if err != nil {
		return repository.Store{}, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	schemaSQL, err := os.ReadFile(cfg.SchemaFile)
	if err != nil {
		log.Warn().Err(err).Msg("Could not read schema file, assuming database schema already exists")
	} else if err := database.InitSchema(ctx, string(schemaSQL)); err != nil {
		log.Warn().Err(err).Msg("Could not initialize schema, assuming database schema already exists")
	}

	return mysql.NewStore(database, m), func() { database.Close() }, nil
}

func openLocker(cfg *config.Config) (lock.Locker, func(), error) {
	if cfg.LockBackend != config.LockRedis {
		return lock.NewLocal(cfg.LockWait), func() {}, nil
	}

	client, err := cfg.Redis.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return lock.NewRedis(client, cfg.LockTTL, cfg.LockWait), func() { client.Close() }, nil
}
