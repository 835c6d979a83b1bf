package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/veilvogue/marketapi/internal/api"
	"github.com/veilvogue/marketapi/internal/auth"
	"github.com/veilvogue/marketapi/internal/config"
	"github.com/veilvogue/marketapi/internal/events"
	"github.com/veilvogue/marketapi/internal/repository"
	"github.com/veilvogue/marketapi/internal/repository/memory"
	"github.com/veilvogue/marketapi/internal/repository/postgres"
	"github.com/veilvogue/marketapi/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Money goes over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	repos, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	defer closeStore()

	carts := service.NewCartService(repos, cfg.Cart, logger)
	orders := service.NewOrderService(repos, cfg.Checkout, logger)
	tokens := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, 15*time.Minute)

	router := api.NewRouter(cfg, api.Services{
		Carts:  carts,
		Orders: orders,
		Tokens: tokens,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	if cfg.Kafka.Enabled() {
		writer := events.NewKafkaWriter(cfg.Kafka)
		defer writer.Close()

		publisher := events.NewOutboxPublisher(repos.OrderEvent, events.NewBreakerWriter(writer, logger), cfg.Outbox, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			publisher.Run(ctx)
		}()
	} else {
		logger.Info("KAFKA_BROKERS not set, order events stay in the outbox")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening",
			zap.String("addr", server.Addr),
			zap.String("environment", cfg.Environment),
			zap.String("storage", cfg.StorageDriver),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
	wg.Wait()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}

	zapCfg := zap.NewDevelopmentConfig()
	if cfg.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = level
	return zapCfg.Build()
}

func openStore(cfg *config.Config, logger *zap.Logger) (*repository.Repositories, func(), error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		logger.Warn("Using in-memory storage, data is lost on restart")
		repos, _ := memory.NewRepositories()
		return repos, func() {}, nil
	}

	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Warn("Failed to close database", zap.Error(err))
		}
	}

	if cfg.Database.RunMigrations {
		if err := postgres.RunMigrations(db); err != nil {
			closeDB()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("Database migrations applied")
	}

	return postgres.NewRepositories(db, logger), closeDB, nil
}
