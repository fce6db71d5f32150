package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"saldo/internal/amqp"
	"saldo/internal/backend"
	"saldo/internal/cache"
	"saldo/internal/config"
	apphttp "saldo/internal/http"
	"saldo/internal/log"
	"saldo/internal/services"
	"saldo/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: log.ComponentApp,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.Slog()).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", log.FieldError, err.Error(), log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	if res.Cleanup != nil {
		defer func() {
			if err := res.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", log.FieldError, err.Error())
			}
		}()
	}

	svc := services.NewBalanceService(res.Backend.Transactions, res.Backend.Accounts, services.Options{
		EnableMultiAccount:     cfg.EnableMultiAccount,
		EnableMonthlyTransfers: cfg.EnableMonthlyTransfers,
		CacheTimeout:           cfg.CacheTimeout,
		DefaultAccountID:       cfg.DefaultAccountID,
		MaxCacheEntries:        cfg.MaxCacheEntries,
		TrackInvestments:       cfg.TrackInvestments,
		Debug:                  cfg.BalanceDebug,
	}, logger)
	if !res.ReadOnly() {
		svc.WithWriter(res.Backend.Writer)
	}

	cacheManager := cache.NewManager(logger.WithComponent(log.ComponentCache).Slog())
	cacheManager.Register(svc.Cache())
	if cfg.CacheCleanupInterval > 0 {
		cacheManager.StartCleanup(cfg.CacheCleanupInterval)
	}
	defer cacheManager.Stop()

	// Change events are optional; without a broker every instance only sees
	// its own edits until entries expire.
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without change events", log.FieldError, err.Error())
		} else {
			defer amqpClient.Close()
			svc.WithPublisher(amqpClient)

			invalidator := worker.NewInvalidationWorker(svc, logger)
			go func() {
				if err := invalidator.Run(ctx, amqpClient); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Change event consumption stopped", log.FieldError, err.Error())
				}
			}()
			logger.Info("AMQP change events enabled", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - cache invalidation is local only")
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ready:              apphttp.ReadinessCheck(res.Health),
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		cancel()
	}()

	logger.Info("Starting saldo server",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		"read_only", res.ReadOnly(),
		"multi_account", cfg.EnableMultiAccount)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
