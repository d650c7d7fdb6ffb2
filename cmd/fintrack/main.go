package main

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"time"

	"fintrack/internal/assistant"
	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/core"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)
	cli.Must(logger, "Configuration validation failed", cfg.Validate())

	ctx, stop := cli.SignalContext()
	defer stop()

	be := cli.InitBackend(ctx, logger, cfg)
	defer be.Close()

	var publisher services.LedgerPublisher
	if client := cli.LedgerPublisher(logger, cfg); client != nil {
		defer client.Close()
		publisher = client
	}

	caches := cache.NewManager(logger)
	categories, categoryLRU := services.NewCategoryCache(be.Store, 256, 10*time.Minute)
	caches.Register("categories", categoryLRU)
	caches.StartCleanup(5 * time.Minute)
	defer caches.Stop()

	money := core.NewMoneyFormatter(cfg.Locale)
	svc := apphttp.Services{
		Accounts:     services.NewAccountService(be.Store, categories, logger),
		Wallets:      services.NewWalletService(be.Store, logger),
		Transactions: services.NewTransactionService(be.Store, categories, publisher, logger),
		Loader:       services.NewLoader(be.Store, be.Store, cfg.DefaultCurrency, logger),
		Assistant: assistant.NewService(be.Store, be.Store, be.Store,
			assistant.NewResponder(money, assistant.SharedRand{}),
			cfg.DefaultCurrency, logger),
	}

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		_, err := rand.Read(secret)
		cli.Must(logger, "Failed to generate session secret", err)
		logger.Warn("SESSION_SECRET not set - using a random secret, sessions end on restart")
	}
	sessions := auth.NewManager(secret, cfg.SessionTTL, cfg.CookieSecure)

	srv, err := apphttp.NewServer(svc, sessions, apphttp.Options{
		Addr:                   ":" + cfg.Port,
		StoreTimeout:           cfg.StoreTimeout,
		Money:                  money,
		Currency:               cfg.DefaultCurrency,
		RateLimitPerMinute:     cfg.RateLimitPerMinute,
		AuthRateLimitPerMinute: cfg.AuthRateLimitPerMinute,
		Ping:                   be.Ping,
		Caches:                 map[string]cache.StatsReporter{"categories": categoryLRU},
		Logger:                 logger,
	})
	cli.Must(logger, "Failed to build HTTP server", err)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting fintrack server", "port", cfg.Port, log.FieldBackend, cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		cli.Must(logger, "Server error", err, "port", cfg.Port)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err.Error())
	}
	logger.Info("Server stopped gracefully")
}
