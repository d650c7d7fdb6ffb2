// Package cli holds the startup steps shared by cmd/fintrack and
// cmd/fintrack-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/config"
	"fintrack/internal/log"
)

// Bootstrap loads .env (when present) and the environment configuration,
// then installs a logger for component as the process default.
func Bootstrap(component string) (*config.Config, *log.Logger) {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return cfg, logger
}

// Must exits the process when err is non-nil.
func Must(logger *log.Logger, msg string, err error, args ...any) {
	if err == nil {
		return
	}
	logger.Error(msg, append([]any{log.FieldError, err.Error()}, args...)...)
	os.Exit(1)
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// InitBackend builds the configured data backend or exits.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	Must(logger, "Invalid backend configuration", err, log.FieldBackend, cfg.DataBackend)
	be, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	Must(logger, "Failed to initialize backend", err, log.FieldBackend, cfg.DataBackend)
	return be
}

// LedgerPublisher connects the optional ledger change publisher. It returns
// nil when AMQP is not configured or the broker cannot be reached; the
// mirror worker's periodic resync then catches up.
func LedgerPublisher(logger *log.Logger, cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - ledger mirror will rely on periodic resync")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Warn("AMQP unavailable - ledger mirror will rely on periodic resync", log.FieldError, err.Error())
		return nil
	}
	logger.Info("Publishing ledger changes", "exchange", cfg.AMQPExchange)
	return client
}
