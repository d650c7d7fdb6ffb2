package main

import (
	"os"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/log"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker)
	logger.Info("Starting fintrack-worker")
	cli.Must(logger, "Configuration validation failed", cfg.ValidateWorker())

	ctx, stop := cli.SignalContext()
	defer stop()

	be := cli.InitBackend(ctx, logger, cfg)
	defer be.Close()
	if be.Ledger == nil {
		logger.Error("Backend offers no cross-user ledger access", log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	sheetsClient, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger)
	cli.Must(logger, "Failed to initialize Google Sheets client", err)
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	cli.Must(logger, "Failed to initialize AMQP client", err)
	defer amqpClient.Close()

	mirror := worker.NewMirrorWorker(be.Ledger, sheetsClient, cfg.MirrorInterval, logger)
	cli.Must(logger, "Mirror worker stopped", mirror.Run(ctx, amqpClient))
	logger.Info("Worker shutdown complete")
}
