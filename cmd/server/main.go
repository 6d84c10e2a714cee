package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"farm-market-backend/internal/auth"
	"farm-market-backend/internal/config"
	"farm-market-backend/internal/database"
	"farm-market-backend/internal/importer"
	"farm-market-backend/internal/logging"
	"farm-market-backend/internal/server"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

// run owns every resource it opens, so the deferred cleanup happens before
// main decides the exit code.
func run(ctx context.Context) error {
	cfg := config.Load()

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	for _, w := range cfg.Warnings {
		log.Warn(w)
	}
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := database.Open(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Warn("close database", zap.Error(err))
		}
	}()

	if err := database.Bootstrap(db, log); err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}

	if cfg.SeedSampleData {
		if _, err := importer.New(db, log).SeedIfEmpty(ctx); err != nil {
			log.Error("seed sample data", zap.Error(err))
		}
	}

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	app := server.New(cfg, db, log, issuer)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Warn("shutdown", zap.Error(err))
		}
	}()

	log.Info("server listening", zap.String("port", cfg.HTTPPort), zap.String("db_driver", cfg.DBDriver))
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}
