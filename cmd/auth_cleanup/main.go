package main

import (
	"context"
	"log"
	"time"

	"taskmanager/internal/config"
	"taskmanager/internal/database"
	"taskmanager/internal/logging"
	"taskmanager/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel).With("job", "auth_cleanup")

	db, err := database.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	ledger, closeLedger, err := repository.OpenLedger(ctx, db, cfg.Ledger)
	if err != nil {
		log.Fatalf("refresh token ledger: %v", err)
	}
	defer func() { _ = closeLedger() }()

	n, err := ledger.DeleteExpired(ctx)
	if err != nil {
		logger.Error("cleanup refresh tokens failed", "backend", cfg.Ledger.Backend, "error", err)
		return
	}
	logger.Info("auth cleanup completed", "backend", cfg.Ledger.Backend, "refresh_tokens", n)
}
