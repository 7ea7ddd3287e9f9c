package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"taskmanager/internal/config"
	"taskmanager/internal/database"
	"taskmanager/internal/events"
	"taskmanager/internal/logging"
	"taskmanager/internal/middleware"
	"taskmanager/internal/modules/auth"
	"taskmanager/internal/modules/task"
	jwtsvc "taskmanager/internal/pkg/jwt"
	"taskmanager/internal/repository"
	"taskmanager/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", "task-manager")
	slog.SetDefault(logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	if err := repository.AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	ledger, closeLedger, err := repository.OpenLedger(ctx, db, cfg.Ledger)
	cancel()
	if err != nil {
		log.Fatalf("refresh token ledger: %v", err)
	}
	logger.Info("refresh token ledger ready", "backend", cfg.Ledger.Backend)

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Events.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.Topic, logger)
		logger.Info("auth events enabled", "brokers", cfg.Events.KafkaBrokers, "topic", cfg.Events.Topic)
	}

	tokens, err := jwtsvc.New(jwtsvc.Config{
		AccessSecret:  cfg.Auth.AccessTokenSecret,
		RefreshSecret: cfg.Auth.RefreshTokenSecret,
		Issuer:        cfg.Auth.JWTIssuer,
	})
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	authService := auth.NewService(
		repository.NewUserRepository(db),
		ledger,
		tokens,
		publisher,
		logger,
		auth.Options{
			Rotation:      auth.RotationMode(cfg.Auth.RotationMode),
			RevokeOnReuse: cfg.Auth.RevokeOnReuse,
		},
	)
	taskService := task.NewService(repository.NewTaskRepository(db), logger)

	router, err := server.NewRouter(server.Deps{
		Logger:         logger,
		Tokens:         tokens,
		Binding:        middleware.BindingPolicy{Enforce: cfg.Auth.BindingEnforce},
		Auth:           auth.NewHandler(authService),
		Tasks:          task.NewHandler(taskService),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		TrustedProxies: cfg.TrustedProxies,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		log.Fatalf("router: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		logger.Info("api listening", "addr", srv.Addr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := publisher.Close(); err != nil {
		logger.Warn("close event publisher", "error", err)
	}
	if err := closeLedger(); err != nil {
		logger.Warn("close ledger", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info("api stopped")
}
