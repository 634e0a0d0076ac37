package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	api "github.com/telewatch/server/internal/api/http"
	"github.com/telewatch/server/internal/api/http/handler"
	archive "github.com/telewatch/server/internal/archive/minio"
	"github.com/telewatch/server/internal/config"
	"github.com/telewatch/server/internal/logger"
	"github.com/telewatch/server/internal/model"
	"github.com/telewatch/server/internal/notify"
	"github.com/telewatch/server/internal/platform/devgate"
	"github.com/telewatch/server/internal/repository/postgres"
	"github.com/telewatch/server/internal/service"
	"github.com/telewatch/server/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	sessionRepo := postgres.NewSessionRepository(db)
	filterRepo := postgres.NewFilterRepository(db)
	tokenManager := token.NewJWT(cfg.JWT.Secret)

	if !cfg.Platform.DevMode {
		logger.Fatal("this build only ships the development platform gate, set PLATFORM_DEV_MODE=true")
	}
	gate := devgate.New(cfg.Platform.DevCode, cfg.Platform.DevPassword, cfg.Feed.Buffer, logger)

	var archiver model.Archiver
	if cfg.Archive.Enabled {
		minioClient, err := minio.New(cfg.Archive.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.Archive.AccessKey, cfg.Archive.SecretKey, ""),
			Secure: cfg.Archive.UseSSL,
		})
		if err != nil {
			logger.Fatal("failed to create minio client", "error", err)
		}
		archiveClient, err := archive.NewClient(ctx, minioClient, cfg.Archive.Bucket)
		if err != nil {
			logger.Fatal("failed to initialize archive client", "error", err)
		}
		archiver = archiveClient
	}

	hub := notify.NewHub(cfg.Feed.Buffer, logger)
	forwarder := service.NewForwarder(hub, archiver, logger)
	engine := service.NewFilters(logger)
	monitors := service.NewMonitors(sessionRepo, filterRepo, gate, engine, forwarder,
		service.ReconnectPolicy{
			MaxAttempts: cfg.Reconnect.MaxAttempts,
			BaseDelay:   cfg.Reconnect.BaseDelay,
		}, logger)
	sessionsService := service.NewSessions(sessionRepo, filterRepo, monitors, logger)
	authService := service.NewAuth(sessionRepo, gate, logger)

	handlers := api.Handlers{
		Auth:    handler.NewAuth(authService, logger),
		Monitor: handler.NewMonitor(monitors, logger),
		Session: handler.NewSession(sessionsService, logger),
		Feed:    handler.NewFeed(hub, logger),
		// Token minting ships with the dev gate; production tokens are
		// issued out of band.
		Token: handler.NewToken(tokenManager, logger),
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTP.Port),
		Handler:           api.NewRouter(logger.With("component", "http"), tokenManager, handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("starting server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", "error", err)
			stop()
		}
	}()

	logAppVersion(logger)

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err)
	}
	monitors.Shutdown()

	wg.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion(l *logger.Logger) {
	l.Info("build info",
		"version", buildVersion,
		"date", buildDate,
		"commit", buildCommit)
}
