// cmd/service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"github-dashboard/internal/api"
	"github-dashboard/internal/cache"
	"github-dashboard/internal/config"
	"github-dashboard/internal/github"
	"github-dashboard/internal/scheduler"
	"github-dashboard/internal/service"
	"github-dashboard/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully")

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Build the cache: file tier always, Postgres tier when configured
	fileStore, err := cache.NewFileStore(cfg.CacheDir)
	if err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	var cacheStore cache.Store = fileStore
	syncMode := "file"
	if cfg.DBURL != "" {
		dbpool, err := pgxpool.New(ctx, cfg.DBURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer dbpool.Close()
		logger.Info("Database connection established")

		if err := runMigrations(cfg.DBURL); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
		logger.Info("Database migrations applied successfully")

		cacheStore = cache.NewTiered(cache.NewPGStore(dbpool), fileStore, logger)
		syncMode = "db"
	}
	appCache := cache.New(cacheStore, logger)

	// 5. Initialize application components
	docs, err := store.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open data dir: %w", err)
	}
	ghClient := github.NewClient(cfg.GithubToken, cfg.GithubUsername, logger)
	svc := service.New(ghClient, appCache, docs, logger, cfg.GithubUsername, cfg.CacheTTL, cfg.CommitsTTL, syncMode)

	// 6. Optional periodic sync
	if cfg.SyncCron != "" {
		sched, err := scheduler.New(cfg.SyncCron, svc, logger)
		if err != nil {
			return fmt.Errorf("invalid SYNC_CRON: %w", err)
		}
		sched.Start()
		defer sched.Stop()
		logger.Info("Scheduled sync enabled", "cron", cfg.SyncCron)
	}

	// 7. Start the HTTP server
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewRouter(svc, docs, logger),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 8. Wait for shutdown signal or server failure
	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutdown signal received. Exiting.")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func runMigrations(dbURL string) error {
	m, err := migrate.New("file://migrations", dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
