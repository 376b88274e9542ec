package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"tally/internal/cache"
	"tally/internal/cli"
	"tally/internal/core"
	apphttp "tally/internal/http"
	"tally/internal/profile"
	"tally/internal/storage"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger("info")
	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.LogLevel != "info" {
		logger = cli.SetupLogger(cfg.LogLevel)
	}

	var repo profile.Repository
	switch cfg.DataBackend {
	case "sqlite":
		sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
		defer sqliteRepo.Close()
		repo = sqliteRepo
		logger.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath)
	default:
		repo = storage.NewMemoryRepository()
		logger.Info("Initialized memory backend")
	}

	defaults := core.MinimalDefaultCategories
	if cfg.CategoryDefaults == "extended" {
		defaults = core.DefaultCategories
	}

	session := profile.NewSession(repo, profile.Options{
		DefaultCategories:  defaults,
		DecorateCategories: cfg.DecorateCategories,
	})

	// Reopen the profile that was active when the process last stopped.
	if p, err := session.Resume(context.Background()); err != nil {
		logger.Warn("Could not resume previous session", "error", err)
	} else if p != nil {
		logger.Info("Resumed session", "username", p.Username)
	}

	srv := apphttp.NewServer(":"+cfg.Port, session)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	caches := cache.NewManager()
	srv.Caches(caches)
	caches.StartCleanup(10 * time.Minute)
	defer caches.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting tally server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
