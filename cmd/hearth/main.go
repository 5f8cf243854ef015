package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/hearth/internal/config"
	"github.com/dukerupert/hearth/internal/database"
	"github.com/dukerupert/hearth/internal/docstore"
	"github.com/dukerupert/hearth/internal/logging"
	"github.com/dukerupert/hearth/internal/scheduler"
	"github.com/dukerupert/hearth/internal/server"
)

const rateLimitIdle = 10 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hearth: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var docs docstore.Store
	if cfg.DocstoreURL == "" {
		logger.Warn("HEARTH_DOCSTORE_URL not set, households are kept in memory")
		docs = docstore.NewMemory()
	} else {
		pg, err := docstore.NewPostgres(ctx, cfg.DocstoreURL, logger.With("component", "docstore"))
		if err != nil {
			return fmt.Errorf("open document store: %w", err)
		}
		defer pg.Close()
		docs = pg
	}

	srv := server.New(cfg, db, docs, logger)

	sched := scheduler.New(cfg.Location, logger.With("component", "scheduler"))
	if err := sched.Add("reminders", cfg.ReminderSchedule, srv.ReminderJob().Run); err != nil {
		return err
	}
	if srv.BackupManager().Enabled() {
		if err := sched.Add("backup", cfg.BackupSchedule, srv.BackupManager().RunJob); err != nil {
			return err
		}
	} else {
		logger.Info("backups disabled: S3 or passphrase not configured")
	}
	if err := sched.Add("rate-limit-cleanup", "@every 10m", func(context.Context) error {
		srv.RateLimiter().Cleanup(rateLimitIdle)
		return nil
	}); err != nil {
		return err
	}
	sched.Start(ctx)
	defer sched.Stop()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("hearth running", "addr", "http://localhost:"+cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
