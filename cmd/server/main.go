// Package main runs the marketplace API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/shoplink/marketplace/internal/app"
	"github.com/shoplink/marketplace/internal/app/httpapi"
	"github.com/shoplink/marketplace/internal/app/storage/sqlite"
	"github.com/shoplink/marketplace/internal/config"
	"github.com/shoplink/marketplace/internal/platform/migrations"
	"github.com/shoplink/marketplace/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("server").WithError(err).Fatal("load configuration")
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}).WithField("component", "server")

	store, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer store.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), cfg.Database.OpTimeout)
	if err := migrations.Apply(migrateCtx, store.DB().DB, log); err != nil {
		cancelMigrate()
		log.WithError(err).Fatal("apply migrations")
	}
	cancelMigrate()

	application, err := app.New(app.Options{
		Store:            store,
		ReminderInterval: cfg.Reminders.Interval,
		ReminderBatch:    cfg.Reminders.BatchSize,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("build application")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Fatal("start services")
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      httpapi.NewHandler(application),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("http server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("service shutdown")
	}
	log.Info("server stopped")
}
