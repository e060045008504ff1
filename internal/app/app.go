package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/idaholeg/mediaportal/internal/catalog"
	"github.com/idaholeg/mediaportal/internal/config"
	"github.com/idaholeg/mediaportal/internal/domain"
	"github.com/idaholeg/mediaportal/internal/handler"
	"github.com/idaholeg/mediaportal/internal/resilience"
	"github.com/idaholeg/mediaportal/internal/storage"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 30 * time.Second

type App struct {
	cfg     *config.Config
	server  *fiber.App
	store   domain.MediaStore
	catalog *catalog.Service
}

func New() (*App, error) {
	cfg, err := config.Resolve(config.Options{})
	if err != nil {
		return nil, fmt.Errorf("resolving config: %w", err)
	}

	log.SetLevel(cfg.ParseLogLevel())

	store, err := storage.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening media store: %w", err)
	}

	app := &App{
		cfg:     cfg,
		store:   store,
		catalog: catalog.New(store, retryPolicyFor(cfg)),
	}
	app.setupHTTPServer()

	return app, nil
}

// retryPolicyFor encodes the per-backend failure posture: document-store
// calls are retried with backoff, relational calls propagate on the first
// failure.
func retryPolicyFor(cfg *config.Config) resilience.RetryPolicy {
	if cfg.Database.Type == config.BackendSQLite {
		return resilience.RetryPolicy{MaxAttempts: 1}
	}
	return resilience.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Delay:       cfg.Retry.Delay,
		Backoff:     cfg.Retry.BackoffFactor,
		Retryable:   []domain.Kind{domain.KindStorage},
	}
}

func (a *App) setupHTTPServer() {
	httpHandler := handler.NewHTTPHandler(a.catalog, catalog.NewLegacyService(a.catalog), a.cfg.API.Debug)

	a.server = handler.NewFiberApp()
	httpHandler.RegisterRoutes(a.server)
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.startServer()

	return a.waitForShutdown(ctx, cancel)
}

func (a *App) startServer() {
	addr := net.JoinHostPort(a.cfg.API.Host, strconv.Itoa(a.cfg.API.Port))

	log.WithFields(log.Fields{
		"component": "server",
		"address":   addr,
	}).Info("http server listening")

	if err := a.server.Listen(addr); err != nil {
		log.WithFields(log.Fields{
			"component": "server",
			"error":     err,
		}).Fatal("http server failed to start")
	}
}

func (a *App) waitForShutdown(ctx context.Context, cancel context.CancelFunc) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		log.WithField("reason", "context_cancelled").Info("initiating graceful shutdown")
	case sig := <-sigChan:
		log.WithField("signal", sig).Info("received shutdown signal")
	}

	cancel()
	return a.shutdown()
}

func (a *App) shutdown() error {
	log.Info("graceful shutdown started")

	if err := a.server.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.WithFields(log.Fields{
			"component": "server",
			"error":     err,
		}).Error("http server shutdown failed")
	}

	if err := a.store.Close(); err != nil {
		log.WithFields(log.Fields{
			"component": "database",
			"error":     err,
		}).Error("media store close failed")
		return err
	}

	log.Info("graceful shutdown completed")
	return nil
}
