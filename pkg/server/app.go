package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CoinTrack/internal/handler/ws"
	"CoinTrack/internal/usecase"
	"CoinTrack/pkg/config"
	xhttp "CoinTrack/pkg/http"
	applogger "CoinTrack/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	httpServer *xhttp.Server
	refresher  *usecase.Refresher
	hub        *ws.Hub
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	refresher *usecase.Refresher,
	hub *ws.Hub,
) *App {
	return &App{
		cfg:        cfg,
		logger:     l,
		httpServer: httpServer,
		refresher:  refresher,
		hub:        hub,
	}
}

// Run starts the application and blocks until interrupted or ctx ends.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	// initial page load happens synchronously so the first viewers see data
	if err := a.refresher.Start(ctx); err != nil {
		a.logger.Error("refresher start error", applogger.Error(err))
		return a.shutdown(err)
	}
	a.logger.Info("tracker started",
		applogger.String("source", a.cfg.Tracker.DefaultSource),
		applogger.Duration("refresh_interval", a.cfg.Tracker.RefreshInterval),
	)

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-a.httpServer.Err():
		a.logger.Error("http server failed", applogger.Error(runErr))
	}
	return a.shutdown(runErr)
}

// shutdown gracefully stops all services and returns cause.
func (a *App) shutdown(cause error) error {
	a.logger.Info("shutting down...")

	a.refresher.Stop()

	if a.hub != nil {
		a.hub.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout+time.Second)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	a.logger.Info("shutdown complete")
	return cause
}
