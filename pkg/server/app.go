package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FactorLens/internal/handler/ws"
	"FactorLens/internal/scheduler"
	"FactorLens/internal/usecase"
	"FactorLens/pkg/config"
	xhttp "FactorLens/pkg/http"
	pkgkafka "FactorLens/pkg/kafka"
	applogger "FactorLens/pkg/logger"
)

type closer struct {
	name string
	fn   func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	svc        *usecase.RiskService
	httpServer *xhttp.Server
	hub        *ws.Hub
	scheduler  *scheduler.Scheduler
	consumer   *pkgkafka.Consumer
	refresh    pkgkafka.MessageHandler
	closers    []closer
}

// New creates a new App instance. consumer and refresh may be nil when Kafka
// is disabled.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	svc *usecase.RiskService,
	httpServer *xhttp.Server,
	hub *ws.Hub,
	sched *scheduler.Scheduler,
	consumer *pkgkafka.Consumer,
	refresh pkgkafka.MessageHandler,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		l:          l,
		svc:        svc,
		httpServer: httpServer,
		hub:        hub,
		scheduler:  sched,
		consumer:   consumer,
		refresh:    refresh,
	}
}

// AddCloser registers a resource released on shutdown. Closers run in reverse
// registration order.
func (a *App) AddCloser(name string, fn func() error) {
	if fn != nil {
		a.closers = append(a.closers, closer{name: name, fn: fn})
	}
}

// Service exposes the risk service, mainly for one-shot runs.
func (a *App) Service() *usecase.RiskService { return a.svc }

// RunOnce performs a single refresh and releases every resource.
func (a *App) RunOnce(ctx context.Context) error {
	defer a.release()
	if err := a.svc.Restore(ctx); err != nil {
		a.l.Warn("restore failed", applogger.Error(err))
	}
	res, err := a.svc.Refresh(ctx, a.cfg.Engine.Window)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	a.l.Info("one-shot refresh complete",
		applogger.String("run_id", res.ID),
		applogger.Int64("version", res.Version),
		applogger.Int("fitted", res.SuccessCount),
		applogger.Int("skipped", len(res.Skipped)))
	return nil
}

// Run starts the HTTP server, scheduler and refresh consumer, then blocks
// until ctx is cancelled or the HTTP listener fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.svc.Restore(ctx); err != nil {
		a.l.Warn("restore failed", applogger.Error(err))
	}

	if a.scheduler != nil {
		job := scheduler.RefreshJob{Service: a.svc, Window: a.cfg.Engine.Window}
		if a.cfg.Engine.RefreshCron != "" {
			if err := a.scheduler.AddJob(a.cfg.Engine.RefreshCron, job); err != nil {
				return err
			}
		}
		a.scheduler.Start()
		a.l.Info("refresh schedule configured",
			applogger.String("cron", a.cfg.Engine.RefreshCron),
			applogger.Bool("run_on_start", a.cfg.Engine.RunOnStart))
		if a.cfg.Engine.RunOnStart {
			a.scheduler.Go(job)
		}
	}

	if a.consumer != nil && a.refresh != nil {
		a.consumer.RegisterHandler(a.refresh)
		if err := a.consumer.Start(); err != nil {
			return fmt.Errorf("start kafka consumer: %w", err)
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.refresh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
	case runErr = <-a.httpServer.Errors():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout+5*time.Second)
	defer cancel()
	return errors.Join(runErr, a.shutdown(shutdownCtx))
}

// shutdown stops inbound traffic first, then background work, then closes
// infrastructure clients.
func (a *App) shutdown(ctx context.Context) error {
	a.l.Info("shutting down...")
	var errs []error

	if err := a.httpServer.Stop(ctx); err != nil {
		errs = append(errs, err)
		a.l.Error("http shutdown error", applogger.Error(err))
	}
	if a.hub != nil {
		a.hub.Close()
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			errs = append(errs, err)
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.scheduler != nil {
		if err := a.scheduler.Stop(ctx); err != nil {
			errs = append(errs, err)
			a.l.Warn("scheduler stop error", applogger.Error(err))
		}
	}

	a.release()
	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) release() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.l.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
		}
	}
	a.closers = nil
}
