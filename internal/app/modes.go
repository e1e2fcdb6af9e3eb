package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/veilco/market-creation/internal/notify"
	"github.com/veilco/market-creation/internal/server"
	"github.com/veilco/market-creation/internal/server/handler"
	"github.com/veilco/market-creation/internal/server/ws"
	"github.com/veilco/market-creation/internal/service"
	"github.com/veilco/market-creation/internal/worker"
)

// APIMode runs the HTTP + WebSocket server without the reconciler. Use it
// when a dedicated worker deployment settles activations.
func (a *App) APIMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting api mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	a.startNotifier(ctx, g, deps)
	return g.Wait()
}

// WorkerMode runs only the reconciliation loop.
func (a *App) WorkerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting worker mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startReconciler(ctx, g, deps)
	a.startNotifier(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the API server and the reconciler in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	a.startReconciler(ctx, g, deps)
	a.startNotifier(ctx, g, deps)
	return g.Wait()
}

func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Server.Enabled {
		return
	}

	markets := service.NewMarketService(deps.MarketStore, deps.SignalBus, a.logger)
	hub := ws.NewHub(deps.SignalBus, a.logger)

	srv := server.NewServer(
		server.Config{
			Port:            a.cfg.Server.Port,
			CORSOrigins:     a.cfg.Server.CORSOrigins,
			APIKey:          a.cfg.Server.APIKey,
			RateLimit:       a.cfg.Server.RateLimit,
			RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
		},
		server.Handlers{
			Health:     handler.NewHealthHandler(a.logger),
			Markets:    handler.NewMarketHandler(markets, a.logger),
			Categories: handler.NewCategoryHandler(),
		},
		hub,
		deps.RateLimiter,
		a.logger,
	)

	g.Go(func() error {
		return hub.Run(ctx)
	})
	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func (a *App) startReconciler(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Worker.Enabled {
		return
	}
	if deps.Chain == nil {
		a.logger.WarnContext(ctx, "reconciler disabled: no chain client wired")
		return
	}

	opts := []worker.Option{
		worker.WithSignalBus(deps.SignalBus),
	}
	if a.cfg.Worker.Interval.Duration > 0 {
		opts = append(opts, worker.WithInterval(a.cfg.Worker.Interval.Duration))
	}
	if a.cfg.Worker.UseLock {
		opts = append(opts, worker.WithLockManager(deps.LockManager))
	}
	if deps.Archiver != nil {
		opts = append(opts, worker.WithArchiver(deps.Archiver))
	}

	rec := worker.NewReconciler(deps.MarketStore, deps.Chain, a.logger, opts...)
	g.Go(func() error {
		return rec.Run(ctx)
	})
}

func (a *App) startNotifier(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if a.cfg.Notify.TelegramToken == "" && a.cfg.Notify.DiscordWebhookURL == "" {
		return
	}

	listener := notify.NewListener(deps.SignalBus, deps.Notifier, a.logger)
	g.Go(func() error {
		err := listener.Run(ctx)
		if err != nil && err != context.Canceled {
			a.logger.ErrorContext(ctx, "notify listener stopped",
				slog.String("error", err.Error()),
			)
		}
		return err
	})
}
