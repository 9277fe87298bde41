package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/poolpilot/internal/domain"
)

// Run dispatches to the configured mode and blocks until the mode finishes
// or the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	switch a.cfg.Mode {
	case "serve":
		return a.runServe(ctx)
	case "invest":
		return a.runInvest(ctx)
	case "monitor":
		return a.runServe(ctx)
	default:
		return fmt.Errorf("app: unknown mode %q", a.cfg.Mode)
	}
}

// runServe runs the HTTP API, the WebSocket hub, and the bridge that relays
// progress updates from the Redis bus to connected clients.
func (a *App) runServe(ctx context.Context) error {
	if a.server == nil {
		return errors.New("app: server is disabled in configuration")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.hub.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		err := a.bus.Subscribe(gctx, a.hub.Publish)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return a.server.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// runInvest executes a single investment from configuration and exits. The
// process exit code reflects the outcome.
func (a *App) runInvest(ctx context.Context) error {
	req := a.oneShotRequest()
	a.logger.Info("starting one-shot investment",
		slog.String("user_id", req.UserID),
		slog.Float64("total_usd", req.TotalUSD),
		slog.Int("risky_bps", req.RiskyBps),
	)

	outcome, err := a.invest.Invest(ctx, req)
	if err != nil {
		return fmt.Errorf("app: invest: %w", err)
	}
	if outcome.Status == domain.OutcomeFailed {
		return fmt.Errorf("app: operation %s failed at %s/%s: %w",
			outcome.OperationID, outcome.FailedLeg, outcome.FailedStep, outcome.Err)
	}

	a.logger.Info("investment completed",
		slog.String("operation_id", outcome.OperationID),
		slog.Int("positions", len(outcome.Positions)),
	)
	return nil
}
