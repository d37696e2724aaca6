package app

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const shutdownTimeout = 10 * time.Second

// Run starts the downstream, the metrics server and the bridge, then blocks
// until ctx is done or a shutdown signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := app.shutdownContext(ctx)
	defer stop()

	if app.server != nil {
		if err := app.server.Start(ctx); err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
	}

	downstreamErr := make(chan error, 1)
	go func() {
		downstreamErr <- app.downstream.Run(ctx)
	}()

	select {
	case <-app.downstream.Running():
	case err := <-downstreamErr:
		if err != nil {
			app.shutdown()
			return fmt.Errorf("downstream failed to start: %w", err)
		}
	case <-ctx.Done():
		app.shutdown()
		return nil
	}

	if err := app.Bridge.Start(ctx); err != nil {
		app.shutdown()
		return err
	}
	app.Logger.InfoContext(ctx, "Bridge running")

	<-ctx.Done()
	app.Logger.Info("Shutting down")
	app.shutdown()
	return nil
}

func (app *App) shutdown() {
	app.Bridge.Stop()

	var errs []error
	if err := app.downstream.Close(); err != nil {
		errs = append(errs, err)
	}
	if app.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		app.Logger.Error("Shutdown finished with errors", "error", err)
	}
}
