package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// shutdownContext is cancelled by SIGINT, SIGTERM or the parent.
func (app *App) shutdownContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
