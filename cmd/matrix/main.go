package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/matrix-todo/cmd/matrix/commands"
	"github.com/benvon/matrix-todo/internal/apperr"
	"github.com/benvon/matrix-todo/internal/app"
	"github.com/benvon/matrix-todo/internal/config"
	"github.com/benvon/matrix-todo/internal/logger"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var zapLogger *zap.Logger
	deps := &commands.Deps{}
	deps.Open = func(ctx context.Context) (*app.App, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		zapLogger, err = logger.New(logger.Options{Debug: cfg.Debug || deps.Debug})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		return app.New(ctx, cfg, zapLogger)
	}

	err := commands.NewRootCmd(deps).ExecuteContext(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if closeErr := deps.Close(closeCtx); closeErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to shut down cleanly: %v\n", closeErr)
	}
	cancel()
	if zapLogger != nil {
		_ = logger.Sync(zapLogger)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", apperr.Message(err))
		stop()
		os.Exit(1)
	}
}
