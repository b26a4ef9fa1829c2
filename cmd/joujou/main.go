package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/g2p/joujou/internal/app"
	"github.com/g2p/joujou/internal/config"
)

func main() {
	device := flag.String("device", "", "receiver address as host:port, skips discovery")
	port := flag.String("port", "", "HTTP port or inclusive range, e.g. 8000 or 8000-8010")
	start := flag.Int("start", 1, "1-based queue position to start playback at")
	flag.Parse()

	root := flag.Arg(0)
	if root == "" || flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: joujou [flags] <music-directory>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	fxApp := fx.New(
		// Logger configuration
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),

		// Provide dependencies
		fx.Provide(
			newLogger,
			config.Load,
			func() app.Params {
				return app.Params{Root: root, Start: *start, Device: *device, Port: *port}
			},
			app.New,
		),

		// Lifecycle hooks
		fx.Invoke(registerHooks),
	)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Start the application
	if err := fxApp.Start(ctx); err != nil {
		panic(err)
	}

	// Wait for a signal or for the session to end on its own
	select {
	case <-ctx.Done():
	case <-fxApp.Done():
	}

	// Stop the application gracefully
	if err := fxApp.Stop(context.Background()); err != nil {
		panic(err)
	}
}

// newLogger creates a new zap logger instance
func newLogger() (*zap.Logger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return logger, nil
}

// registerHooks sets up application lifecycle hooks
func registerHooks(lc fx.Lifecycle, logger *zap.Logger, a *app.App) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Joujou started")
			return a.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down")
			return a.Stop(ctx)
		},
	})
}
