// Package app wires the whole pipeline together: scan the music
// directory, find and connect to a receiver, serve the files over HTTP,
// load the queue, and bridge the running session onto the session bus.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/g2p/joujou/internal/cast"
	"github.com/g2p/joujou/internal/castv2"
	"github.com/g2p/joujou/internal/config"
	"github.com/g2p/joujou/internal/discovery"
	"github.com/g2p/joujou/internal/httpd"
	"github.com/g2p/joujou/internal/mpris"
	"github.com/g2p/joujou/internal/player"
	"github.com/g2p/joujou/internal/scan"
)

const (
	discoveryTimeout = 30 * time.Second
	drainTimeout     = 5 * time.Second
)

// Params carries the command-line inputs. Device and Port, when set,
// override the config file and environment.
type Params struct {
	Root   string
	Start  int // 1-based queue position
	Device string
	Port   string
}

// App runs one cast session from start to finish.
type App struct {
	logger     *zap.Logger
	cfg        *config.Config
	params     Params
	shutdowner fx.Shutdowner
	cancel     context.CancelFunc
}

// New creates the application
func New(logger *zap.Logger, cfg *config.Config, params Params, shutdowner fx.Shutdowner) *App {
	return &App{
		logger:     logger,
		cfg:        cfg,
		params:     params,
		shutdowner: shutdowner,
	}
}

// Start launches the session in a goroutine and returns immediately.
// When the session ends, for any reason, it asks fx to shut down.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go func() {
		if err := a.run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("Session ended with error", zap.Error(err))
		} else {
			a.logger.Info("Session ended")
		}
		if err := a.shutdowner.Shutdown(); err != nil {
			a.logger.Warn("Shutdown request failed", zap.Error(err))
		}
	}()
	return nil
}

// Stop cancels the running session.
func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}

func (a *App) run(ctx context.Context) error {
	pl, err := scan.Directory(a.logger, a.params.Root)
	if err != nil {
		return err
	}
	if len(pl.Entries) == 0 {
		return fmt.Errorf("no playable files under %s", a.params.Root)
	}
	start := a.params.Start - 1
	if start < 0 || start >= len(pl.Entries) {
		return fmt.Errorf("start position %d outside queue of %d entries", a.params.Start, len(pl.Entries))
	}

	addr := a.params.Device
	if addr == "" {
		addr = a.cfg.Device
	}
	if addr == "" {
		dctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
		addr, err = discovery.Find(dctx, a.logger)
		cancel()
		if err != nil {
			return fmt.Errorf("discover receiver: %w", err)
		}
	}

	device, err := castv2.Dial(ctx, a.logger, addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer device.Close()

	if err := device.Connect(ctx, cast.DefaultDestinationID); err != nil {
		return err
	}
	application, err := device.Launch(ctx, cast.DefaultMediaReceiverAppID)
	if err != nil {
		return fmt.Errorf("launch media receiver: %w", err)
	}
	if err := device.Connect(ctx, application.TransportID); err != nil {
		return err
	}

	if a.params.Port != "" {
		a.cfg.Port = a.params.Port
	}
	ports, err := a.cfg.Ports()
	if err != nil {
		return err
	}
	listener, err := httpd.Listen(device.LocalAddr(), ports)
	if err != nil {
		return fmt.Errorf("bind http listener: %w", err)
	}
	srv := httpd.New(a.logger, listener, pl)
	srv.Start()
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := srv.Shutdown(dctx); err != nil {
			a.logger.Warn("HTTP shutdown failed", zap.Error(err))
		}
	}()

	items := make([]cast.QueueItem, len(pl.Entries))
	for i, ent := range pl.Entries {
		items[i] = cast.QueueItem{
			Media: &cast.MediaInformation{
				ContentID:   srv.TrackURL(i),
				StreamType:  cast.StreamTypeBuffered,
				ContentType: ent.MIME,
				Metadata:    ent.Metadata,
			},
		}
	}
	media, err := device.LoadQueue(ctx, application.TransportID, items, start)
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}
	receiver, err := device.ReceiverStatus(ctx)
	if err != nil {
		return err
	}

	sess := player.NewSession(a.logger, device, application.TransportID, media, receiver)

	conn, err := mpris.SessionBus()
	if err != nil {
		return fmt.Errorf("connect to session bus: %w", err)
	}
	bridge := mpris.NewBridge(a.logger, conn, sess, a.cancel)
	if err := bridge.Start(); err != nil {
		conn.Close()
		return fmt.Errorf("register media player: %w", err)
	}
	defer bridge.Close()

	a.logger.Info("Session running",
		zap.String("device", addr),
		zap.Int("mediaSession", sess.MediaSessionID()),
		zap.Int("entries", len(pl.Entries)))

	return sess.Run(ctx, bridge)
}
