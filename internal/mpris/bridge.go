package mpris

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/g2p/joujou/internal/cast"
	"github.com/g2p/joujou/internal/player"
)

// https://specifications.freedesktop.org/mpris-spec/latest/
const (
	// BusName is the well-known name the bridge claims.
	BusName = "org.mpris.MediaPlayer2.joujou"

	objectPath      = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	rootInterface   = "org.mpris.MediaPlayer2"
	playerInterface = "org.mpris.MediaPlayer2.Player"
	propsInterface  = "org.freedesktop.DBus.Properties"
)

// The bus time unit is microseconds; the protocol's is float seconds.
// Seconds to microseconds truncates toward zero.
const microsPerSecond = 1e6

func secondsToMicros(s float64) int64 {
	return int64(s * microsPerSecond)
}

func microsToSeconds(us int64) float64 {
	return float64(us) / microsPerSecond
}

// Controller is what the bridge needs from the session: control
// operations and the derived read-only projections.
type Controller interface {
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	SeekBy(ctx context.Context, offset float64) error
	SeekTo(ctx context.Context, position float64) error
	SetLoopMode(ctx context.Context, mode cast.RepeatMode) error
	SetShuffle(ctx context.Context, shuffle bool) error
	SetVolume(ctx context.Context, level float64) error

	PlaybackStatus() player.PlaybackStatus
	LoopStatus() player.LoopStatus
	Shuffle() bool
	Volume() float64
	Position() float64
	Metadata() (map[string]any, error)
	CanGoNext() bool
	CanGoPrevious() bool
}

var _ Controller = (*player.Session)(nil)

// diffedProps are the properties the refresh path watches for changes.
// Position is deliberately absent: it changes continuously and is only
// served on demand, never signalled.
var diffedProps = []string{
	"PlaybackStatus",
	"LoopStatus",
	"Metadata",
	"CanGoNext",
	"CanGoPrevious",
	"Shuffle",
}

// Bridge exposes one Controller as an MPRIS player on the session bus.
// It keeps the last published value of every watched property and emits a
// single batched PropertiesChanged signal carrying only the differences.
type Bridge struct {
	logger *zap.Logger
	conn   Conn
	ctl    Controller
	quit   func()

	mu   sync.Mutex
	last map[string]dbus.Variant
}

// NewBridge wires a controller to a bus connection. quit is invoked when
// a bus client calls Quit; it should tear the session down.
func NewBridge(logger *zap.Logger, conn Conn, ctl Controller, quit func()) *Bridge {
	return &Bridge{
		logger: logger,
		conn:   conn,
		ctl:    ctl,
		quit:   quit,
		last:   make(map[string]dbus.Variant),
	}
}

// Start exports the MPRIS objects and claims the well-known name. The
// watched properties are seeded from the current projections so startup
// does not fire a change signal.
func (b *Bridge) Start() error {
	props, err := b.playerProperties()
	if err != nil {
		return fmt.Errorf("initial properties: %w", err)
	}
	b.mu.Lock()
	for _, name := range diffedProps {
		b.last[name] = props[name]
	}
	b.mu.Unlock()

	if err := b.conn.Export(rootObject{b}, objectPath, rootInterface); err != nil {
		return fmt.Errorf("export root interface: %w", err)
	}
	if err := b.conn.Export(playerObject{b}, objectPath, playerInterface); err != nil {
		return fmt.Errorf("export player interface: %w", err)
	}
	if err := b.conn.Export(propertiesObject{b}, objectPath, propsInterface); err != nil {
		return fmt.Errorf("export properties interface: %w", err)
	}
	if err := b.exportIntrospection(); err != nil {
		return fmt.Errorf("export introspection: %w", err)
	}

	reply, err := b.conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s is already owned", BusName)
	}
	b.logger.Info("bus name claimed", zap.String("name", BusName))
	return nil
}

// Close releases the bus connection.
func (b *Bridge) Close() error {
	return b.conn.Close()
}

// RefreshMedia recomputes the media-derived properties and emits the ones
// that changed since the last publication, batched in one signal. No
// signal is sent when nothing changed.
func (b *Bridge) RefreshMedia() error {
	props, err := b.playerProperties()
	if err != nil {
		return err
	}
	changed := make(map[string]dbus.Variant)
	b.mu.Lock()
	for _, name := range diffedProps {
		v := props[name]
		if prev, ok := b.last[name]; !ok || !reflect.DeepEqual(prev.Value(), v.Value()) {
			changed[name] = v
			b.last[name] = v
		}
	}
	b.mu.Unlock()
	return b.emitChanged(changed)
}

// RefreshVolume handles the receiver-status side: volume has its own
// change signal and is diffed independently of the media properties.
func (b *Bridge) RefreshVolume() error {
	v := dbus.MakeVariant(b.ctl.Volume())
	changed := make(map[string]dbus.Variant)
	b.mu.Lock()
	if prev, ok := b.last["Volume"]; !ok || !reflect.DeepEqual(prev.Value(), v.Value()) {
		changed["Volume"] = v
		b.last["Volume"] = v
	}
	b.mu.Unlock()
	return b.emitChanged(changed)
}

func (b *Bridge) emitChanged(changed map[string]dbus.Variant) error {
	if len(changed) == 0 {
		return nil
	}
	return b.conn.Emit(objectPath, propsInterface+".PropertiesChanged",
		playerInterface, changed, []string{})
}

// playerProperties computes the full player property set from the current
// snapshots. No network I/O.
func (b *Bridge) playerProperties() (map[string]dbus.Variant, error) {
	md, err := b.ctl.Metadata()
	if err != nil {
		return nil, err
	}
	return map[string]dbus.Variant{
		"PlaybackStatus": dbus.MakeVariant(string(b.ctl.PlaybackStatus())),
		"LoopStatus":     dbus.MakeVariant(string(b.ctl.LoopStatus())),
		"Rate":           dbus.MakeVariant(1.0),
		"Shuffle":        dbus.MakeVariant(b.ctl.Shuffle()),
		"Metadata":       dbus.MakeVariant(metadataToBus(md)),
		"Volume":         dbus.MakeVariant(b.ctl.Volume()),
		"Position":       dbus.MakeVariant(secondsToMicros(b.ctl.Position())),
		"MinimumRate":    dbus.MakeVariant(1.0),
		"MaximumRate":    dbus.MakeVariant(1.0),
		"CanGoNext":      dbus.MakeVariant(b.ctl.CanGoNext()),
		"CanGoPrevious":  dbus.MakeVariant(b.ctl.CanGoPrevious()),
		// Only finite, seekable, pausable queues are ever loaded.
		"CanPlay":    dbus.MakeVariant(true),
		"CanPause":   dbus.MakeVariant(true),
		"CanSeek":    dbus.MakeVariant(true),
		"CanControl": dbus.MakeVariant(true),
	}, nil
}

func (b *Bridge) rootProperties() map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"Identity":            dbus.MakeVariant("joujou"),
		"CanQuit":             dbus.MakeVariant(true),
		"CanRaise":            dbus.MakeVariant(false),
		"CanSetFullscreen":    dbus.MakeVariant(false),
		"Fullscreen":          dbus.MakeVariant(false),
		"HasTrackList":        dbus.MakeVariant(false),
		"DesktopEntry":        dbus.MakeVariant(""),
		// OpenUri is unsupported, so both lists stay empty.
		"SupportedUriSchemes": dbus.MakeVariant([]string{}),
		"SupportedMimeTypes":  dbus.MakeVariant([]string{}),
	}
}

func metadataToBus(md map[string]any) map[string]dbus.Variant {
	out := make(map[string]dbus.Variant, len(md))
	for k, v := range md {
		out[k] = dbus.MakeVariant(v)
	}
	return out
}

// do runs a controller operation for a bus method call. Callers only get
// a failure outcome; the cause stays in the log.
func (b *Bridge) do(op string, f func(context.Context) error) *dbus.Error {
	if err := f(context.Background()); err != nil {
		b.logger.Error("command failed", zap.String("op", op), zap.Error(err))
		return dbus.NewError("org.freedesktop.DBus.Error.Failed",
			[]interface{}{op + " failed"})
	}
	return nil
}

func notSupported(what string) *dbus.Error {
	return dbus.NewError("org.freedesktop.DBus.Error.NotSupported",
		[]interface{}{what + " is not supported"})
}
