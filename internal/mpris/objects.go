package mpris

import (
	"context"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"go.uber.org/zap"

	"github.com/g2p/joujou/internal/cast"
	"github.com/g2p/joujou/internal/player"
)

// rootObject serves the org.mpris.MediaPlayer2 methods.
type rootObject struct {
	b *Bridge
}

func (o rootObject) Raise() *dbus.Error {
	// Nothing to raise, there is no window.
	return nil
}

func (o rootObject) Quit() *dbus.Error {
	o.b.logger.Info("quit requested over the bus")
	if o.b.quit != nil {
		o.b.quit()
	}
	return nil
}

// playerObject serves the org.mpris.MediaPlayer2.Player methods.
type playerObject struct {
	b *Bridge
}

func (o playerObject) Next() *dbus.Error {
	return o.b.do("next", o.b.ctl.Next)
}

func (o playerObject) Previous() *dbus.Error {
	return o.b.do("previous", o.b.ctl.Previous)
}

func (o playerObject) Pause() *dbus.Error {
	return o.b.do("pause", o.b.ctl.Pause)
}

// PlayPause branches on the current playback projection: pause while
// playing, play while paused or stopped.
func (o playerObject) PlayPause() *dbus.Error {
	if o.b.ctl.PlaybackStatus() == player.StatusPlaying {
		return o.b.do("pause", o.b.ctl.Pause)
	}
	return o.b.do("play", o.b.ctl.Play)
}

func (o playerObject) Stop() *dbus.Error {
	return o.b.do("stop", o.b.ctl.Stop)
}

func (o playerObject) Play() *dbus.Error {
	return o.b.do("play", o.b.ctl.Play)
}

func (o playerObject) Seek(offset int64) *dbus.Error {
	return o.b.do("seek", func(ctx context.Context) error {
		return o.b.ctl.SeekBy(ctx, microsToSeconds(offset))
	})
}

func (o playerObject) SetPosition(trackID dbus.ObjectPath, position int64) *dbus.Error {
	// TODO check trackID against the current queue item.
	o.b.logger.Debug("set position", zap.String("trackid", string(trackID)))
	return o.b.do("set position", func(ctx context.Context) error {
		return o.b.ctl.SeekTo(ctx, microsToSeconds(position))
	})
}

func (o playerObject) OpenUri(uri string) *dbus.Error {
	// Loading ad hoc URIs into an existing queue is never done.
	return notSupported("loading on the fly")
}

// propertiesObject serves org.freedesktop.DBus.Properties for both MPRIS
// interfaces. Reads are computed live from the snapshots; writable player
// properties forward to the controller.
type propertiesObject struct {
	b *Bridge
}

func (o propertiesObject) Get(iface, prop string) (dbus.Variant, *dbus.Error) {
	all, derr := o.GetAll(iface)
	if derr != nil {
		return dbus.Variant{}, derr
	}
	v, ok := all[prop]
	if !ok {
		return dbus.Variant{}, dbus.NewError("org.freedesktop.DBus.Error.UnknownProperty",
			[]interface{}{prop})
	}
	return v, nil
}

func (o propertiesObject) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	switch iface {
	case rootInterface:
		return o.b.rootProperties(), nil
	case playerInterface:
		props, err := o.b.playerProperties()
		if err != nil {
			o.b.logger.Error("property computation failed", zap.Error(err))
			return nil, dbus.NewError("org.freedesktop.DBus.Error.Failed",
				[]interface{}{"property computation failed"})
		}
		return props, nil
	default:
		return nil, dbus.NewError("org.freedesktop.DBus.Error.UnknownInterface",
			[]interface{}{iface})
	}
}

func (o propertiesObject) Set(iface, prop string, value dbus.Variant) *dbus.Error {
	switch iface {
	case rootInterface:
		if prop == "Fullscreen" {
			// Accepted and ignored, there is nothing to fullscreen.
			return nil
		}
	case playerInterface:
		switch prop {
		case "LoopStatus":
			mode, ok := value.Value().(string)
			if !ok {
				return invalidArgs(prop)
			}
			var repeat cast.RepeatMode
			switch player.LoopStatus(mode) {
			case player.LoopNone:
				repeat = cast.RepeatOff
			case player.LoopTrack:
				repeat = cast.RepeatSingle
			case player.LoopPlaylist:
				repeat = cast.RepeatAll
			default:
				return invalidArgs(prop)
			}
			return o.b.do("set loop status", func(ctx context.Context) error {
				return o.b.ctl.SetLoopMode(ctx, repeat)
			})
		case "Shuffle":
			shuffle, ok := value.Value().(bool)
			if !ok {
				return invalidArgs(prop)
			}
			return o.b.do("set shuffle", func(ctx context.Context) error {
				return o.b.ctl.SetShuffle(ctx, shuffle)
			})
		case "Volume":
			level, ok := value.Value().(float64)
			if !ok {
				return invalidArgs(prop)
			}
			return o.b.do("set volume", func(ctx context.Context) error {
				return o.b.ctl.SetVolume(ctx, level)
			})
		case "Rate":
			return notSupported("rate change")
		}
	}
	return dbus.NewError("org.freedesktop.DBus.Error.PropertyReadOnly",
		[]interface{}{prop})
}

func invalidArgs(prop string) *dbus.Error {
	return dbus.NewError("org.freedesktop.DBus.Error.InvalidArgs",
		[]interface{}{prop})
}

const introXML = `
<node>
  <interface name="org.mpris.MediaPlayer2">
    <method name="Raise"/>
    <method name="Quit"/>
    <property name="CanQuit" type="b" access="read"/>
    <property name="Fullscreen" type="b" access="readwrite"/>
    <property name="CanSetFullscreen" type="b" access="read"/>
    <property name="CanRaise" type="b" access="read"/>
    <property name="HasTrackList" type="b" access="read"/>
    <property name="Identity" type="s" access="read"/>
    <property name="DesktopEntry" type="s" access="read"/>
    <property name="SupportedUriSchemes" type="as" access="read"/>
    <property name="SupportedMimeTypes" type="as" access="read"/>
  </interface>
  <interface name="org.mpris.MediaPlayer2.Player">
    <method name="Next"/>
    <method name="Previous"/>
    <method name="Pause"/>
    <method name="PlayPause"/>
    <method name="Stop"/>
    <method name="Play"/>
    <method name="Seek">
      <arg direction="in" name="Offset" type="x"/>
    </method>
    <method name="SetPosition">
      <arg direction="in" name="TrackId" type="o"/>
      <arg direction="in" name="Position" type="x"/>
    </method>
    <method name="OpenUri">
      <arg direction="in" name="Uri" type="s"/>
    </method>
    <property name="PlaybackStatus" type="s" access="read"/>
    <property name="LoopStatus" type="s" access="readwrite"/>
    <property name="Rate" type="d" access="readwrite"/>
    <property name="Shuffle" type="b" access="readwrite"/>
    <property name="Metadata" type="a{sv}" access="read"/>
    <property name="Volume" type="d" access="readwrite"/>
    <property name="Position" type="x" access="read"/>
    <property name="MinimumRate" type="d" access="read"/>
    <property name="MaximumRate" type="d" access="read"/>
    <property name="CanGoNext" type="b" access="read"/>
    <property name="CanGoPrevious" type="b" access="read"/>
    <property name="CanPlay" type="b" access="read"/>
    <property name="CanPause" type="b" access="read"/>
    <property name="CanSeek" type="b" access="read"/>
    <property name="CanControl" type="b" access="read"/>
  </interface>` + introspect.IntrospectDataString + `</node>`

func (b *Bridge) exportIntrospection() error {
	return b.conn.Export(introspect.Introspectable(introXML), objectPath,
		"org.freedesktop.DBus.Introspectable")
}
