// Package mpris republishes the session state over the desktop bus,
// implementing the org.mpris.MediaPlayer2 interfaces, and translates
// inbound method calls into session operations.
package mpris

import (
	"github.com/godbus/dbus/v5"
)

// Conn is the subset of the session-bus connection the bridge uses.
// The abstraction allows mocking bus interactions in tests.
//
//go:generate mockgen -destination=mocks/conn_mock.go -package=mocks github.com/g2p/joujou/internal/mpris Conn
type Conn interface {
	// RequestName asks the bus for a well-known name.
	RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error)

	// Export publishes the methods of v at path under the given interface.
	Export(v interface{}, path dbus.ObjectPath, iface string) error

	// Emit sends a signal from path.
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error

	// Close closes the bus connection.
	Close() error
}

var _ Conn = (*dbus.Conn)(nil)

// SessionBus connects to the user session bus.
func SessionBus() (Conn, error) {
	return dbus.ConnectSessionBus()
}
