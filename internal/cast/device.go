package cast

import "context"

// Device is the abstract link to a cast receiver. It hides framing,
// transport security and channel multiplexing; the castv2 package provides
// the wire implementation and tests substitute fakes.
//
// Command methods block until the receiver's reply arrives and return the
// status payload of that reply. Media commands are scoped to one transport
// and one media session; replies, like pushes, may be partial.
type Device interface {
	// Connect opens a virtual connection to the given destination.
	Connect(ctx context.Context, destinationID string) error

	// Receive blocks until the next inbound message is available.
	Receive(ctx context.Context) (Message, error)

	// Pong answers a heartbeat ping.
	Pong(ctx context.Context) error

	// Disconnect closes the virtual connection to the given destination.
	Disconnect(ctx context.Context, destinationID string) error

	// Launch starts a receiver application and reports its transport.
	Launch(ctx context.Context, appID string) (*Application, error)

	// ReceiverStatus queries the full receiver-level status.
	ReceiverStatus(ctx context.Context) (*ReceiverStatus, error)

	// SetVolume sets the device volume. The reply is an abbreviated echo;
	// callers that need an authoritative status must follow up with
	// ReceiverStatus.
	SetVolume(ctx context.Context, level float64) (*ReceiverStatus, error)

	// LoadQueue loads a queue of items and starts playback at startIndex.
	LoadQueue(ctx context.Context, transportID string, items []QueueItem, startIndex int) (*MediaStatus, error)

	Play(ctx context.Context, transportID string, mediaSessionID int) (*MediaStatus, error)
	Pause(ctx context.Context, transportID string, mediaSessionID int) (*MediaStatus, error)
	Stop(ctx context.Context, transportID string, mediaSessionID int) (*MediaStatus, error)
	Next(ctx context.Context, transportID string, mediaSessionID int) (*MediaStatus, error)
	Previous(ctx context.Context, transportID string, mediaSessionID int) (*MediaStatus, error)

	// Seek moves the playback position. Exactly one of current (absolute
	// seconds) and relative (offset seconds) should be set.
	Seek(ctx context.Context, transportID string, mediaSessionID int, current, relative *float64) (*MediaStatus, error)

	// UpdateQueue changes queue-wide settings. Nil fields are left as-is.
	UpdateQueue(ctx context.Context, transportID string, mediaSessionID int, repeat *RepeatMode, shuffle *bool) (*MediaStatus, error)

	// MediaStatus queries the media channel for current status.
	MediaStatus(ctx context.Context, transportID string, mediaSessionID *int) (*MediaStatus, error)
}
