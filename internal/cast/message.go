package cast

// Message is one inbound protocol message, tagged by the channel it
// arrived on. The set is closed: concrete types in this package are the
// only implementations, so a type switch over them covers every case and
// a new channel tag is a compile-time-visible change.
type Message interface {
	isMessage()
}

// Heartbeat is a keepalive message on the heartbeat channel.
type Heartbeat struct {
	// Ping is true for a PING that must be answered with a pong.
	Ping bool
}

// ConnectionEvent is a virtual-connection control message.
type ConnectionEvent struct {
	// Close means the peer closed the connection; the session is over.
	Close bool
}

// ReceiverStatusMessage is an unsolicited receiver-level status push.
type ReceiverStatusMessage struct {
	Status *ReceiverStatus
}

// MediaStatusMessage is a media-channel status push. It may carry entries
// for several media sessions on the same receiver.
type MediaStatusMessage struct {
	Entries []*MediaStatus
}

// RawMessage is a message on a namespace this sender does not speak.
type RawMessage struct {
	Namespace string
	Payload   []byte
}

func (*Heartbeat) isMessage()             {}
func (*ConnectionEvent) isMessage()       {}
func (*ReceiverStatusMessage) isMessage() {}
func (*MediaStatusMessage) isMessage()    {}
func (*RawMessage) isMessage()            {}
