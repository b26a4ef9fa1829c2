package castv2

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/g2p/joujou/internal/cast"
)

// testPeer plays the receiver's end of an in-memory connection.
type testPeer struct {
	t    *testing.T
	conn net.Conn
}

func newTestClient(t *testing.T) (*Client, *testPeer) {
	t.Helper()
	local, remote := net.Pipe()
	c := &Client{
		logger:   zap.NewNop(),
		conn:     local,
		pending:  make(map[int]chan []byte),
		inbox:    make(chan cast.Message, 32),
		readDone: make(chan struct{}),
	}
	go c.readLoop()
	t.Cleanup(func() {
		c.Close()
		remote.Close()
	})
	return c, &testPeer{t: t, conn: remote}
}

// read returns the next envelope the client sent, with its decoded
// payload.
func (p *testPeer) read() (*envelope, map[string]any) {
	p.t.Helper()
	p.conn.SetReadDeadline(time.Now().Add(time.Second))
	body, err := readFrame(p.conn)
	if err != nil {
		p.t.Fatalf("peer read failed: %v", err)
	}
	env, err := decodeEnvelope(body)
	if err != nil {
		p.t.Fatalf("peer decode failed: %v", err)
	}
	payload := make(map[string]any)
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		p.t.Fatalf("peer payload decode failed: %v", err)
	}
	return env, payload
}

// write sends one frame to the client.
func (p *testPeer) write(namespace string, payload map[string]any) {
	p.t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		p.t.Fatalf("peer marshal failed: %v", err)
	}
	body := encodeEnvelope(&envelope{
		SourceID:      "receiver-0",
		DestinationID: senderID,
		Namespace:     namespace,
		Payload:       data,
	})
	p.conn.SetWriteDeadline(time.Now().Add(time.Second))
	if err := writeFrame(p.conn, body); err != nil {
		p.t.Fatalf("peer write failed: %v", err)
	}
}

// TestRequestReplyCorrelation verifies a command reply is matched to its
// caller by request id and never lands in the inbox.
func TestRequestReplyCorrelation(t *testing.T) {
	c, peer := newTestClient(t)

	type result struct {
		status *cast.ReceiverStatus
		err    error
	}
	done := make(chan result, 1)
	go func() {
		status, err := c.ReceiverStatus(context.Background())
		done <- result{status, err}
	}()

	env, payload := peer.read()
	if env.Namespace != namespaceReceiver {
		t.Errorf("namespace: got %s", env.Namespace)
	}
	if env.DestinationID != cast.DefaultDestinationID {
		t.Errorf("destination: got %s", env.DestinationID)
	}
	if payload["type"] != "GET_STATUS" {
		t.Errorf("type: got %v", payload["type"])
	}
	peer.write(namespaceReceiver, map[string]any{
		"type":      "RECEIVER_STATUS",
		"requestId": payload["requestId"],
		"status":    map[string]any{"volume": map[string]any{"level": 0.5}},
	})

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("unexpected error: %v", res.err)
		}
		if res.status.Volume.Level == nil || *res.status.Volume.Level != 0.5 {
			t.Errorf("volume: got %+v", res.status.Volume)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for the reply")
	}

	select {
	case msg := <-c.inbox:
		t.Errorf("reply leaked into the inbox: %+v", msg)
	default:
	}
}

// TestPushesReachTheInbox verifies unsolicited messages come out of
// Receive as typed messages.
func TestPushesReachTheInbox(t *testing.T) {
	c, peer := newTestClient(t)

	peer.write(namespaceHeartbeat, map[string]any{"type": "PING"})
	peer.write(namespaceMedia, map[string]any{
		"type":   "MEDIA_STATUS",
		"status": []map[string]any{{"mediaSessionId": 3, "playerState": "PLAYING"}},
	})
	peer.write(namespaceConnection, map[string]any{"type": "CLOSE"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msg, err := c.Receive(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hb, ok := msg.(*cast.Heartbeat)
	if !ok || !hb.Ping {
		t.Fatalf("expected a ping, got %+v", msg)
	}

	msg, err = c.Receive(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	media, ok := msg.(*cast.MediaStatusMessage)
	if !ok || len(media.Entries) != 1 || media.Entries[0].MediaSessionID != 3 {
		t.Fatalf("expected a media status, got %+v", msg)
	}

	msg, err = c.Receive(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	conn, ok := msg.(*cast.ConnectionEvent)
	if !ok || !conn.Close {
		t.Fatalf("expected a close event, got %+v", msg)
	}
}

// TestLaunch_ReturnsTheLaunchedApplication verifies the launch reply is
// searched for the requested app id.
func TestLaunch_ReturnsTheLaunchedApplication(t *testing.T) {
	c, peer := newTestClient(t)

	done := make(chan *cast.Application, 1)
	go func() {
		app, err := c.Launch(context.Background(), cast.DefaultMediaReceiverAppID)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		done <- app
	}()

	_, payload := peer.read()
	if payload["type"] != "LAUNCH" {
		t.Errorf("type: got %v", payload["type"])
	}
	peer.write(namespaceReceiver, map[string]any{
		"type":      "RECEIVER_STATUS",
		"requestId": payload["requestId"],
		"status": map[string]any{
			"applications": []map[string]any{
				{"appId": "0", "transportId": "other"},
				{"appId": cast.DefaultMediaReceiverAppID, "transportId": "transport-7"},
			},
		},
	})

	select {
	case app := <-done:
		if app == nil || app.TransportID != "transport-7" {
			t.Fatalf("expected transport-7, got %+v", app)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for launch")
	}
}

// TestMediaCommandRejection verifies a non-status reply surfaces as an
// error instead of being force-read as a status.
func TestMediaCommandRejection(t *testing.T) {
	c, peer := newTestClient(t)

	done := make(chan error, 1)
	go func() {
		_, err := c.Play(context.Background(), "transport-1", 1)
		done <- err
	}()

	_, payload := peer.read()
	peer.write(namespaceMedia, map[string]any{
		"type":      "INVALID_REQUEST",
		"requestId": payload["requestId"],
		"reason":    "INVALID_MEDIA_SESSION_ID",
	})

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for the command")
	}
}

// TestReceive_ReportsTransportFailure verifies a dead connection ends
// Receive with the read error rather than blocking.
func TestReceive_ReportsTransportFailure(t *testing.T) {
	c, peer := newTestClient(t)
	peer.conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := c.Receive(ctx); err == nil {
		t.Fatal("expected an error")
	}
}
