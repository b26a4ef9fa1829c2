package castv2

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/g2p/joujou/internal/cast"
)

const (
	senderID     = "sender-0"
	writeTimeout = 10 * time.Second
)

// Client is the wire implementation of cast.Device. One goroutine owns
// the read side: replies are matched to waiting commands by request id,
// everything else lands in the inbox consumed by Receive.
type Client struct {
	logger *zap.Logger
	conn   net.Conn

	wmu       sync.Mutex
	requestID atomic.Int64

	pmu     sync.Mutex
	pending map[int]chan []byte

	inbox    chan cast.Message
	readDone chan struct{}
	readErr  error

	closeOnce sync.Once
}

var _ cast.Device = (*Client)(nil)

// Dial connects to a receiver at addr (host:port). Receivers present
// self-signed certificates, so peer verification is skipped; securing the
// transport is out of scope for this sender.
func Dial(ctx context.Context, logger *zap.Logger, addr string) (*Client, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config:    &tls.Config{InsecureSkipVerify: true},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c := &Client{
		logger:   logger,
		conn:     conn,
		pending:  make(map[int]chan []byte),
		inbox:    make(chan cast.Message, 32),
		readDone: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// LocalAddr reports the local end of the connection; the HTTP server
// binds to the same interface so the receiver can reach it.
func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Close tears down the TLS connection.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

func (c *Client) readLoop() {
	for {
		body, err := readFrame(c.conn)
		if err != nil {
			c.readErr = err
			close(c.readDone)
			return
		}
		env, err := decodeEnvelope(body)
		if err != nil {
			c.logger.Warn("undecodable frame", zap.Error(err))
			continue
		}
		c.dispatch(env)
	}
}

// payloadHeader is the part of every JSON payload the demultiplexer needs.
type payloadHeader struct {
	Type      string `json:"type"`
	RequestID int    `json:"requestId"`
}

func (c *Client) dispatch(env *envelope) {
	var hdr payloadHeader
	if !env.Binary {
		// Binary payloads have no JSON header and fall through as raw.
		_ = json.Unmarshal(env.Payload, &hdr)
	}

	if hdr.RequestID != 0 {
		c.pmu.Lock()
		ch, ok := c.pending[hdr.RequestID]
		if ok {
			delete(c.pending, hdr.RequestID)
		}
		c.pmu.Unlock()
		if ok {
			ch <- env.Payload
			return
		}
	}

	switch env.Namespace {
	case namespaceHeartbeat:
		c.deliver(&cast.Heartbeat{Ping: hdr.Type == "PING"})
	case namespaceConnection:
		c.deliver(&cast.ConnectionEvent{Close: hdr.Type == "CLOSE"})
	case namespaceReceiver:
		if hdr.Type != "RECEIVER_STATUS" {
			c.deliver(&cast.RawMessage{Namespace: env.Namespace, Payload: env.Payload})
			return
		}
		var resp struct {
			Status *cast.ReceiverStatus `json:"status"`
		}
		if err := json.Unmarshal(env.Payload, &resp); err != nil {
			c.logger.Warn("bad receiver status push", zap.Error(err))
			return
		}
		c.deliver(&cast.ReceiverStatusMessage{Status: resp.Status})
	case namespaceMedia:
		if hdr.Type != "MEDIA_STATUS" {
			c.deliver(&cast.RawMessage{Namespace: env.Namespace, Payload: env.Payload})
			return
		}
		var resp struct {
			Status []*cast.MediaStatus `json:"status"`
		}
		if err := json.Unmarshal(env.Payload, &resp); err != nil {
			c.logger.Warn("bad media status push", zap.Error(err))
			return
		}
		c.deliver(&cast.MediaStatusMessage{Entries: resp.Status})
	default:
		c.deliver(&cast.RawMessage{Namespace: env.Namespace, Payload: env.Payload})
	}
}

// deliver hands a message to the inbox without blocking the read loop.
// The consumer re-reads published snapshots on wakeup, so dropping under
// backpressure loses no state, but it is worth a warning.
func (c *Client) deliver(msg cast.Message) {
	select {
	case c.inbox <- msg:
	default:
		c.logger.Warn("inbox full, dropping message")
	}
}

// Receive blocks until the next inbound message.
func (c *Client) Receive(ctx context.Context) (cast.Message, error) {
	select {
	case msg := <-c.inbox:
		return msg, nil
	case <-c.readDone:
		return nil, c.readErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) send(namespace, destination string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	body := encodeEnvelope(&envelope{
		SourceID:      senderID,
		DestinationID: destination,
		Namespace:     namespace,
		Payload:       data,
	})
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return writeFrame(c.conn, body)
}

// request sends a payload with a fresh request id and waits for the
// matching reply.
func (c *Client) request(ctx context.Context, namespace, destination string, payload map[string]any) ([]byte, error) {
	id := int(c.requestID.Add(1))
	payload["requestId"] = id

	ch := make(chan []byte, 1)
	c.pmu.Lock()
	c.pending[id] = ch
	c.pmu.Unlock()
	defer func() {
		c.pmu.Lock()
		delete(c.pending, id)
		c.pmu.Unlock()
	}()

	if err := c.send(namespace, destination, payload); err != nil {
		return nil, err
	}
	select {
	case raw := <-ch:
		return raw, nil
	case <-c.readDone:
		return nil, c.readErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Connect opens a virtual connection to destinationID.
func (c *Client) Connect(ctx context.Context, destinationID string) error {
	return c.send(namespaceConnection, destinationID, map[string]any{"type": "CONNECT"})
}

// Disconnect closes the virtual connection to destinationID.
func (c *Client) Disconnect(ctx context.Context, destinationID string) error {
	return c.send(namespaceConnection, destinationID, map[string]any{"type": "CLOSE"})
}

// Pong answers a heartbeat ping.
func (c *Client) Pong(ctx context.Context) error {
	return c.send(namespaceHeartbeat, cast.DefaultDestinationID, map[string]any{"type": "PONG"})
}

func (c *Client) receiverRequest(ctx context.Context, payload map[string]any) (*cast.ReceiverStatus, error) {
	raw, err := c.request(ctx, namespaceReceiver, cast.DefaultDestinationID, payload)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Type   string               `json:"type"`
		Status *cast.ReceiverStatus `json:"status"`
		Reason string               `json:"reason"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("receiver reply: %w", err)
	}
	if resp.Type != "RECEIVER_STATUS" || resp.Status == nil {
		return nil, fmt.Errorf("receiver command rejected: %s %s", resp.Type, resp.Reason)
	}
	return resp.Status, nil
}

// ReceiverStatus queries the full receiver-level status.
func (c *Client) ReceiverStatus(ctx context.Context) (*cast.ReceiverStatus, error) {
	return c.receiverRequest(ctx, map[string]any{"type": "GET_STATUS"})
}

// SetVolume sets the device volume. The reply keeps only part of the
// volume struct; callers wanting authoritative state must re-query.
func (c *Client) SetVolume(ctx context.Context, level float64) (*cast.ReceiverStatus, error) {
	return c.receiverRequest(ctx, map[string]any{
		"type":   "SET_VOLUME",
		"volume": map[string]any{"level": level},
	})
}

// Launch starts a receiver application and waits until the status reply
// lists it, then reports its transport.
func (c *Client) Launch(ctx context.Context, appID string) (*cast.Application, error) {
	status, err := c.receiverRequest(ctx, map[string]any{"type": "LAUNCH", "appId": appID})
	if err != nil {
		return nil, err
	}
	for i := range status.Applications {
		if status.Applications[i].AppID == appID {
			return &status.Applications[i], nil
		}
	}
	return nil, fmt.Errorf("application %s not running after launch", appID)
}

func (c *Client) mediaRequest(ctx context.Context, transportID string, payload map[string]any) (*cast.MediaStatus, error) {
	raw, err := c.request(ctx, namespaceMedia, transportID, payload)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Type   string              `json:"type"`
		Status []*cast.MediaStatus `json:"status"`
		Reason string              `json:"reason"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("media reply: %w", err)
	}
	if resp.Type != "MEDIA_STATUS" {
		return nil, fmt.Errorf("media command rejected: %s %s", resp.Type, resp.Reason)
	}
	if len(resp.Status) == 0 {
		return nil, fmt.Errorf("empty media status reply")
	}
	return resp.Status[0], nil
}

// LoadQueue loads the queue and starts playback at startIndex.
func (c *Client) LoadQueue(ctx context.Context, transportID string, items []cast.QueueItem, startIndex int) (*cast.MediaStatus, error) {
	return c.mediaRequest(ctx, transportID, map[string]any{
		"type":       "QUEUE_LOAD",
		"items":      items,
		"startIndex": startIndex,
		"repeatMode": cast.RepeatOff,
	})
}

func (c *Client) Play(ctx context.Context, transportID string, mediaSessionID int) (*cast.MediaStatus, error) {
	return c.mediaRequest(ctx, transportID, map[string]any{
		"type": "PLAY", "mediaSessionId": mediaSessionID,
	})
}

func (c *Client) Pause(ctx context.Context, transportID string, mediaSessionID int) (*cast.MediaStatus, error) {
	return c.mediaRequest(ctx, transportID, map[string]any{
		"type": "PAUSE", "mediaSessionId": mediaSessionID,
	})
}

func (c *Client) Stop(ctx context.Context, transportID string, mediaSessionID int) (*cast.MediaStatus, error) {
	return c.mediaRequest(ctx, transportID, map[string]any{
		"type": "STOP", "mediaSessionId": mediaSessionID,
	})
}

// Next jumps forward in the queue.
func (c *Client) Next(ctx context.Context, transportID string, mediaSessionID int) (*cast.MediaStatus, error) {
	return c.mediaRequest(ctx, transportID, map[string]any{
		"type": "QUEUE_UPDATE", "mediaSessionId": mediaSessionID, "jump": 1,
	})
}

// Previous jumps backward in the queue.
func (c *Client) Previous(ctx context.Context, transportID string, mediaSessionID int) (*cast.MediaStatus, error) {
	return c.mediaRequest(ctx, transportID, map[string]any{
		"type": "QUEUE_UPDATE", "mediaSessionId": mediaSessionID, "jump": -1,
	})
}

// Seek moves the position; current is absolute seconds, relative an
// offset in seconds.
func (c *Client) Seek(ctx context.Context, transportID string, mediaSessionID int, current, relative *float64) (*cast.MediaStatus, error) {
	payload := map[string]any{"type": "SEEK", "mediaSessionId": mediaSessionID}
	if current != nil {
		payload["currentTime"] = *current
	}
	if relative != nil {
		payload["relativeTime"] = *relative
	}
	return c.mediaRequest(ctx, transportID, payload)
}

// UpdateQueue changes queue-wide settings; nil fields are left alone.
func (c *Client) UpdateQueue(ctx context.Context, transportID string, mediaSessionID int, repeat *cast.RepeatMode, shuffle *bool) (*cast.MediaStatus, error) {
	payload := map[string]any{"type": "QUEUE_UPDATE", "mediaSessionId": mediaSessionID}
	if repeat != nil {
		payload["repeatMode"] = *repeat
	}
	if shuffle != nil {
		payload["shuffle"] = *shuffle
	}
	return c.mediaRequest(ctx, transportID, payload)
}

// MediaStatus queries the media channel for current status.
func (c *Client) MediaStatus(ctx context.Context, transportID string, mediaSessionID *int) (*cast.MediaStatus, error) {
	payload := map[string]any{"type": "GET_STATUS"}
	if mediaSessionID != nil {
		payload["mediaSessionId"] = *mediaSessionID
	}
	return c.mediaRequest(ctx, transportID, payload)
}
