package player

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/g2p/joujou/internal/cast"
)

// Notifier receives refresh requests from the receive loop whenever a
// snapshot changed. Implementations recompute their projections from the
// store and forward only the differences.
type Notifier interface {
	RefreshMedia() error
	RefreshVolume() error
}

// Run is the session main loop. Each iteration waits on whichever fires
// first: a media snapshot change, a receiver snapshot change, or the next
// inbound device message. It returns nil when the session is over (the
// peer closed the connection, or playback went idle with nothing left to
// load) and an error on transport failure or a protocol contract breach.
// There is no automatic reconnect; restarting is the caller's decision.
func (s *Session) Run(ctx context.Context, n Notifier) error {
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// One pump goroutine feeds device messages into an ordered channel so
	// the loop below can select over all three event sources at once.
	msgs := make(chan cast.Message)
	recvErr := make(chan error, 1)
	go func() {
		for {
			msg, err := s.device.Receive(rctx)
			if err != nil {
				recvErr <- err
				return
			}
			select {
			case msgs <- msg:
			case <-rctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.store.ReceiverChanged():
			if err := n.RefreshVolume(); err != nil {
				return err
			}
		case <-s.store.MediaChanged():
			if err := n.RefreshMedia(); err != nil {
				return err
			}
		case err := <-recvErr:
			if rctx.Err() != nil {
				// Receive failed because we are shutting down.
				return ctx.Err()
			}
			s.logger.Error("receive failed", zap.Error(err))
			if derr := s.device.Disconnect(ctx, cast.DefaultDestinationID); derr != nil {
				s.logger.Warn("disconnect failed", zap.Error(derr))
			}
			return err
		case msg := <-msgs:
			done, err := s.handleMessage(ctx, msg)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

// handleMessage dispatches one inbound message. done means the session
// reached its terminal state and the loop should return cleanly.
func (s *Session) handleMessage(ctx context.Context, msg cast.Message) (done bool, err error) {
	switch m := msg.(type) {
	case *cast.Heartbeat:
		if m.Ping {
			if err := s.device.Pong(ctx); err != nil {
				return false, err
			}
		}
	case *cast.ConnectionEvent:
		s.logger.Debug("connection event", zap.Bool("close", m.Close))
		if m.Close {
			return true, nil
		}
	case *cast.ReceiverStatusMessage:
		if m.Status != nil {
			s.store.PublishReceiver(m.Status)
		}
	case *cast.MediaStatusMessage:
		for _, entry := range m.Entries {
			if entry.MediaSessionID != s.mediaSessionID {
				continue
			}
			s.store.PublishMedia(entry)
			// The player became idle, and not because it hasn't started
			// yet: either it ran out of playlist, or the user stopped it,
			// or some fatal error happened.
			if entry.IdleReason != nil {
				if entry.PlayerState != cast.PlayerIdle {
					return false, fmt.Errorf("idle reason %q with player state %q", *entry.IdleReason, entry.PlayerState)
				}
				es := entry.ExtendedStatus
				if es == nil {
					// Nothing more to play.
					return true, nil
				}
				// Loading is the only extended state the protocol defines
				// today; anything else must be reviewed, not guessed at.
				if es.PlayerState != cast.ExtendedLoading {
					return false, fmt.Errorf("unhandled extended player state %q", es.PlayerState)
				}
			}
		}
	case *cast.RawMessage:
		s.logger.Debug("unsupported message namespace", zap.String("namespace", m.Namespace))
	}
	return false, nil
}
