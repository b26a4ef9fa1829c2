// Package player owns the live state of one playback session: the
// published status snapshots, the control operations that drive the
// receiver, and the receive loop that keeps the snapshots current until
// the session ends.
package player

import (
	"sync"

	"github.com/g2p/joujou/internal/cast"
)

// StatusStore holds the two independently published snapshots of a
// session: the media status and the receiver status. Each publish
// atomically replaces the visible snapshot and raises that snapshot's own
// change signal, so a volume-only update can never be lost behind a media
// wakeup.
//
// Snapshots are immutable once published; readers get the current pointer
// and must not modify it.
type StatusStore struct {
	mu       sync.Mutex
	media    *cast.MediaStatus
	receiver *cast.ReceiverStatus

	mediaDirty    chan struct{}
	receiverDirty chan struct{}
}

// NewStatusStore seeds the store with the initial statuses obtained at
// session creation.
func NewStatusStore(media *cast.MediaStatus, receiver *cast.ReceiverStatus) *StatusStore {
	return &StatusStore{
		media:         media,
		receiver:      receiver,
		mediaDirty:    make(chan struct{}, 1),
		receiverDirty: make(chan struct{}, 1),
	}
}

// Media returns the current media snapshot.
func (s *StatusStore) Media() *cast.MediaStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.media
}

// Receiver returns the current receiver snapshot.
func (s *StatusStore) Receiver() *cast.ReceiverStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receiver
}

// MediaChanged signals after each PublishMedia. The channel is a
// single-slot dirty flag: a wakeup means "re-read the snapshot", it does
// not carry a value and coalesces when the consumer is behind.
func (s *StatusStore) MediaChanged() <-chan struct{} {
	return s.mediaDirty
}

// ReceiverChanged signals after each PublishReceiver.
func (s *StatusStore) ReceiverChanged() <-chan struct{} {
	return s.receiverDirty
}

// PublishMedia installs ms as the current media snapshot.
//
// Many updates are abbreviated: after the loading -> playing transition
// the second push omits the queue items, the media description and the
// queue data. When any of those three fields is absent it is copied
// forward from the previous snapshot; every other field is taken from the
// update as-is, even if unchanged.
func (s *StatusStore) PublishMedia(ms *cast.MediaStatus) {
	s.mu.Lock()
	if ms.Items == nil || ms.Media == nil || ms.QueueData == nil {
		patched := *ms
		if patched.Items == nil {
			patched.Items = s.media.Items
		}
		if patched.Media == nil {
			patched.Media = s.media.Media
		}
		if patched.QueueData == nil {
			patched.QueueData = s.media.QueueData
		}
		ms = &patched
	}
	s.media = ms
	s.mu.Unlock()
	notify(s.mediaDirty)
}

// PublishReceiver installs rs as the current receiver snapshot.
func (s *StatusStore) PublishReceiver(rs *cast.ReceiverStatus) {
	s.mu.Lock()
	s.receiver = rs
	s.mu.Unlock()
	notify(s.receiverDirty)
}

// notify sets a dirty flag without blocking; a flag already set is left
// alone, the consumer re-reads the latest snapshot either way.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
