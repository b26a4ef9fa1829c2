package player

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/g2p/joujou/internal/cast"
)

// PlaybackStatus is the externally visible playback state.
type PlaybackStatus string

const (
	StatusPlaying PlaybackStatus = "Playing"
	StatusPaused  PlaybackStatus = "Paused"
	StatusStopped PlaybackStatus = "Stopped"
)

// LoopStatus is the externally visible repeat setting.
type LoopStatus string

const (
	LoopNone     LoopStatus = "None"
	LoopTrack    LoopStatus = "Track"
	LoopPlaylist LoopStatus = "Playlist"
)

// Session controls one media session on one receiver. It is bound at
// construction to a transport id and a media session id and never
// migrates; playing on a different receiver means a new Session.
//
// Control operations may be called concurrently with each other and with
// Run. They issue a command, publish the reply through the store's merge
// rule and return the transport error, if any. Consistency rests on the
// StatusStore publish/read contract, not on serializing callers.
type Session struct {
	logger         *zap.Logger
	device         cast.Device
	transportID    string
	mediaSessionID int
	store          *StatusStore
}

// NewSession builds a session from the initial statuses: the media status
// returned by the queue load and a full receiver status.
func NewSession(logger *zap.Logger, device cast.Device, transportID string, media *cast.MediaStatus, receiver *cast.ReceiverStatus) *Session {
	return &Session{
		logger:         logger,
		device:         device,
		transportID:    transportID,
		mediaSessionID: media.MediaSessionID,
		store:          NewStatusStore(media, receiver),
	}
}

// Store exposes the session's snapshot store.
func (s *Session) Store() *StatusStore {
	return s.store
}

// MediaSessionID reports the session this controller is bound to.
func (s *Session) MediaSessionID() int {
	return s.mediaSessionID
}

// Next skips to the following queue item.
func (s *Session) Next(ctx context.Context) error {
	ms, err := s.device.Next(ctx, s.transportID, s.mediaSessionID)
	if err != nil {
		return err
	}
	s.store.PublishMedia(ms)
	return nil
}

// Previous goes back to the preceding queue item.
func (s *Session) Previous(ctx context.Context) error {
	ms, err := s.device.Previous(ctx, s.transportID, s.mediaSessionID)
	if err != nil {
		return err
	}
	s.store.PublishMedia(ms)
	return nil
}

// Play resumes playback.
func (s *Session) Play(ctx context.Context) error {
	ms, err := s.device.Play(ctx, s.transportID, s.mediaSessionID)
	if err != nil {
		return err
	}
	s.store.PublishMedia(ms)
	return nil
}

// Pause pauses playback.
func (s *Session) Pause(ctx context.Context) error {
	ms, err := s.device.Pause(ctx, s.transportID, s.mediaSessionID)
	if err != nil {
		return err
	}
	s.store.PublishMedia(ms)
	return nil
}

// Stop stops playback; the receiver will report an idle status and the
// receive loop will wind the session down.
func (s *Session) Stop(ctx context.Context) error {
	ms, err := s.device.Stop(ctx, s.transportID, s.mediaSessionID)
	if err != nil {
		return err
	}
	s.store.PublishMedia(ms)
	return nil
}

// SeekBy moves the position by offset seconds (negative seeks backwards).
func (s *Session) SeekBy(ctx context.Context, offset float64) error {
	_, err := s.device.Seek(ctx, s.transportID, s.mediaSessionID, nil, &offset)
	return err
}

// SeekTo moves the position to an absolute number of seconds.
func (s *Session) SeekTo(ctx context.Context, position float64) error {
	_, err := s.device.Seek(ctx, s.transportID, s.mediaSessionID, &position, nil)
	return err
}

// SetLoopMode changes the queue repeat mode. Together with receiver-driven
// pushes this is the only way the setting changes.
func (s *Session) SetLoopMode(ctx context.Context, mode cast.RepeatMode) error {
	ms, err := s.device.UpdateQueue(ctx, s.transportID, s.mediaSessionID, &mode, nil)
	if err != nil {
		return err
	}
	s.store.PublishMedia(ms)
	return nil
}

// SetShuffle toggles queue shuffling.
func (s *Session) SetShuffle(ctx context.Context, shuffle bool) error {
	ms, err := s.device.UpdateQueue(ctx, s.transportID, s.mediaSessionID, nil, &shuffle)
	if err != nil {
		return err
	}
	s.store.PublishMedia(ms)
	return nil
}

// SetVolume sets the receiver volume. The set-volume reply keeps only part
// of the volume struct, so the command is followed by a full status query
// and that is what gets published. Never assume a command reply is a
// complete status payload.
func (s *Session) SetVolume(ctx context.Context, level float64) error {
	if _, err := s.device.SetVolume(ctx, level); err != nil {
		return err
	}
	rs, err := s.device.ReceiverStatus(ctx)
	if err != nil {
		return err
	}
	s.store.PublishReceiver(rs)
	return nil
}

// PlaybackStatus derives the visible playback state from the media
// snapshot. Buffering counts as playing. An idle state whose extended
// status says our session is loading also counts as playing: between
// tracks the receiver goes idle for a moment and reporting Stopped there
// would flicker.
func (s *Session) PlaybackStatus() PlaybackStatus {
	ms := s.store.Media()
	switch ms.PlayerState {
	case cast.PlayerPlaying, cast.PlayerBuffering:
		return StatusPlaying
	case cast.PlayerPaused:
		return StatusPaused
	case cast.PlayerIdle:
		es := ms.ExtendedStatus
		if es != nil && es.PlayerState == cast.ExtendedLoading &&
			es.MediaSessionID != nil && *es.MediaSessionID == s.mediaSessionID {
			return StatusPlaying
		}
		return StatusStopped
	}
	return StatusStopped
}

// LoopStatus maps the queue repeat mode to the visible loop setting.
// AllAndShuffle has no exact counterpart and maps to Playlist; the shuffle
// half is reported through Shuffle.
func (s *Session) LoopStatus() LoopStatus {
	ms := s.store.Media()
	if ms.RepeatMode == nil {
		return LoopNone
	}
	switch *ms.RepeatMode {
	case cast.RepeatAll, cast.RepeatAllAndShuffle:
		return LoopPlaylist
	case cast.RepeatSingle:
		return LoopTrack
	default:
		return LoopNone
	}
}

// Shuffle reports the queue shuffle flag, false when unknown.
func (s *Session) Shuffle() bool {
	ms := s.store.Media()
	if ms.QueueData != nil {
		return ms.QueueData.Shuffle
	}
	return false
}

// Volume reports the receiver volume, 0 when muted.
func (s *Session) Volume() float64 {
	rs := s.store.Receiver()
	vol := rs.Volume
	if vol.Muted != nil && *vol.Muted {
		return 0
	}
	if vol.Level == nil {
		return 0
	}
	return *vol.Level
}

// Position reports the playback position in seconds.
func (s *Session) Position() float64 {
	ms := s.store.Media()
	if ms.CurrentTime == nil {
		return 0
	}
	return *ms.CurrentTime
}

// Metadata builds the track metadata property from the media snapshot,
// keyed by the standard property names. There is information loss going
// through the cast metadata format: multi-valued tags arrive as a single
// value and are not re-resolved here. A track or disc number that does not
// fit the target type is an error, never a silent truncation.
func (s *Session) Metadata() (map[string]any, error) {
	md := make(map[string]any)
	ms := s.store.Media()
	media := ms.Media
	if media == nil {
		return md, nil
	}
	if tm := media.Metadata; tm != nil {
		if tm.AlbumName != nil {
			md["xesam:album"] = *tm.AlbumName
		}
		if tm.Title != nil {
			md["xesam:title"] = *tm.Title
		}
		if tm.AlbumArtist != nil {
			md["xesam:albumArtist"] = []string{*tm.AlbumArtist}
		}
		if tm.Artist != nil {
			md["xesam:artist"] = []string{*tm.Artist}
		}
		if tm.Composer != nil {
			md["xesam:composer"] = []string{*tm.Composer}
		}
		if tm.TrackNumber != nil {
			n, err := toInt32(*tm.TrackNumber)
			if err != nil {
				return nil, fmt.Errorf("track number: %w", err)
			}
			md["xesam:trackNumber"] = n
		}
		if tm.DiscNumber != nil {
			n, err := toInt32(*tm.DiscNumber)
			if err != nil {
				return nil, fmt.Errorf("disc number: %w", err)
			}
			md["xesam:discNumber"] = n
		}
		if len(tm.Images) > 0 {
			md["mpris:artUrl"] = tm.Images[0].URL
		}
		if tm.ReleaseDate != nil {
			md["xesam:contentCreated"] = *tm.ReleaseDate
		}
	}
	if media.Duration != nil {
		// Bus time unit is microseconds, truncated toward zero.
		md["mpris:length"] = int64(*media.Duration * 1e6)
	}
	return md, nil
}

func toInt32(n uint32) (int32, error) {
	if n > math.MaxInt32 {
		return 0, fmt.Errorf("%d overflows int32", n)
	}
	return int32(n), nil
}

// CanGoNext reports whether skipping forward can succeed: always under a
// repeat mode, otherwise only when a queue entry follows the current one.
// For a receiver app other than the default player this may be
// inaccurate; there might be a queue that is not exposed to us.
func (s *Session) CanGoNext() bool {
	ms := s.store.Media()
	if ms.RepeatMode != nil && *ms.RepeatMode != cast.RepeatOff {
		return true
	}
	if ms.Items == nil || ms.CurrentItemID == nil {
		return false
	}
	pos := -1
	for i, it := range ms.Items {
		if it.ItemID != nil && *it.ItemID == *ms.CurrentItemID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return false
	}
	return pos+1 < len(ms.Items)
}

// CanGoPrevious reports whether skipping backward can succeed. Without a
// repeat mode this only checks that the current item is not the first
// queue entry, it does not locate the actual predecessor the way
// CanGoNext locates the successor.
func (s *Session) CanGoPrevious() bool {
	ms := s.store.Media()
	if ms.RepeatMode != nil && *ms.RepeatMode != cast.RepeatOff {
		return true
	}
	if ms.Items == nil || ms.CurrentItemID == nil {
		return false
	}
	if len(ms.Items) == 0 {
		return false
	}
	first := ms.Items[0]
	if first.ItemID != nil && *first.ItemID != *ms.CurrentItemID && len(ms.Items) > 1 {
		return true
	}
	return false
}
