// Package cast holds the data model of the cast protocol as seen by this
// sender: status payloads pushed by the receiver, the messages arriving on
// the multiplexed channels, and the Device capability the player drives.
package cast

// Well-known identifiers of the default media receiver.
const (
	// DefaultDestinationID addresses the receiver platform itself,
	// before an application transport is known.
	DefaultDestinationID = "receiver-0"
	// DefaultMediaReceiverAppID is the stock audio/video receiver app.
	DefaultMediaReceiverAppID = "CC1AD845"
)

// PlayerState is the receiver-reported state of the media player.
type PlayerState string

const (
	PlayerIdle      PlayerState = "IDLE"
	PlayerPlaying   PlayerState = "PLAYING"
	PlayerBuffering PlayerState = "BUFFERING"
	PlayerPaused    PlayerState = "PAUSED"
)

// IdleReason explains why the player went idle. It is only present
// alongside PlayerIdle.
type IdleReason string

const (
	IdleFinished    IdleReason = "FINISHED"
	IdleCancelled   IdleReason = "CANCELLED"
	IdleInterrupted IdleReason = "INTERRUPTED"
	IdleError       IdleReason = "ERROR"
)

// ExtendedPlayerState is the nested state carried by ExtendedStatus while
// the player is idle. The protocol currently defines a single value.
type ExtendedPlayerState string

// ExtendedLoading means the next queue item is being loaded.
const ExtendedLoading ExtendedPlayerState = "PLAYER_STATE_LOADING"

// RepeatMode is the queue-wide repeat setting.
type RepeatMode string

const (
	RepeatOff           RepeatMode = "REPEAT_OFF"
	RepeatAll           RepeatMode = "REPEAT_ALL"
	RepeatSingle        RepeatMode = "REPEAT_SINGLE"
	RepeatAllAndShuffle RepeatMode = "REPEAT_ALL_AND_SHUFFLE"
)

// ExtendedStatus is secondary status reported under an idle player state,
// used during track-to-track transitions.
type ExtendedStatus struct {
	PlayerState    ExtendedPlayerState `json:"playerState"`
	MediaSessionID *int                `json:"mediaSessionId,omitempty"`
}

// Image is a reference to artwork reachable by the receiver.
type Image struct {
	URL string `json:"url"`
}

// MusicTrackMetadata carries the tag-derived description of one track,
// in the shape the media namespace expects (metadataType 3).
type MusicTrackMetadata struct {
	MetadataType int     `json:"metadataType"`
	AlbumName    *string `json:"albumName,omitempty"`
	Title        *string `json:"title,omitempty"`
	AlbumArtist  *string `json:"albumArtist,omitempty"`
	Artist       *string `json:"artist,omitempty"`
	Composer     *string `json:"composer,omitempty"`
	TrackNumber  *uint32 `json:"trackNumber,omitempty"`
	DiscNumber   *uint32 `json:"discNumber,omitempty"`
	Images       []Image `json:"images,omitempty"`
	ReleaseDate  *string `json:"releaseDate,omitempty"`
}

// MusicTrackMetadataType is the metadataType discriminator for music tracks.
const MusicTrackMetadataType = 3

// StreamTypeBuffered marks finite, seekable content.
const StreamTypeBuffered = "BUFFERED"

// MediaInformation describes one piece of loadable content.
type MediaInformation struct {
	ContentID   string              `json:"contentId"`
	StreamType  string              `json:"streamType"`
	ContentType string              `json:"contentType"`
	Metadata    *MusicTrackMetadata `json:"metadata,omitempty"`
	Duration    *float64            `json:"duration,omitempty"`
}

// QueueItem is one entry of the loaded queue.
type QueueItem struct {
	ItemID *int              `json:"itemId,omitempty"`
	Media  *MediaInformation `json:"media,omitempty"`
}

// QueueData carries queue-wide settings, distinct from per-item fields.
type QueueData struct {
	Shuffle    bool        `json:"shuffle"`
	RepeatMode *RepeatMode `json:"repeatMode,omitempty"`
	StartIndex *int        `json:"startIndex,omitempty"`
}

// MediaStatus is one status entry for a media session. Pushes are often
// partial: Items, Media and QueueData may be absent even though the
// session still has them; see player.StatusStore for the merge rule.
//
// A MediaStatus must be treated as immutable once it has been published.
type MediaStatus struct {
	MediaSessionID int               `json:"mediaSessionId"`
	PlayerState    PlayerState       `json:"playerState"`
	IdleReason     *IdleReason       `json:"idleReason,omitempty"`
	ExtendedStatus *ExtendedStatus   `json:"extendedStatus,omitempty"`
	Items          []QueueItem       `json:"items,omitempty"`
	CurrentItemID  *int              `json:"currentItemId,omitempty"`
	Media          *MediaInformation `json:"media,omitempty"`
	QueueData      *QueueData        `json:"queueData,omitempty"`
	RepeatMode     *RepeatMode       `json:"repeatMode,omitempty"`
	CurrentTime    *float64          `json:"currentTime,omitempty"`
}

// Volume is the receiver-level volume. Both fields are optional on the
// wire; abbreviated command echoes may omit either.
type Volume struct {
	Level *float64 `json:"level,omitempty"`
	Muted *bool    `json:"muted,omitempty"`
}

// Application describes a running receiver application.
type Application struct {
	AppID       string `json:"appId"`
	SessionID   string `json:"sessionId"`
	TransportID string `json:"transportId"`
	DisplayName string `json:"displayName,omitempty"`
}

// ReceiverStatus is the receiver-level status: running applications and
// the device volume. Independent of MediaStatus and updated on its own
// channel.
type ReceiverStatus struct {
	Applications []Application `json:"applications,omitempty"`
	Volume       Volume        `json:"volume"`
}
