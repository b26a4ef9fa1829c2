package player

import (
	"testing"

	"github.com/g2p/joujou/internal/cast"
)

func ptr[T any](v T) *T {
	return &v
}

func fullMediaStatus() *cast.MediaStatus {
	return &cast.MediaStatus{
		MediaSessionID: 1,
		PlayerState:    cast.PlayerPlaying,
		Items: []cast.QueueItem{
			{ItemID: ptr(1), Media: &cast.MediaInformation{ContentID: "http://host/0"}},
			{ItemID: ptr(2), Media: &cast.MediaInformation{ContentID: "http://host/1"}},
		},
		CurrentItemID: ptr(1),
		Media:         &cast.MediaInformation{ContentID: "http://host/0"},
		QueueData:     &cast.QueueData{RepeatMode: ptr(cast.RepeatOff)},
		CurrentTime:   ptr(1.5),
	}
}

// TestPublishMedia_CarriesForwardOmittedFields verifies that an
// abbreviated update keeps the queue items, the media description and the
// queue data from the previous snapshot while taking everything else from
// the update.
func TestPublishMedia_CarriesForwardOmittedFields(t *testing.T) {
	seed := fullMediaStatus()
	store := NewStatusStore(seed, &cast.ReceiverStatus{})

	update := &cast.MediaStatus{
		MediaSessionID: 1,
		PlayerState:    cast.PlayerPaused,
		CurrentItemID:  ptr(2),
		CurrentTime:    ptr(30.0),
	}
	store.PublishMedia(update)

	got := store.Media()
	if got.PlayerState != cast.PlayerPaused {
		t.Errorf("PlayerState: expected PAUSED, got %s", got.PlayerState)
	}
	if len(got.Items) != 2 {
		t.Fatalf("Items: expected 2 carried-forward entries, got %d", len(got.Items))
	}
	if got.Media == nil || got.Media.ContentID != "http://host/0" {
		t.Errorf("Media: expected carried-forward description, got %+v", got.Media)
	}
	if got.QueueData == nil {
		t.Error("QueueData: expected carried-forward value, got nil")
	}
	if got.CurrentItemID == nil || *got.CurrentItemID != 2 {
		t.Errorf("CurrentItemID: expected 2 from the update, got %v", got.CurrentItemID)
	}
	if got.CurrentTime == nil || *got.CurrentTime != 30.0 {
		t.Errorf("CurrentTime: expected 30 from the update, got %v", got.CurrentTime)
	}
}

// TestPublishMedia_FullUpdateReplaces verifies that a complete update
// replaces every field without mixing in the previous snapshot.
func TestPublishMedia_FullUpdateReplaces(t *testing.T) {
	store := NewStatusStore(fullMediaStatus(), &cast.ReceiverStatus{})

	update := fullMediaStatus()
	update.Items = update.Items[:1]
	update.Media = &cast.MediaInformation{ContentID: "http://host/9"}
	update.QueueData = &cast.QueueData{Shuffle: true}
	store.PublishMedia(update)

	got := store.Media()
	if len(got.Items) != 1 {
		t.Errorf("Items: expected 1 entry, got %d", len(got.Items))
	}
	if got.Media.ContentID != "http://host/9" {
		t.Errorf("Media: expected the update's description, got %s", got.Media.ContentID)
	}
	if !got.QueueData.Shuffle {
		t.Error("QueueData: expected the update's value")
	}
}

// TestPublishMedia_DoesNotMutateUpdate verifies the caller's status is
// left alone when fields are carried forward.
func TestPublishMedia_DoesNotMutateUpdate(t *testing.T) {
	store := NewStatusStore(fullMediaStatus(), &cast.ReceiverStatus{})

	update := &cast.MediaStatus{MediaSessionID: 1, PlayerState: cast.PlayerPaused}
	store.PublishMedia(update)

	if update.Items != nil || update.Media != nil || update.QueueData != nil {
		t.Error("update was mutated by publish")
	}
	if store.Media() == update {
		t.Error("store installed the caller's struct instead of a patched copy")
	}
}

// TestChangeSignals_CoalesceAndStayIndependent verifies the dirty flags:
// repeated publishes collapse into one wakeup, and the media flag never
// fires for a receiver publish or vice versa.
func TestChangeSignals_CoalesceAndStayIndependent(t *testing.T) {
	store := NewStatusStore(fullMediaStatus(), &cast.ReceiverStatus{})

	store.PublishMedia(fullMediaStatus())
	store.PublishMedia(fullMediaStatus())
	store.PublishReceiver(&cast.ReceiverStatus{})

	select {
	case <-store.MediaChanged():
	default:
		t.Fatal("expected a media wakeup")
	}
	select {
	case <-store.MediaChanged():
		t.Error("media wakeups did not coalesce")
	default:
	}

	select {
	case <-store.ReceiverChanged():
	default:
		t.Fatal("expected a receiver wakeup")
	}
	select {
	case <-store.MediaChanged():
		t.Error("receiver publish raised the media flag")
	default:
	}
}
