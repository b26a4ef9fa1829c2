package httpd

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"go.uber.org/zap"

	"github.com/g2p/joujou/internal/cast"
	"github.com/g2p/joujou/internal/scan"
)

func testListener(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln
}

func writeTrack(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.flac")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func get(t *testing.T, h http.Handler, rawURL string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, u.Path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// TestServeTrack_ByteRanges verifies tracks come off disk with range
// support so the receiver can seek.
func TestServeTrack_ByteRanges(t *testing.T) {
	pl := &scan.Playlist{Entries: []*scan.AudioFile{
		{Path: writeTrack(t, "0123456789"), MIME: "audio/flac"},
	}}
	s := New(zap.NewNop(), testListener(t), pl)
	h := s.Handler()

	rec := get(t, h, s.TrackURL(0), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/flac" {
		t.Errorf("content type: got %s", got)
	}
	if body, _ := io.ReadAll(rec.Body); string(body) != "0123456789" {
		t.Errorf("body: got %q", body)
	}

	rec = get(t, h, s.TrackURL(0), http.Header{"Range": []string{"bytes=2-5"}})
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", rec.Code)
	}
	if body, _ := io.ReadAll(rec.Body); string(body) != "2345" {
		t.Errorf("range body: got %q", body)
	}
}

// TestServeVisual_FromMemory verifies embedded artwork is served from the
// scanned bytes.
func TestServeVisual_FromMemory(t *testing.T) {
	pl := &scan.Playlist{Entries: []*scan.AudioFile{
		{
			Path:    writeTrack(t, "x"),
			MIME:    "audio/flac",
			Picture: &scan.Artwork{MIME: "image/jpeg", Data: []byte("jpeg bytes")},
		},
	}}
	s := New(zap.NewNop(), testListener(t), pl)

	rec := get(t, s.Handler(), s.VisualURL(0), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/jpeg" {
		t.Errorf("content type: got %s", got)
	}
	if body, _ := io.ReadAll(rec.Body); string(body) != "jpeg bytes" {
		t.Errorf("body: got %q", body)
	}
}

// TestNew_AssignsArtworkURLs verifies every entry's metadata points at
// this server: embedded art gets its own URL, the rest fall back to the
// directory cover.
func TestNew_AssignsArtworkURLs(t *testing.T) {
	cover := filepath.Join(t.TempDir(), "cover.jpg")
	if err := os.WriteFile(cover, []byte("cover bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	withArt := &scan.AudioFile{
		Path:    writeTrack(t, "a"),
		MIME:    "audio/flac",
		Picture: &scan.Artwork{MIME: "image/png", Data: []byte("embedded")},
		Metadata: &cast.MusicTrackMetadata{
			MetadataType: cast.MusicTrackMetadataType,
		},
	}
	plain := &scan.AudioFile{Path: writeTrack(t, "b"), MIME: "audio/flac"}
	pl := &scan.Playlist{
		Cover:   &scan.CoverFile{Path: cover, MIME: "image/jpeg"},
		Entries: []*scan.AudioFile{withArt, plain},
	}
	s := New(zap.NewNop(), testListener(t), pl)

	if len(withArt.Metadata.Images) != 1 || withArt.Metadata.Images[0].URL != s.VisualURL(1) {
		t.Errorf("embedded art should get its own URL, got %+v", withArt.Metadata.Images)
	}
	if plain.Metadata == nil || len(plain.Metadata.Images) != 1 {
		t.Fatalf("cover fallback missing, got %+v", plain.Metadata)
	}
	if plain.Metadata.Images[0].URL != s.VisualURL(0) {
		t.Errorf("expected the cover URL, got %s", plain.Metadata.Images[0].URL)
	}

	// The cover itself is served off disk.
	rec := get(t, s.Handler(), s.VisualURL(0), nil)
	if body, _ := io.ReadAll(rec.Body); string(body) != "cover bytes" {
		t.Errorf("cover body: got %q", body)
	}
}

// TestServe_RejectsStalePaths verifies requests outside this session's
// prefix or index range see nothing.
func TestServe_RejectsStalePaths(t *testing.T) {
	pl := &scan.Playlist{Entries: []*scan.AudioFile{
		{Path: writeTrack(t, "x"), MIME: "audio/flac"},
	}}
	s := New(zap.NewNop(), testListener(t), pl)
	h := s.Handler()

	for _, path := range []string{
		"/other-session/track/0",
		"/" + s.session + "/track/1",
		"/" + s.session + "/track/-1",
		"/" + s.session + "/visual/0",
		"/" + s.session + "/track/x",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

// TestListen_PortSpec verifies the port selection modes: random when
// unspecified, first free port of a list otherwise.
func TestListen_PortSpec(t *testing.T) {
	local := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}

	ln, err := Listen(local, nil)
	if err != nil {
		t.Fatalf("random port bind failed: %v", err)
	}
	defer ln.Close()
	taken := uint16(ln.Addr().(*net.TCPAddr).Port)

	// Find a port that is currently free.
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	free := uint16(probe.Addr().(*net.TCPAddr).Port)
	probe.Close()

	ln2, err := Listen(local, []uint16{taken, free})
	if err != nil {
		t.Fatalf("expected the second port to win: %v", err)
	}
	defer ln2.Close()
	if got := uint16(ln2.Addr().(*net.TCPAddr).Port); got != free {
		t.Errorf("expected port %d, got %d", free, got)
	}

	if _, err := Listen(local, []uint16{taken}); err == nil {
		t.Error("expected an error when every port is taken")
	}
}

func TestTrackURL_UsesListenerAddress(t *testing.T) {
	ln := testListener(t)
	pl := &scan.Playlist{}
	s := New(zap.NewNop(), ln, pl)

	u, err := url.Parse(s.TrackURL(3))
	if err != nil {
		t.Fatal(err)
	}
	port := strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)
	if u.Host != net.JoinHostPort("127.0.0.1", port) {
		t.Errorf("host: got %s", u.Host)
	}
	if u.Path != "/"+s.session+"/track/3" {
		t.Errorf("path: got %s", u.Path)
	}
}
