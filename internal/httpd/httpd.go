// Package httpd serves the scanned tracks and their artwork to the
// receiver over HTTP, with byte-range support so the receiver can seek.
// URLs live under a per-session UUID prefix, so a stale receiver pointing
// at a previous run's port cannot fetch mismatched content.
package httpd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/g2p/joujou/internal/cast"
	"github.com/g2p/joujou/internal/scan"
)

// servedItem is one URL-addressable piece of content, either backed by a
// file on disk or held in memory (embedded artwork).
type servedItem struct {
	mime string
	path string
	data []byte
}

// Server exposes a playlist's tracks and visuals.
type Server struct {
	logger   *zap.Logger
	listener net.Listener
	session  string
	base     url.URL
	tracks   []servedItem
	visuals  []servedItem
	srv      *http.Server
}

// New builds a server for the playlist on an already-bound listener.
// It also rewrites each entry's metadata so the artwork images point at
// this server: embedded pictures get their own URL, entries without one
// fall back to the directory cover.
func New(logger *zap.Logger, listener net.Listener, pl *scan.Playlist) *Server {
	s := &Server{
		logger:   logger,
		listener: listener,
		session:  uuid.NewString(),
		base:     url.URL{Scheme: "http", Host: exposeHost(listener.Addr())},
	}

	coverURL := ""
	if pl.Cover != nil {
		s.visuals = append(s.visuals, servedItem{mime: pl.Cover.MIME, path: pl.Cover.Path})
		coverURL = s.VisualURL(0)
	}
	for _, ent := range pl.Entries {
		s.tracks = append(s.tracks, servedItem{mime: ent.MIME, path: ent.Path})
		artURL := coverURL
		if ent.Picture != nil {
			i := len(s.visuals)
			s.visuals = append(s.visuals, servedItem{mime: ent.Picture.MIME, data: ent.Picture.Data})
			artURL = s.VisualURL(i)
		}
		if artURL == "" {
			continue
		}
		if ent.Metadata == nil {
			ent.Metadata = &cast.MusicTrackMetadata{MetadataType: cast.MusicTrackMetadataType}
		}
		ent.Metadata.Images = []cast.Image{{URL: artURL}}
	}
	return s
}

// TrackURL is the receiver-reachable URL of queue entry i.
func (s *Server) TrackURL(i int) string {
	u := s.base
	u.Path = fmt.Sprintf("/%s/track/%d", s.session, i)
	return u.String()
}

// VisualURL is the receiver-reachable URL of visual i.
func (s *Server) VisualURL(i int) string {
	u := s.base
	u.Path = fmt.Sprintf("/%s/visual/%d", s.session, i)
	return u.String()
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /"+s.session+"/track/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.serveItem(w, r, s.tracks)
	})
	mux.HandleFunc("GET /"+s.session+"/visual/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.serveItem(w, r, s.visuals)
	})
	return mux
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	s.srv = &http.Server{Handler: s.Handler()}
	go func() {
		if err := s.srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", zap.Error(err))
		}
	}()
	s.logger.Info("serving playlist", zap.String("base", s.base.String()),
		zap.Int("tracks", len(s.tracks)), zap.Int("visuals", len(s.visuals)))
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) serveItem(w http.ResponseWriter, r *http.Request, items []servedItem) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 0 || id >= len(items) {
		http.NotFound(w, r)
		return
	}
	item := items[id]
	w.Header().Set("Content-Type", item.mime)
	if item.path == "" {
		http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(item.data))
		return
	}
	f, err := os.Open(item.path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, filepath.Base(item.path), fi.ModTime(), f)
}

// Listen binds a listener on the interface of local (the local end of the
// cast connection), so the receiver can reach us even on multi-homed
// hosts. An empty ports list means a random port; otherwise the first
// bindable port wins and the first error is reported if none is.
func Listen(local net.Addr, ports []uint16) (net.Listener, error) {
	tcp, ok := local.(*net.TCPAddr)
	if !ok {
		return nil, fmt.Errorf("unexpected local address type %T", local)
	}
	addr := &net.TCPAddr{IP: tcp.IP, Zone: tcp.Zone}
	if len(ports) == 0 {
		return net.ListenTCP("tcp", addr)
	}
	var firstErr error
	for _, port := range ports {
		addr.Port = int(port)
		ln, err := net.ListenTCP("tcp", addr)
		if err == nil {
			return ln, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// exposeHost renders the listener address for URLs, dropping the
// host-internal IPv6 zone.
func exposeHost(addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return addr.String()
	}
	return net.JoinHostPort(tcp.IP.String(), strconv.Itoa(tcp.Port))
}
