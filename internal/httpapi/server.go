// Package httpapi implements the four HLS/LL-HLS routes of spec §6:
// playlist.m3u8, segment.m4s, part.m4s, and init.mp4, all keyed by
// {stream_name}. Grounded on the teacher's media/protocol/hls package for
// route shape and on stream.Registry as the lookup seam into the live
// segment stores internal/stream.Manager maintains; plain net/http is used
// throughout since no example repo in the corpus reaches for a router
// library for a media-serving HTTP surface (see DESIGN.md).
package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tspipe/tspipe/internal/segstore"
	"github.com/tspipe/tspipe/internal/stream"
)

// blockingReloadPollInterval and blockingReloadMaxPolls implement spec §7's
// "Manifest blocking-reload polls at 150 ms up to ~100 iterations".
const (
	blockingReloadPollInterval = 150 * time.Millisecond
	blockingReloadMaxPolls     = 100
)

// Server is the HTTP surface of spec §6/§4.G, reading from a
// stream.Registry and writing nothing back into the pipeline.
type Server struct {
	registry stream.Registry
	log      zerolog.Logger
}

// NewServer returns a Server backed by registry.
func NewServer(registry stream.Registry, log zerolog.Logger) *Server {
	return &Server{registry: registry, log: log}
}

// Handler returns the root http.Handler for the four HLS routes plus the
// status.json diagnostic route.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.route)
	return mux
}

// route dispatches {stream_name}/{resource} requests to the matching
// handler. A path that doesn't match exactly two segments, or whose
// resource name isn't one of the four HLS routes or status.json, is a 404.
func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	streamName, resource := parts[0], parts[1]

	store, ok := s.registry.Lookup(streamName)
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch resource {
	case "playlist.m3u8":
		s.servePlaylist(w, r, store)
	case "segment.m4s":
		s.serveSegment(w, r, store)
	case "part.m4s":
		s.servePart(w, r, store)
	case "init.mp4":
		s.serveInit(w, r, store)
	case "status.json":
		s.serveStatus(w, r, streamName, store)
	default:
		http.NotFound(w, r)
	}
}

func parseMSN(r *http.Request, key string) (uint64, bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	return v, true, err
}

func parsePart(r *http.Request, key string) (int, bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	return v, true, err
}
