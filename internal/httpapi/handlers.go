package httpapi

import (
	"net/http"
	"time"

	"github.com/tspipe/tspipe/internal/segstore"
)

// servePlaylist implements the GET /:id/playlist.m3u8 route of spec §6,
// including the _HLS_msn/_HLS_part blocking-reload semantics of §7: a
// request naming a part that hasn't arrived yet polls every 150 ms for up
// to ~15 s before giving up with 400.
func (s *Server) servePlaylist(w http.ResponseWriter, r *http.Request, store *segstore.Store) {
	msn, hasMSN, err := parseMSN(r, "_HLS_msn")
	if err != nil {
		http.Error(w, "invalid _HLS_msn", http.StatusBadRequest)
		return
	}
	part, hasPart, err := parsePart(r, "_HLS_part")
	if err != nil {
		http.Error(w, "invalid _HLS_part", http.StatusBadRequest)
		return
	}
	if hasPart && !hasMSN {
		http.Error(w, "_HLS_part requires _HLS_msn", http.StatusBadRequest)
		return
	}

	if hasMSN {
		if !s.awaitPart(r, store, msn, part, hasPart) {
			http.Error(w, "blocking reload timed out", http.StatusBadRequest)
			return
		}
	}

	text, _ := store.Manifest()
	writeManifestHeaders(w)
	w.Write(text)
}

// awaitPart polls store for the requested msn/part, per spec §7's 150ms/100
// iteration blocking-reload budget.
func (s *Server) awaitPart(r *http.Request, store *segstore.Store, msn uint64, part int, hasPart bool) bool {
	wantPart := -1
	if hasPart {
		wantPart = part
	}
	if store.HasPart(msn, wantPart) {
		return true
	}
	ticker := time.NewTicker(blockingReloadPollInterval)
	defer ticker.Stop()
	for i := 0; i < blockingReloadMaxPolls; i++ {
		select {
		case <-r.Context().Done():
			return false
		case <-ticker.C:
			if store.HasPart(msn, wantPart) {
				return true
			}
		}
	}
	return false
}

func writeManifestHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/x-mpegURL")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "max-age=0")
}

// serveSegment implements GET /:id/segment.m4s: a streaming response that
// flushes each chunk as it arrives for an in-progress segment, per spec
// §4.G/§6.
func (s *Server) serveSegment(w http.ResponseWriter, r *http.Request, store *segstore.Store) {
	msn, ok, err := parseMSN(r, "msn")
	if err != nil || !ok {
		http.Error(w, "missing or invalid msn", http.StatusBadRequest)
		return
	}
	seg, ok := store.Lookup(msn)
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	flusher, canFlush := w.(http.Flusher)

	ch := seg.Subscribe()
	for {
		select {
		case chunk, open := <-ch:
			if !open {
				return
			}
			if _, err := w.Write(chunk); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

// servePart implements GET /:id/part.m4s: unlike segment.m4s this always
// serves a single already-known byte range (a partial's own Data), so it
// never streams.
func (s *Server) servePart(w http.ResponseWriter, r *http.Request, store *segstore.Store) {
	msn, ok, err := parseMSN(r, "msn")
	if err != nil || !ok {
		http.Error(w, "missing or invalid msn", http.StatusBadRequest)
		return
	}
	partIdx, ok, err := parsePart(r, "part")
	if err != nil || !ok {
		http.Error(w, "missing or invalid part", http.StatusBadRequest)
		return
	}
	seg, ok := store.Lookup(msn)
	if !ok {
		http.NotFound(w, r)
		return
	}
	partials := seg.Partials()
	if partIdx < 0 || partIdx >= len(partials) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Write(partials[partIdx].Data)
}

// serveInit implements GET /:id/init.mp4, per spec §6: long-lived cache
// headers since the init segment never changes for a stream's lifetime.
func (s *Server) serveInit(w http.ResponseWriter, r *http.Request, store *segstore.Store) {
	init := store.InitSegment()
	if init == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Cache-Control", "max-age=31536000")
	w.Write(init)
}
