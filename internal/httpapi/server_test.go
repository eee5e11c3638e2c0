package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tspipe/tspipe/internal/fmp4"
	"github.com/tspipe/tspipe/internal/segstore"
)

// stubRegistry implements stream.Registry over a fixed map, so handler
// tests don't need a real stream.Manager/session.Manager wired up.
type stubRegistry map[string]*segstore.Store

func (r stubRegistry) Lookup(name string) (*segstore.Store, bool) {
	s, ok := r[name]
	return s, ok
}

func newTestStore() *segstore.Store {
	st := segstore.New(segstore.Config{WindowSize: 3, PartDuration: 200 * time.Millisecond, LowLatencyMode: true, IsLive: true})
	st.Handle(fmp4.Event{Kind: fmp4.EventInit, Init: []byte("ftyp+moov")})
	st.Handle(fmp4.Event{
		Kind:            fmp4.EventFragment,
		Fragment:        []byte("moof+mdat"),
		Video:           true,
		NewSegment:      true,
		Independent:     true,
		Keyframe:        true,
		ProgramDateTime: time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
		Timestamp90k:    0,
	})
	return st
}

func TestRouteReturns404ForUnknownStream(t *testing.T) {
	s := NewServer(stubRegistry{}, zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/missing/playlist.m3u8", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouteReturns404ForUnknownResource(t *testing.T) {
	reg := stubRegistry{"s1": newTestStore()}
	s := NewServer(reg, zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/s1/nope.txt", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestServePlaylistReturnsManifest(t *testing.T) {
	reg := stubRegistry{"s1": newTestStore()}
	s := NewServer(reg, zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/s1/playlist.m3u8", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "#EXTM3U")
	require.Equal(t, "application/x-mpegURL", w.Header().Get("Content-Type"))
}

func TestServePlaylistRejectsPartWithoutMSN(t *testing.T) {
	reg := stubRegistry{"s1": newTestStore()}
	s := NewServer(reg, zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/s1/playlist.m3u8?_HLS_part=0", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServeInitServesCachedBytes(t *testing.T) {
	reg := stubRegistry{"s1": newTestStore()}
	s := NewServer(reg, zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/s1/init.mp4", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ftyp+moov", w.Body.String())
}

func TestServeSegmentStreamsBufferedBytes(t *testing.T) {
	reg := stubRegistry{"s1": newTestStore()}
	s := NewServer(reg, zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/s1/segment.m4s?msn=0", nil)
	w := httptest.NewRecorder()

	store := reg["s1"]
	// A second NewSegment fragment closes segment 0's trailing partial and
	// marks it complete, so serveSegment's subscription channel closes
	// immediately instead of blocking for more live data.
	store.Handle(fmp4.Event{
		Kind:            fmp4.EventFragment,
		Fragment:        []byte("moof2"),
		Video:           true,
		NewSegment:      true,
		Independent:     true,
		Keyframe:        true,
		ProgramDateTime: time.Date(2026, 7, 31, 0, 0, 1, 0, time.UTC),
		Timestamp90k:    90000,
	})
	seg, ok := store.Lookup(0)
	require.True(t, ok)
	require.True(t, seg.Complete())

	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "moof+mdat", w.Body.String())
}

func TestServeSegmentMissingMSNReturnsBadRequest(t *testing.T) {
	reg := stubRegistry{"s1": newTestStore()}
	s := NewServer(reg, zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/s1/segment.m4s", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServeStatusReturnsJSON(t *testing.T) {
	reg := stubRegistry{"s1": newTestStore()}
	s := NewServer(reg, zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/s1/status.json", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"stream":"s1"`)
	require.Contains(t, w.Body.String(), `"has_init":true`)
}
