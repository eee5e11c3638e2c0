package segstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tspipe/tspipe/internal/fmp4"
)

func newSegmentEvent(pdt time.Time, ts uint64, newSegment bool) fmp4.Event {
	return fmp4.Event{
		Kind:            fmp4.EventFragment,
		Fragment:        []byte("moof+mdat"),
		Video:           true,
		NewSegment:      newSegment,
		Independent:     newSegment,
		Keyframe:        newSegment,
		ProgramDateTime: pdt,
		Timestamp90k:    ts,
	}
}

func TestStoreWindowEviction(t *testing.T) {
	st := New(Config{WindowSize: 2, PartDuration: 200 * time.Millisecond, LowLatencyMode: true, IsLive: true})
	st.Handle(fmp4.Event{Kind: fmp4.EventInit, Init: []byte("ftyp+moov")})

	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		st.Handle(newSegmentEvent(base.Add(time.Duration(i)*time.Second), uint64(i)*90000, true))
	}

	assert.LessOrEqual(t, len(st.live), st.cfg.WindowSize)
	assert.Equal(t, uint64(2), st.MediaSequence())

	seg, ok := st.Lookup(2)
	require.True(t, ok)
	assert.True(t, seg.KeyFrame)

	_, ok = st.Lookup(1)
	require.True(t, ok, "evicted segment 1 should still resolve via outdated ring")

	_, ok = st.Lookup(99)
	assert.False(t, ok)
}

func TestStoreManifestReflectsMediaSequence(t *testing.T) {
	st := New(Config{WindowSize: 3, PartDuration: 200 * time.Millisecond, IsLive: true})
	st.Handle(fmp4.Event{Kind: fmp4.EventInit, Init: []byte("ftyp+moov")})

	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	st.Handle(newSegmentEvent(base, 0, true))
	st.Handle(newSegmentEvent(base.Add(2*time.Second), 2*90000, true))

	text, _ := st.Manifest()
	assert.Contains(t, string(text), "#EXT-X-MEDIA-SEQUENCE:0")
	assert.Contains(t, string(text), `#EXT-X-MAP:URI="init.mp4"`)
	assert.Contains(t, string(text), "segment.m4s?msn=0")
}

func TestSegmentStreaming(t *testing.T) {
	st := New(Config{WindowSize: 2, IsLive: true})
	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	st.Handle(newSegmentEvent(base, 0, true))

	seg, ok := st.Lookup(0)
	require.True(t, ok)
	ch := seg.Subscribe()

	chunk, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, []byte("moof+mdat"), chunk)

	seg.complete(90000)
	_, ok = <-ch
	assert.False(t, ok, "channel closes once the segment completes")
}
