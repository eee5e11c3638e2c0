package fmp4

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// realWorldSPS/realWorldPPS are the same x264 High-profile fixture used by
// internal/codec/h264's tests.
var (
	realWorldSPS = []byte{
		0x67, 0x64, 0x00, 0x0A, 0xAC, 0x72, 0x84, 0x44,
		0x26, 0x84, 0x00, 0x00, 0x03, 0x00, 0x04, 0x00,
		0x00, 0x03, 0x00, 0xCA, 0x3C, 0x48, 0x96, 0x11, 0x80,
	}
	realWorldPPS = []byte{0x68, 0xEB, 0xE3, 0xCB, 0x22, 0xC0}
)

func annexB(nals ...[]byte) []byte {
	var out []byte
	for _, nal := range nals {
		out = append(out, 0, 0, 0, 1)
		out = append(out, nal...)
	}
	return out
}

// idrSlice/nonIdrSlice are minimal one-byte-type-plus-payload NALs: only
// the first byte (nal_unit_type) is consulted by IsIDR/IsSlice, so the
// trailing bytes are arbitrary.
var (
	idrSlice    = []byte{0x65, 0x88, 0x84, 0x00}
	nonIdrSlice = []byte{0x41, 0x9A, 0x02}
)

// adtsFrame is a single hand-built ADTS frame (AAC-LC, 44100 Hz, stereo, no
// CRC) wrapping a 4-byte dummy payload, verified against
// internal/codec/aac.ParseADTSFrames's field layout.
var adtsFrame = []byte{
	0xFF, 0xF1, 0x50, 0x80, 0x01, 0x7F, 0xFC,
	0xDE, 0xAD, 0xBE, 0xEF,
}

func TestFragmenterDropsFramesBeforeClockReady(t *testing.T) {
	f := NewFragmenter(false, time.Second)
	require.NoError(t, f.PushVideoConfig(realWorldSPS, realWorldPPS, nil))

	events, err := f.PushVideoAU(annexB(idrSlice), 0, 0, false)
	require.NoError(t, err)
	require.Nil(t, events)
}

func TestFragmenterEmitsInitOnceBothTracksConfigured(t *testing.T) {
	f := NewFragmenter(false, time.Second)
	f.ObserveClockRef(0, time.Now())
	require.NoError(t, f.PushVideoConfig(realWorldSPS, realWorldPPS, nil))

	// Audio arrives first and supplies both the audio config and, since
	// video config is already set, the init segment's gating condition.
	events, err := f.PushAudio(adtsFrame, 0)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	require.Equal(t, EventInit, events[0].Kind)
	require.NotEmpty(t, events[0].Init)

	// A second call never re-emits the init segment.
	events, err = f.PushAudio(adtsFrame, 1024)
	require.NoError(t, err)
	for _, ev := range events {
		require.NotEqual(t, EventInit, ev.Kind)
	}
}

func TestFragmenterKeyframeOpensNewSegment(t *testing.T) {
	f := NewFragmenter(false, time.Second)
	f.ObserveClockRef(0, time.Now())
	require.NoError(t, f.PushVideoConfig(realWorldSPS, realWorldPPS, nil))
	_, err := f.PushAudio(adtsFrame, 0)
	require.NoError(t, err)

	// The first access unit is only ever held back to learn its duration;
	// nothing is emitted for it yet (init already fired above).
	events, err := f.PushVideoAU(annexB(idrSlice), 0, 0, false)
	require.NoError(t, err)
	require.Empty(t, events)

	// The second AU's arrival completes the first (keyframe) sample.
	events, err = f.PushVideoAU(annexB(nonIdrSlice), 3000, 3000, false)
	require.NoError(t, err)
	require.Len(t, events, 1)
	frag := events[0]
	require.Equal(t, EventFragment, frag.Kind)
	require.True(t, frag.Video)
	require.True(t, frag.Keyframe)
	require.True(t, frag.NewSegment)
	require.True(t, frag.Independent)
	require.NotEmpty(t, frag.Fragment)
}

func TestFragmenterNonKeyframeClosesPartialAtThreshold(t *testing.T) {
	f := NewFragmenter(false, 1*time.Millisecond)
	f.ObserveClockRef(0, time.Now())
	require.NoError(t, f.PushVideoConfig(realWorldSPS, realWorldPPS, nil))
	_, err := f.PushAudio(adtsFrame, 0)
	require.NoError(t, err)

	_, err = f.PushVideoAU(annexB(idrSlice), 0, 0, false)
	require.NoError(t, err)

	// Pair off the keyframe; it opens a new segment and sets partialBegin
	// to its translated timestamp, 90000 (the clock anchor sits one second
	// behind the PCR).
	events, err := f.PushVideoAU(annexB(nonIdrSlice), 500, 500, false)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.True(t, events[0].NewSegment)

	// A third AU, far enough past the 1ms (90-tick) part duration
	// threshold, should close and reopen a plain partial without starting
	// a new segment.
	events, err = f.PushVideoAU(annexB(nonIdrSlice), 50000, 50000, false)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.False(t, events[0].NewSegment)
	require.True(t, events[0].Partial)
}
