package stream

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tspipe/tspipe/internal/mpegts"
	"github.com/tspipe/tspipe/internal/segstore"
	"github.com/tspipe/tspipe/internal/session"
)

func testConfig() segstore.Config {
	return segstore.Config{WindowSize: 3, PartDuration: time.Second, LowLatencyMode: true, IsLive: true}
}

func TestEnsureFragmenterOnlyBuildsOnce(t *testing.T) {
	r := newRunner("s1", testConfig(), zerolog.Nop())
	require.Nil(t, r.fragmenter)

	r.ensureFragmenter(mpegts.H264)
	first := r.fragmenter
	require.NotNil(t, first)

	r.ensureFragmenter(mpegts.H265)
	require.Same(t, first, r.fragmenter, "a second call must not replace the codec chosen by the first video packet")
}

func TestCaptureParameterSetsKeepsFirstOccurrenceOnly(t *testing.T) {
	r := newRunner("s1", testConfig(), zerolog.Nop())

	sps1 := []byte{0, 0, 0, 1, 0x67, 0x01}
	pps1 := []byte{0, 0, 0, 1, 0x68, 0x02}
	r.captureParameterSets(mpegts.H264, append(sps1, pps1...))
	require.Equal(t, []byte{0x67, 0x01}, r.gotVideoSPS)
	require.Equal(t, []byte{0x68, 0x02}, r.gotVideoPPS)

	sps2 := []byte{0, 0, 0, 1, 0x67, 0xFF}
	r.captureParameterSets(mpegts.H264, sps2)
	require.Equal(t, []byte{0x67, 0x01}, r.gotVideoSPS, "a later SPS must not overwrite the first one captured")
}

func TestHandleClockRefIsNoOpBeforeFragmenterExists(t *testing.T) {
	r := newRunner("s1", testConfig(), zerolog.Nop())
	require.NotPanics(t, func() {
		r.handle(session.Message{Kind: session.MessageClockRef, PCR: 12345})
	})
}

func TestRunStopsWhenSubscriptionCloses(t *testing.T) {
	sm, stop := session.NewManager()
	defer stop()

	inbox, err := sm.Create("s1")
	require.NoError(t, err)

	_, sub, err := sm.Join("s1")
	require.NoError(t, err)

	r := newRunner("s1", testConfig(), zerolog.Nop())
	done := make(chan struct{})
	go func() {
		r.Run(sub)
		close(done)
	}()

	inbox <- session.Message{Kind: session.MessageClockRef, PCR: 1}
	sm.Release("s1")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the session channel closed")
	}
}
