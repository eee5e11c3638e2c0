package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tspipe/tspipe/internal/mpegts"
)

func TestCreateDuplicateNameFails(t *testing.T) {
	m, stop := NewManager()
	defer stop()

	_, err := m.Create("live/a")
	require.NoError(t, err)

	_, err = m.Create("live/a")
	require.Error(t, err)
}

func TestJoinUnknownStreamFails(t *testing.T) {
	m, stop := NewManager()
	defer stop()

	_, _, err := m.Join("live/missing")
	require.Error(t, err)
}

func TestBroadcastFanOutToMultipleJoiners(t *testing.T) {
	m, stop := NewManager()
	defer stop()

	inbox, err := m.Create("live/a")
	require.NoError(t, err)

	_, sub1, err := m.Join("live/a")
	require.NoError(t, err)
	_, sub2, err := m.Join("live/a")
	require.NoError(t, err)

	inbox <- Message{Kind: MessageClockRef, PCR: 42}

	for _, sub := range []*Subscription{sub1, sub2} {
		msg, ok := sub.Recv()
		require.True(t, ok)
		require.Equal(t, MessageClockRef, msg.Kind)
		require.Equal(t, uint64(42), msg.PCR)
	}
}

func TestReleaseClosesBroadcastSink(t *testing.T) {
	m, stop := NewManager()
	defer stop()

	_, err := m.Create("live/a")
	require.NoError(t, err)
	_, sub, err := m.Join("live/a")
	require.NoError(t, err)

	m.Release("live/a")

	require.Eventually(t, func() bool {
		_, ok := sub.Recv()
		return !ok
	}, time.Second, 5*time.Millisecond)

	_, _, err = m.Join("live/a")
	require.Error(t, err)
}

func TestDisconnectMessageReleasesChannel(t *testing.T) {
	m, stop := NewManager()
	defer stop()

	inbox, err := m.Create("live/a")
	require.NoError(t, err)
	_, sub, err := m.Join("live/a")
	require.NoError(t, err)

	inbox <- Message{Kind: MessageDisconnect}

	require.Eventually(t, func() bool {
		_, ok := sub.Recv()
		return !ok
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		_, _, err := m.Join("live/a")
		return err != nil
	}, time.Second, 5*time.Millisecond)
}

func TestCreateSessionTriggerFires(t *testing.T) {
	m, stop := NewManager()
	defer stop()

	fired := make(chan string, 1)
	m.RegisterTrigger("create_session", func(name string, sub *Subscription) {
		fired <- name
		sub.Close()
	})

	_, err := m.Create("live/a")
	require.NoError(t, err)

	select {
	case name := <-fired:
		require.Equal(t, "live/a", name)
	case <-time.After(time.Second):
		t.Fatal("create_session trigger did not fire")
	}
}

func TestBroadcastDropsOldestWhenSubscriberFallsBehind(t *testing.T) {
	b := newBroadcaster()
	sub := b.subscribe()

	for i := 0; i < broadcastBufferSize+10; i++ {
		b.publish(Message{Kind: MessagePacket, Codec: mpegts.H264, PTS: uint64(i)})
	}

	msg, ok := sub.Recv()
	require.True(t, ok)
	require.Equal(t, uint64(10), msg.PTS)
}
