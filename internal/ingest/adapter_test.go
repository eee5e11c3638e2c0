package ingest

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tspipe/tspipe/internal/session"
	"github.com/tspipe/tspipe/transport"
)

// fakeConn feeds a queued list of datagrams, then returns io.EOF.
type fakeConn struct {
	mu        sync.Mutex
	id        string
	datagrams [][]byte
	closed    bool
}

func (c *fakeConn) StreamID() string { return c.id }

func (c *fakeConn) Recv(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.datagrams) == 0 {
		return nil, io.EOF
	}
	d := c.datagrams[0]
	c.datagrams = c.datagrams[1:]
	return d, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

var _ transport.Conn = (*fakeConn)(nil)

func tsPacket(pid uint16, pusi bool, cc uint8, payload []byte) []byte {
	pkt := make([]byte, 188)
	pkt[0] = 0x47
	pkt[1] = byte(pid >> 8 & 0x1F)
	if pusi {
		pkt[1] |= 0x40
	}
	pkt[2] = byte(pid)
	pkt[3] = 0x10 | cc&0x0F
	n := copy(pkt[4:], payload)
	for i := 4 + n; i < len(pkt); i++ {
		pkt[i] = 0xFF
	}
	return pkt
}

func patSection() []byte {
	return []byte{
		0x00, 0xB0, 0x0D, 0x00, 0x01, 0xC1, 0x00, 0x00,
		0x00, 0x01, 0xE1, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
}

func pmtSection() []byte {
	return []byte{
		0x02, 0xB0, 0x17, 0x00, 0x01, 0xC1, 0x00, 0x00,
		0xE1, 0x01, 0xF0, 0x00,
		0x1B, 0xE1, 0x01, 0xF0, 0x00,
		0x0F, 0xE1, 0x02, 0xF0, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
}

// datagramWithPATPMT packs a PAT packet and a PMT packet into the first two
// of the seven TS packets making up one 1316-byte datagram; the rest are
// null-PID filler.
func datagramWithPATPMT() []byte {
	var buf []byte
	buf = append(buf, tsPacket(0x0000, true, 0, append([]byte{0x00}, patSection()...))...)
	buf = append(buf, tsPacket(0x0100, true, 0, append([]byte{0x00}, pmtSection()...))...)
	for i := 0; i < 5; i++ {
		buf = append(buf, tsPacket(0x1FFF, false, 0, nil)...)
	}
	return buf
}

// TestAdapterPublishesThenReleasesOnClose feeds one datagram carrying a
// PAT+PMT pair (enough to transition Initializing -> Publishing, which
// creates the session), then lets Recv hit io.EOF. Run must come back
// cleanly, close the connection, and release the session it created — the
// only way Join below can fail once Run has returned.
func TestAdapterPublishesThenReleasesOnClose(t *testing.T) {
	sm, stop := session.NewManager()
	defer stop()

	conn := &fakeConn{id: "live/a", datagrams: [][]byte{datagramWithPATPMT()}}
	a := NewAdapter(conn, sm, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.Run(ctx))

	require.True(t, conn.closed)
	require.Equal(t, StateDisconnecting, a.state)

	_, _, err := sm.Join("live/a")
	require.Error(t, err, "adapter must release its session once the transport closes")
}

// TestAdapterNeverPublishesWithoutStreamDetails feeds only null-PID filler
// packets: no PAT/PMT ever arrives, so the adapter must stay Initializing
// and never call session.Manager.Create.
func TestAdapterNeverPublishesWithoutStreamDetails(t *testing.T) {
	sm, stop := session.NewManager()
	defer stop()

	filler := make([]byte, 0, transport.DatagramSize)
	for i := 0; i < packetsPerDatagram; i++ {
		filler = append(filler, tsPacket(0x1FFF, false, 0, nil)...)
	}
	conn := &fakeConn{id: "live/b", datagrams: [][]byte{filler}}
	a := NewAdapter(conn, sm, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.Run(ctx))

	require.Equal(t, StateDisconnecting, a.state)
	_, _, err := sm.Join("live/b")
	require.Error(t, err, "no session should have been created")
}
