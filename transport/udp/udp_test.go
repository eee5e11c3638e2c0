package udp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tspipe/tspipe/transport"
)

func TestListenerHandshakeThenDatagrams(t *testing.T) {
	l, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	addr := l.pc.LocalAddr().(*net.UDPAddr)
	sender, err := net.DialUDP("udp", nil, addr)
	require.NoError(t, err)
	defer sender.Close()

	_, err = sender.Write([]byte("my-stream"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := l.Accept(ctx)
	require.NoError(t, err)
	require.Equal(t, "my-stream", conn.StreamID())

	datagram := make([]byte, transport.DatagramSize)
	for i := range datagram {
		datagram[i] = byte(i)
	}
	_, err = sender.Write(datagram)
	require.NoError(t, err)

	recvCtx, recvCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer recvCancel()
	got, err := conn.Recv(recvCtx)
	require.NoError(t, err)
	require.Equal(t, datagram, got)

	require.NoError(t, conn.Close())
}

func TestListenerAcceptReturnsErrAfterClose(t *testing.T) {
	l, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, l.Close())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = l.Accept(ctx)
	require.ErrorIs(t, err, transport.ErrListenerClosed)
}

func TestListenerAcceptRespectsContextCancellation(t *testing.T) {
	l, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.Accept(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
