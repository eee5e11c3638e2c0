// Package udp provides one concrete implementation of the transport.Conn/
// Listener contract (transport/transport.go) over a UDP socket, so
// cmd/tspipe has something to actually bind and serve against. The wire
// transport itself is explicitly out of spec scope (spec §1/§6: "the
// reliable datagram transport itself ... we treat it as a byte-stream
// source"); this package exists only to make the repository runnable
// end-to-end, grounded on the plain net.UDPConn accept loops the pack's
// pusher/rtmp.go (a TCP dial loop) and media/protocol/ts/conn.go (a
// bare Conn interface with no bundled implementation) both leave to the
// concrete transport layer.
//
// Framing: a connection's first datagram is its handshake, a UTF-8
// stream_id string of at most 512 bytes; every datagram after that from the
// same remote address must be exactly transport.DatagramSize bytes and is
// handed to the demuxer as-is.
package udp

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/tspipe/tspipe/transport"
)

const maxHandshakeLen = 512

// Listener accepts UDP "connections": distinct remote addresses, the first
// packet from each treated as its stream_id handshake.
type Listener struct {
	pc net.PacketConn

	mu      sync.Mutex
	conns   map[string]*Conn
	pending chan *Conn
	closed  bool
}

// Listen opens a UDP socket at addr and returns a Listener ready to Accept.
func Listen(addr string) (*Listener, error) {
	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport/udp: listen %s: %w", addr, err)
	}
	l := &Listener{
		pc:      pc,
		conns:   make(map[string]*Conn),
		pending: make(chan *Conn, 16),
	}
	go l.readLoop()
	return l, nil
}

func (l *Listener) readLoop() {
	// One byte of slack so an oversized datagram reads as longer than
	// DatagramSize and is rejected instead of silently truncated.
	buf := make([]byte, transport.DatagramSize+1)
	for {
		n, addr, err := l.pc.ReadFrom(buf)
		if err != nil {
			return
		}
		key := addr.String()

		l.mu.Lock()
		conn, known := l.conns[key]
		if !known {
			if n == 0 || n > maxHandshakeLen {
				l.mu.Unlock()
				continue
			}
			conn = newConn(l, addr, string(buf[:n]))
			l.conns[key] = conn
			l.mu.Unlock()
			select {
			case l.pending <- conn:
			default:
				// Backlog full; drop the handshake and forget the address
				// so the sender's retried handshake is accepted afresh.
				l.forget(key)
			}
			continue
		}
		l.mu.Unlock()

		if n != transport.DatagramSize {
			continue
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		conn.deliver(datagram)
	}
}

// Accept returns the next newly handshaked connection.
func (l *Listener) Accept(ctx context.Context) (transport.Conn, error) {
	select {
	case c, ok := <-l.pending:
		if !ok {
			return nil, transport.ErrListenerClosed
		}
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts down the listener and every tracked connection.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.pending)
	conns := make([]*Conn, 0, len(l.conns))
	for _, c := range l.conns {
		conns = append(conns, c)
	}
	l.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	return l.pc.Close()
}

func (l *Listener) forget(key string) {
	l.mu.Lock()
	delete(l.conns, key)
	l.mu.Unlock()
}

// Conn is one UDP "connection": a remote address plus its handshake
// stream_id, fed datagrams by the owning Listener's read loop.
type Conn struct {
	l        *Listener
	addr     net.Addr
	streamID string
	inbox    chan []byte
	closed   chan struct{}
}

func newConn(l *Listener, addr net.Addr, streamID string) *Conn {
	return &Conn{
		l:        l,
		addr:     addr,
		streamID: streamID,
		inbox:    make(chan []byte, 64),
		closed:   make(chan struct{}),
	}
}

func (c *Conn) deliver(datagram []byte) {
	select {
	case c.inbox <- datagram:
	case <-c.closed:
	default:
		// Slow consumer; drop rather than block the shared read loop.
	}
}

// StreamID returns the handshake string this connection announced.
func (c *Conn) StreamID() string { return c.streamID }

// Recv returns the next datagram, or an error once ctx's deadline passes or
// the connection is closed.
func (c *Conn) Recv(ctx context.Context) ([]byte, error) {
	select {
	case d := <-c.inbox:
		return d, nil
	case <-c.closed:
		return nil, transport.ErrTransportClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close releases the connection's tracking entry in its Listener.
func (c *Conn) Close() error {
	select {
	case <-c.closed:
		return nil
	default:
		close(c.closed)
	}
	c.l.forget(c.addr.String())
	return nil
}
