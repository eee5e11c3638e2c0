// Package ingest drives one transport connection through the
// Initializing -> Publishing -> Disconnecting state machine of spec §4.E:
// read fixed-size datagrams, demultiplex them, and forward the resulting
// events into a session channel.
package ingest

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tspipe/tspipe/internal/mpegts"
	"github.com/tspipe/tspipe/internal/session"
	"github.com/tspipe/tspipe/transport"
)

// State is one of the three states an ingest connection moves through.
type State uint8

const (
	StateInitializing State = iota
	StatePublishing
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StatePublishing:
		return "publishing"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

const packetsPerDatagram = transport.DatagramSize / 188

// Adapter owns one connection's lifecycle: demuxing its datagrams and
// relaying events into a session.Manager-owned channel.
type Adapter struct {
	conn       transport.Conn
	sm         *session.Manager
	log        zerolog.Logger
	demux      *mpegts.Demuxer
	state      State
	inbox      session.Inbox
	streamName string
}

// NewAdapter constructs an Adapter for a freshly accepted connection. The
// stream name used to create/locate its session channel is the
// connection's handshake StreamID; every log line for this connection also
// carries a random conn_id so two publishers racing to claim the same
// stream name can still be told apart in the logs.
func NewAdapter(conn transport.Conn, sm *session.Manager, log zerolog.Logger) *Adapter {
	name := conn.StreamID()
	connLog := log.With().Str("stream", name).Str("conn_id", uuid.NewString()).Logger()
	return &Adapter{
		conn:       conn,
		sm:         sm,
		log:        connLog,
		demux:      mpegts.NewDemuxer(connLog),
		state:      StateInitializing,
		streamName: name,
	}
}

// Run reads datagrams until the transport closes, times out, or ctx is
// canceled, driving the demuxer and the Initializing/Publishing state
// transition. It always returns nil: transport timeouts and closes are
// expected end-of-life events, not adapter failures.
func (a *Adapter) Run(ctx context.Context) error {
	defer a.disconnect()

	for {
		recvCtx, cancel := context.WithTimeout(ctx, transport.RecvTimeout)
		data, err := a.conn.Recv(recvCtx)
		cancel()
		if err != nil {
			a.log.Info().Err(err).Str("state", a.state.String()).Msg("ingest: connection ended")
			return nil
		}
		if len(data) != transport.DatagramSize {
			a.log.Warn().Int("len", len(data)).Msg("ingest: dropping short datagram")
			continue
		}
		a.pushDatagram(data)
	}
}

func (a *Adapter) pushDatagram(data []byte) {
	for i := 0; i < packetsPerDatagram; i++ {
		pkt := data[i*188 : (i+1)*188]
		events, err := a.demux.Push(pkt)
		if err != nil {
			a.log.Warn().Err(err).Msg("ingest: dropping malformed TS packet")
			continue
		}
		for _, ev := range events {
			a.handleEvent(ev)
		}
	}
}

func (a *Adapter) handleEvent(ev mpegts.Event) {
	switch ev.Kind {
	case mpegts.EventStreamDetails:
		if a.state == StateInitializing {
			a.beginPublishing()
		}
	case mpegts.EventClockRef:
		if a.state == StatePublishing {
			a.inbox <- session.Message{Kind: session.MessageClockRef, PCR: ev.PCR}
		}
	case mpegts.EventAudio, mpegts.EventVideo:
		if a.state == StatePublishing {
			a.inbox <- session.Message{
				Kind:   session.MessagePacket,
				Codec:  ev.StreamType,
				Data:   ev.Data,
				PTS:    ev.PTS,
				DTS:    ev.DTS,
				HasDTS: ev.HasDTS,
			}
		}
	}
}

func (a *Adapter) beginPublishing() {
	inbox, err := a.sm.Create(a.streamName)
	if err != nil {
		a.log.Error().Err(err).Msg("ingest: failed to create session")
		return
	}
	a.inbox = inbox
	a.state = StatePublishing
	a.log.Info().Msg("ingest: publishing started")
}

// disconnect implements spec §4.E/§7: on read timeout or transport close,
// send Disconnect and Release.
func (a *Adapter) disconnect() {
	if a.state == StatePublishing && a.inbox != nil {
		a.inbox <- session.Message{Kind: session.MessageDisconnect}
		a.sm.Release(a.streamName)
	}
	a.state = StateDisconnecting
	_ = a.conn.Close()
}
