// Package session implements the process-wide session broker described in
// spec §4.D: a single broadcast channel per live stream name, fed by an
// ingest adapter's inbox and fanned out to every HLS/LL-HLS consumer task.
package session

import "github.com/tspipe/tspipe/internal/mpegts"

// MessageKind tags the variant carried by a Message posted to a channel's
// inbox.
type MessageKind uint8

const (
	MessagePacket MessageKind = iota
	MessageClockRef
	MessageDisconnect
)

// Message is the inbox/broadcast payload: Packet{codec, data, pts, dts} |
// ClockRef(pcr) | Disconnect, per spec §4.D/§4.E.
type Message struct {
	Kind MessageKind

	Codec  mpegts.StreamType
	Data   []byte
	PTS    uint64
	DTS    uint64
	HasDTS bool

	PCR uint64
}
