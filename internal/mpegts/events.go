package mpegts

// EventKind tags the variant carried by an Event.
type EventKind uint8

const (
	EventClockRef EventKind = iota
	EventStreamDetails
	EventAudio
	EventVideo
)

// Event is the tagged union emitted by Demuxer.Push: ClockRef(pcr) |
// StreamDetails(pid->type) | Audio(type, bytes, pts) | Video(type, bytes,
// pts, dts), per spec §4.C.
type Event struct {
	Kind EventKind

	PCR           uint64
	StreamDetails map[uint16]StreamType

	StreamType StreamType
	Data       []byte
	PTS        uint64
	HasPTS     bool
	DTS        uint64
	HasDTS     bool
}
