package fmp4

import "time"

// Sample is one fragment-ready access unit (video) or ADTS block (audio)
// after clock normalization, ready to be written into a moof/mdat pair.
type Sample struct {
	Data                  []byte
	Timestamp90k          uint64
	CompositionOffset90k  uint64
	Duration              uint32
	Keyframe              bool
	ProgramDateTime       time.Time
}

// EventKind tags the variants of Event the Fragmenter emits.
type EventKind uint8

const (
	// EventInit carries a freshly built init segment, emitted exactly
	// once, after gating per spec §4.F is satisfied.
	EventInit EventKind = iota
	// EventFragment carries one moof+mdat pair: a new segment's first
	// fragment (NewSegment set), a partial boundary (Partial set), or a
	// plain in-segment fragment (neither). A segment is implicitly closed
	// by the next EventFragment with NewSegment set; there is no separate
	// completion event.
	EventFragment
)

// Event is one output of Fragmenter.Push, driving the segment store.
type Event struct {
	Kind EventKind

	Init []byte

	Fragment        []byte
	Video           bool
	NewSegment      bool
	Partial         bool
	Independent     bool
	Keyframe        bool
	ProgramDateTime time.Time
	Timestamp90k    uint64

	EndTimestamp90k uint64
}
