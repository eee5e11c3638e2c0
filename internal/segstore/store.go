package segstore

import (
	"sync"
	"time"

	"github.com/tspipe/tspipe/internal/fmp4"
)

// Config carries the §6 CLI/env knobs that shape a Store's window and
// LL-HLS behavior.
type Config struct {
	WindowSize     int
	PartDuration   time.Duration
	LowLatencyMode bool
	// IsLive is false for the (unimplemented-beyond-spec) VOD variant
	// spec §4.G's manifest template carries a branch for; this pipeline
	// only ever produces live streams, so it is always true in practice
	// and exists to keep the manifest template's branch exercised by
	// tests.
	IsLive bool
}

// Store is the per-stream segment/partial ring and LL-HLS manifest
// generator of spec §4.G: one Store is created alongside each
// internal/fmp4.Fragmenter when a session begins publishing.
type Store struct {
	cfg Config

	mu            sync.RWMutex
	initSegment   []byte
	mediaSequence uint64
	nextID        uint64
	live          []*Segment // oldest at index 0, current (in-progress) at the tail
	outdated      []*Segment // most-recently-evicted first, bounded to WindowSize

	manifestMu    sync.Mutex
	manifestCache []byte
	manifestVer   uint64
	updateCh      chan struct{}
}

// New returns an empty Store; segments accumulate as Handle is fed
// internal/fmp4 events.
func New(cfg Config) *Store {
	return &Store{cfg: cfg, updateCh: make(chan struct{})}
}

// Handle consumes one internal/fmp4.Event, applying spec §4.F/§4.G's
// segment/partial boundary rules and regenerating the cached manifest
// whenever a boundary is crossed.
func (st *Store) Handle(ev fmp4.Event) {
	switch ev.Kind {
	case fmp4.EventInit:
		st.mu.Lock()
		st.initSegment = ev.Init
		st.mu.Unlock()
		st.regenerate()
	case fmp4.EventFragment:
		st.handleFragment(ev)
	}
}

func (st *Store) handleFragment(ev fmp4.Event) {
	st.mu.Lock()
	boundary := ev.Video && (ev.NewSegment || ev.Partial)

	if ev.NewSegment {
		if cur := st.current(); cur != nil {
			cur.complete(ev.Timestamp90k)
		}
		seg := newSegment(st.nextID, ev.Timestamp90k, ev.ProgramDateTime, ev.Keyframe)
		st.nextID++
		st.live = append(st.live, seg)
		st.evictLocked()
		seg.openPartial(ev.Timestamp90k, true)
	} else if ev.Video && ev.Partial {
		if cur := st.current(); cur != nil {
			cur.closeCurrentPartial(ev.Timestamp90k)
			cur.openPartial(ev.Timestamp90k, ev.Independent)
		}
	}

	cur := st.current()
	st.mu.Unlock()

	if cur != nil {
		cur.push(ev.Fragment)
	}
	if boundary || ev.NewSegment {
		st.regenerate()
	}
}

// current returns the in-progress (tail) segment, or nil if none exists
// yet. Callers must hold st.mu.
func (st *Store) current() *Segment {
	if len(st.live) == 0 {
		return nil
	}
	return st.live[len(st.live)-1]
}

// evictLocked pops the oldest live segment into the outdated ring while
// len(live) exceeds the configured window, advancing mediaSequence by one
// per eviction, per spec §4.G. Callers must hold st.mu.
func (st *Store) evictLocked() {
	for len(st.live) > st.cfg.WindowSize && st.cfg.WindowSize > 0 {
		evicted := st.live[0]
		st.live = st.live[1:]
		st.outdated = append([]*Segment{evicted}, st.outdated...)
		if len(st.outdated) > st.cfg.WindowSize {
			st.outdated = st.outdated[:st.cfg.WindowSize]
		}
		st.mediaSequence++
	}
}

// Lookup returns the segment with the given media sequence number, per
// spec §4.G's lookup rule across the live window and the outdated tail.
func (st *Store) Lookup(msn uint64) (*Segment, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	if msn >= st.mediaSequence && msn < st.mediaSequence+uint64(len(st.live)) {
		return st.live[msn-st.mediaSequence], true
	}
	if msn < st.mediaSequence {
		back := st.mediaSequence - msn // 1-based distance into outdated
		if back <= uint64(len(st.outdated)) {
			return st.outdated[back-1], true
		}
	}
	return nil, false
}

// MediaSequence returns the ID of the oldest live segment.
func (st *Store) MediaSequence() uint64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.mediaSequence
}

// InitSegment returns the cached ftyp+moov bytes, or nil if not yet built.
func (st *Store) InitSegment() []byte {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.initSegment
}

// HasPart reports whether msn's segment exists and, if part >= 0, whether
// that partial index is present (complete or in progress) within it. Used
// by the HTTP surface's blocking-reload poll (spec §7).
func (st *Store) HasPart(msn uint64, part int) bool {
	seg, ok := st.Lookup(msn)
	if !ok {
		return false
	}
	if part < 0 {
		return true
	}
	return len(seg.Partials()) > part
}

// Manifest returns the cached LL-HLS/HLS playlist text and its version
// counter, regenerated whenever a segment/partial boundary fires.
func (st *Store) Manifest() (text []byte, version uint64) {
	st.manifestMu.Lock()
	defer st.manifestMu.Unlock()
	return st.manifestCache, st.manifestVer
}

// WaitForUpdate returns a channel that closes the next time the manifest is
// regenerated, for the HTTP surface's blocking-reload poll.
func (st *Store) WaitForUpdate() <-chan struct{} {
	st.manifestMu.Lock()
	defer st.manifestMu.Unlock()
	return st.updateCh
}

func (st *Store) regenerate() {
	text := st.renderManifest()

	st.manifestMu.Lock()
	st.manifestCache = text
	st.manifestVer++
	old := st.updateCh
	st.updateCh = make(chan struct{})
	st.manifestMu.Unlock()

	close(old)
}
