// Package segstore implements the live segment/partial ring and LL-HLS
// manifest generation of spec §4.G: a bounded window of segments fed by
// internal/fmp4's fragment events, served through streaming reads and a
// cached, blocking-reload-aware manifest. Grounded on the teacher's
// media/protocol/hls/cache.go TSCache (container/list.List + map ring,
// sliding eviction on a window budget, fmt.Fprintf-built m3u8 text cached
// under its own RWMutex), generalized from whole-TS-segment eviction to the
// segment+partial, fMP4, LL-HLS shape spec §4.G specifies.
package segstore

// HZ is the 90kHz clock rate the stored begin/end timestamps are expressed
// in; the Duration methods divide by it to report seconds.
const HZ = 90000

// PCRCycle mirrors internal/fmp4's wraparound modulus; segment store
// arithmetic on begin/end timestamps needs the same wrap-safe delta.
const PCRCycle = uint64(1) << 33

// Partial is one LL-HLS part within a Segment, per spec §3's PartialSegment:
// independent iff it opens at a keyframe.
type Partial struct {
	Data        []byte
	BeginPTS    uint64
	endPTS      uint64
	complete    bool
	Independent bool
}

// Duration reports the partial's length in seconds; only meaningful once
// Complete is true (spec §3: "undefined while end_pts is absent").
func (p *Partial) Duration() float64 {
	delta := (p.endPTS + PCRCycle - p.BeginPTS) % PCRCycle
	return float64(delta) / float64(HZ)
}

// Complete reports whether the partial's end timestamp has been set.
func (p *Partial) Complete() bool { return p.complete }

func (p *Partial) close(endPTS uint64) {
	p.endPTS = endPTS
	p.complete = true
}
