package fmp4

import "time"

// HZ is the MPEG-TS/fMP4 system clock rate used throughout this package for
// PCR, PTS/DTS, and fragment durations alike (spec §4.F).
const HZ = 90000

// PCRCycle is the 2^33-tick wraparound period of the MPEG-TS PCR base.
const PCRCycle = uint64(1) << 33

// ClockNormalizer tracks a wall-clock anchor against the PCR timeline of a
// single program, translating PTS/DTS ticks (which themselves wrap at the
// same 2^33 modulus and carry no absolute epoch) into a monotonically
// advancing 90kHz timestamp plus a program-date-time. Grounded on spec
// §4.F's normalization formulas; PCR wraparound is handled with a
// modulo-PCRCycle delta, the same arithmetic internal/segstore uses for
// segment and partial durations.
type ClockNormalizer struct {
	set                   bool
	latestPCRValue        uint64
	latestPCRTimestamp90k uint64
	latestPCRDatetime     time.Time
}

// NewClockNormalizer returns an unset normalizer; call Observe with the
// stream's first PCR before any timestamp can be translated.
func NewClockNormalizer() *ClockNormalizer {
	return &ClockNormalizer{}
}

// Observe feeds a freshly decoded PCR value (33-bit base, already masked to
// the PCRCycle modulus) into the normalizer. now is the wall-clock time of
// observation, injected for testability.
func (c *ClockNormalizer) Observe(pcr uint64, now time.Time) {
	pcrValue := (pcr + PCRCycle - HZ) % PCRCycle
	if !c.set {
		c.latestPCRValue = pcrValue
		c.latestPCRTimestamp90k = 0
		c.latestPCRDatetime = now.Add(-time.Second)
		c.set = true
		return
	}
	delta := (pcrValue + PCRCycle - c.latestPCRValue) % PCRCycle
	c.latestPCRValue = pcrValue
	c.latestPCRTimestamp90k += delta
	c.latestPCRDatetime = c.latestPCRDatetime.Add(time.Duration(delta) * time.Second / HZ)
}

// Ready reports whether a PCR has been observed, i.e. whether Translate can
// produce a timestamp. Frames arriving before the first PCR are dropped
// silently per spec §4.F.
func (c *ClockNormalizer) Ready() bool {
	return c.set
}

// Translated is the result of normalizing one access unit's PTS/DTS pair
// against the current clock anchor.
type Translated struct {
	Timestamp90k   uint64
	CompositionOff uint64
	ProgramDateTime time.Time
}

// Translate maps a decoder timestamp (DTS, or PTS when DTS is absent) plus
// its paired PTS into the normalizer's running 90kHz timeline and wall
// clock, per spec §4.F. Callers must check Ready first.
func (c *ClockNormalizer) Translate(pts uint64, dts uint64, hasDTS bool) Translated {
	if !hasDTS {
		dts = pts
	}
	offset := (dts + PCRCycle - c.latestPCRValue) % PCRCycle
	cts := (pts + PCRCycle - dts) % PCRCycle
	return Translated{
		Timestamp90k:    c.latestPCRTimestamp90k + offset,
		CompositionOff:  cts,
		ProgramDateTime: c.latestPCRDatetime.Add(time.Duration(offset) * time.Second / HZ),
	}
}
