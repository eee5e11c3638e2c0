package mpegts

import (
	"github.com/rs/zerolog"

	"github.com/tspipe/tspipe/internal/errs"
)

// reassemblyBuffer is the per-PID PES accumulator described in spec §4.C's
// data model: pending bytes plus the header fields of the PES packet that
// seeded it.
type reassemblyBuffer struct {
	streamID PESStreamID
	pending  []byte
	pts      uint64
	hasPTS   bool
	dts      uint64
	hasDTS   bool
}

// Demuxer consumes one 188-byte MPEG-TS packet at a time and returns the
// events it produces. It keeps the minimum state spec §3/§4.C calls for:
// per-PID continuity counters, the first program's PAT/PMT discovery, and
// one PES reassembly buffer per elementary PID.
type Demuxer struct {
	log zerolog.Logger

	continuity map[uint16]uint8

	havePAT       bool
	pmtPID        uint16
	streamDetails map[uint16]StreamType
	detailsSent   bool
	pcrPID        uint16

	buffers map[uint16]*reassemblyBuffer
}

// NewDemuxer constructs a Demuxer that logs continuity/section anomalies to
// log (the caller's session-scoped zerolog.Logger).
func NewDemuxer(log zerolog.Logger) *Demuxer {
	return &Demuxer{
		log:        log,
		continuity: make(map[uint16]uint8),
		buffers:    make(map[uint16]*reassemblyBuffer),
	}
}

// Push parses one 188-byte TS packet and returns the events it yields. A
// bad sync byte is the only fatal error: per spec §8 property 1, every
// other malformed structure degrades gracefully (dropped section, WARN-only
// continuity gap) rather than aborting the call.
func (d *Demuxer) Push(pkt []byte) ([]Event, error) {
	header, offset, err := parsePacketHeader(pkt)
	if err != nil {
		if errs.CodeOf(err) == errs.CodeInvalidSyncByte || len(pkt) != packetSize {
			return nil, err
		}
		d.log.Warn().Err(err).Msg("mpegts: dropping packet with malformed adaptation field")
		return nil, nil
	}

	d.checkContinuity(header)

	var events []Event
	if header.HasPCR {
		events = append(events, Event{Kind: EventClockRef, PCR: header.PCR})
	}

	if header.AdaptationControl == AdaptationAFOnly {
		return events, nil
	}
	payload := pkt[offset:]

	switch {
	case header.PID == PIDPAT:
		d.handlePAT(header, payload)
	case d.havePAT && header.PID == d.pmtPID:
		if ev, ok := d.handlePMT(header, payload); ok {
			events = append(events, ev)
		}
	default:
		if st, ok := d.streamDetails[header.PID]; ok {
			events = append(events, d.handlePES(header, payload, st)...)
		}
	}

	return events, nil
}

// checkContinuity implements spec §4.C/§8 property 3: the first packet on
// a PID seeds the counter unchecked; every later packet is expected to
// advance by one mod 16. Violations are logged, not raised as errors.
func (d *Demuxer) checkContinuity(h PacketHeader) {
	last, seen := d.continuity[h.PID]
	if seen {
		expected := (last + 1) % 16
		if h.ContinuityCounter != expected {
			d.log.Warn().
				Uint16("pid", h.PID).
				Uint8("expected", expected).
				Uint8("got", h.ContinuityCounter).
				Msg("mpegts: continuity counter discontinuity")
		}
	}
	d.continuity[h.PID] = h.ContinuityCounter
}

// stripPointerField removes the 1-byte pointer field PSI sections carry
// when PUSI is set, per spec §4.C.
func stripPointerField(payload []byte) ([]byte, error) {
	if len(payload) < 1 {
		return nil, errs.NotEnoughData("mpegts: PSI pointer field")
	}
	pointer := int(payload[0])
	if 1+pointer > len(payload) {
		return nil, errs.NotEnoughData("mpegts: PSI pointer field out of range")
	}
	return payload[1+pointer:], nil
}

func (d *Demuxer) handlePAT(h PacketHeader, payload []byte) {
	if !h.PUSI {
		return
	}
	section, err := stripPointerField(payload)
	if err != nil {
		d.log.Warn().Err(err).Msg("mpegts: dropping malformed PAT packet")
		return
	}
	entries, err := parsePAT(section)
	if err != nil {
		d.log.Warn().Err(err).Msg("mpegts: dropping malformed PAT section")
		return
	}
	if d.havePAT || len(entries) == 0 {
		return
	}
	// Only the first program is used; see spec §9 Open Questions.
	d.pmtPID = entries[0].ProgramPID
	d.havePAT = true
}

func (d *Demuxer) handlePMT(h PacketHeader, payload []byte) (Event, bool) {
	if !h.PUSI {
		return Event{}, false
	}
	section, err := stripPointerField(payload)
	if err != nil {
		d.log.Warn().Err(err).Msg("mpegts: dropping malformed PMT packet")
		return Event{}, false
	}
	pmt, err := parsePMT(section)
	if err != nil {
		d.log.Warn().Err(err).Msg("mpegts: dropping malformed PMT section")
		return Event{}, false
	}
	d.pcrPID = pmt.PCRPID
	if d.streamDetails == nil {
		d.streamDetails = make(map[uint16]StreamType, len(pmt.Entries))
	}
	for _, e := range pmt.Entries {
		d.streamDetails[e.ElementaryPID] = e.StreamType
	}
	if d.detailsSent {
		return Event{}, false
	}
	d.detailsSent = true
	snapshot := make(map[uint16]StreamType, len(d.streamDetails))
	for k, v := range d.streamDetails {
		snapshot[k] = v
	}
	return Event{Kind: EventStreamDetails, StreamDetails: snapshot}, true
}

// handlePES runs the PES reassembly state machine described in spec §4.C:
// a new PUSI flushes any non-empty buffer as an Audio/Video event and seeds
// a fresh one from the new PES header; a non-PUSI packet appends to (or,
// absent a buffer, drops) the pending bytes.
func (d *Demuxer) handlePES(h PacketHeader, payload []byte, st StreamType) []Event {
	var events []Event
	buf := d.buffers[h.PID]

	if h.PUSI {
		if buf != nil && len(buf.pending) > 0 {
			events = append(events, bufferToEvent(buf, st))
		}
		pesHeader, err := parsePESHeader(payload)
		if err != nil || pesHeader.HeaderSize > len(payload) {
			if err == nil {
				err = errs.NotEnoughData("mpegts: PES header_data_length exceeds packet payload")
			}
			d.log.Warn().Err(err).Uint16("pid", h.PID).Msg("mpegts: dropping malformed PES header")
			d.buffers[h.PID] = nil
			return events
		}
		rest := payload[pesHeader.HeaderSize:]
		nb := &reassemblyBuffer{
			streamID: pesHeader.StreamID,
			pending:  append([]byte(nil), rest...),
			pts:      pesHeader.PTS,
			hasPTS:   pesHeader.HasPTS,
			dts:      pesHeader.DTS,
			hasDTS:   pesHeader.HasDTS,
		}
		d.buffers[h.PID] = nb
		return events
	}

	if buf == nil {
		return events
	}
	buf.pending = append(buf.pending, payload...)
	return events
}

func bufferToEvent(buf *reassemblyBuffer, st StreamType) Event {
	isVideo := buf.streamID.IsVideo() || (!buf.streamID.IsAudio() && st.IsVideo())
	ev := Event{
		Data:   buf.pending,
		PTS:    buf.pts,
		HasPTS: buf.hasPTS,
	}
	ev.StreamType = st
	if isVideo {
		ev.Kind = EventVideo
		ev.DTS = buf.dts
		ev.HasDTS = buf.hasDTS
	} else {
		ev.Kind = EventAudio
	}
	return ev
}
