package mpegts

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tspipe/tspipe/internal/errs"
)

func TestDecodeTimestampPTS(t *testing.T) {
	// S1: PES PTS decoding.
	got := decodeTimestamp([]byte{0x31, 0x00, 0x05, 0x32, 0x81})
	require.Equal(t, uint64(72000), got)
}

func TestDecodeTimestampDTS(t *testing.T) {
	// S2: PES DTS decoding.
	got := decodeTimestamp([]byte{0x11, 0x00, 0x05, 0x1b, 0x11})
	require.Equal(t, uint64(69000), got)
}

func TestPushRejectsBadSyncByte(t *testing.T) {
	// S3: sync-byte rejection.
	pkt := make([]byte, 188)
	pkt[0] = 0x00
	d := NewDemuxer(zerolog.Nop())
	_, err := d.Push(pkt)
	require.Error(t, err)
	require.Equal(t, errs.CodeInvalidSyncByte, errs.CodeOf(err))
}

// patPacket builds the 188-byte TS packet for S4's PAT: one program,
// program_number=1, program_pid=0x0100.
func patPacket() []byte {
	section := []byte{
		0x00,       // table_id
		0xB0, 0x0D, // section_syntax_indicator|reserved, section_length=13
		0x00, 0x01, // transport_stream_id
		0xC1,       // reserved|version|current_next_indicator
		0x00,       // section_number
		0x00,       // last_section_number
		0x00, 0x01, // program_number = 1
		0xE1, 0x00, // reserved|program_pid = 0x0100
		0x00, 0x00, 0x00, 0x00, // CRC32 (unchecked)
	}
	payload := append([]byte{0x00}, section...) // pointer field
	return buildPacket(PIDPAT, true, 0, payload)
}

// pmtPacket builds the 188-byte TS packet for S4's PMT: pcr_pid=0x0101,
// entries {0x0101 -> H264, 0x0102 -> AAC}.
func pmtPacket() []byte {
	section := []byte{
		0x02,       // table_id
		0xB0, 0x17, // section_syntax_indicator|reserved, section_length=23
		0x00, 0x01, // program_number
		0xC1, // reserved|version|current_next_indicator
		0x00, // section_number
		0x00, // last_section_number
		0xE1, 0x01, // reserved|pcr_pid = 0x0101
		0xF0, 0x00, // reserved|program_info_length = 0
		0x1B, 0xE1, 0x01, 0xF0, 0x00, // H264 @ 0x0101, es_info_length=0
		0x0F, 0xE1, 0x02, 0xF0, 0x00, // AAC @ 0x0102, es_info_length=0
		0x00, 0x00, 0x00, 0x00, // CRC32 (unchecked)
	}
	payload := append([]byte{0x00}, section...)
	return buildPacket(0x0100, true, 0, payload)
}

func buildPacket(pid uint16, pusi bool, cc uint8, payload []byte) []byte {
	pkt := make([]byte, 188)
	pkt[0] = syncByte
	pkt[1] = byte(pid >> 8 & 0x1F)
	if pusi {
		pkt[1] |= 0x40
	}
	pkt[2] = byte(pid)
	pkt[3] = 0x10 | cc&0x0F // adaptation_control = payload only
	n := copy(pkt[4:], payload)
	for i := 4 + n; i < len(pkt); i++ {
		pkt[i] = 0xFF
	}
	return pkt
}

func TestPATThenPMTEmitsStreamDetailsOnce(t *testing.T) {
	d := NewDemuxer(zerolog.Nop())

	events, err := d.Push(patPacket())
	require.NoError(t, err)
	require.Empty(t, events)

	events, err = d.Push(pmtPacket())
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, EventStreamDetails, events[0].Kind)
	require.Equal(t, map[uint16]StreamType{
		0x0101: H264,
		0x0102: AAC,
	}, events[0].StreamDetails)

	// Re-delivering the PMT must not emit a second StreamDetails event.
	events, err = d.Push(pmtPacket())
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestContinuityCounterFirstPacketUnchecked(t *testing.T) {
	d := NewDemuxer(zerolog.Nop())
	pkt := buildPacket(0x0101, false, 7, nil)
	_, err := d.Push(pkt)
	require.NoError(t, err)
	require.Equal(t, uint8(7), d.continuity[0x0101])
}

// videoPESHeader builds a PES header with both PTS and DTS present, using
// the same marker/timestamp byte patterns as the S1/S2 fixtures.
func videoPESHeader(streamID byte) []byte {
	h := []byte{
		0x00, 0x00, 0x01, streamID, // start code + stream_id
		0x00, 0x00, // declared length (unbounded, unused)
		0x80, 0xC0, // flags byte 1 (skipped), pts_dts_flags=0b11 in top bits
		0x0A, // PES_header_data_length = 10 (5-byte PTS + 5-byte DTS)
	}
	h = append(h, 0x31, 0x00, 0x05, 0x32, 0x81) // PTS -> 72000
	h = append(h, 0x11, 0x00, 0x05, 0x1b, 0x11) // DTS -> 69000
	return h
}

func TestPESReassemblyFlushesOnNextPUSI(t *testing.T) {
	d := NewDemuxer(zerolog.Nop())
	d.streamDetails = map[uint16]StreamType{0x0101: H264}

	// buildPacket pads any payload shorter than 184 bytes with 0xFF
	// stuffing, so these payloads are sized to fill the packet exactly and
	// keep the reassembled Data free of stray padding.
	header := videoPESHeader(0xE0)
	rest1 := make([]byte, 184-len(header))
	for i := range rest1 {
		rest1[i] = 0xAA
	}
	first := append(append([]byte(nil), header...), rest1...)
	events, err := d.Push(buildPacket(0x0101, true, 0, first))
	require.NoError(t, err)
	require.Empty(t, events)

	rest2 := make([]byte, 184)
	for i := range rest2 {
		rest2[i] = 0xBB
	}
	events, err = d.Push(buildPacket(0x0101, false, 1, rest2))
	require.NoError(t, err)
	require.Empty(t, events)

	nextHeader := videoPESHeader(0xE0)
	nextRest := make([]byte, 184-len(nextHeader))
	next := append(append([]byte(nil), nextHeader...), nextRest...)
	events, err = d.Push(buildPacket(0x0101, true, 2, next))
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	require.Equal(t, EventVideo, ev.Kind)
	require.Equal(t, H264, ev.StreamType)
	require.True(t, ev.HasPTS)
	require.Equal(t, uint64(72000), ev.PTS)
	require.True(t, ev.HasDTS)
	require.Equal(t, uint64(69000), ev.DTS)

	want := append(append([]byte(nil), rest1...), rest2...)
	require.Equal(t, want, ev.Data)
}
