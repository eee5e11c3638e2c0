package mpegts

import "github.com/tspipe/tspipe/internal/errs"

// parsePESHeader decodes a PES packet's fixed header plus PTS/DTS, per spec
// §4.C: start code `00 00 01`; stream_id; 16-bit declared length; 1 flag
// byte skipped; pts_dts_flags in bits 6-7 of the next byte; a
// PES_header_data_length byte; then optional 5-byte PTS/DTS fields.
func parsePESHeader(data []byte) (PESHeader, error) {
	var h PESHeader
	if len(data) < 9 {
		return h, errShortPES
	}
	if data[0] != 0x00 || data[1] != 0x00 || data[2] != 0x01 {
		return h, errs.NotEnoughData("mpegts: PES start code")
	}
	h.StreamID = classifyPESStreamID(data[3])
	h.DeclaredSize = uint16(data[4])<<8 | uint16(data[5])

	ptsDTSFlags := (data[7] >> 6) & 0x03
	headerDataLength := int(data[8])

	pos := 9

	if ptsDTSFlags == 0x02 { // PTS only
		if len(data) < pos+5 {
			return h, errShortPES
		}
		h.PTS = decodeTimestamp(data[pos : pos+5])
		h.HasPTS = true
	} else if ptsDTSFlags == 0x03 { // PTS + DTS
		if len(data) < pos+10 {
			return h, errShortPES
		}
		h.PTS = decodeTimestamp(data[pos : pos+5])
		h.HasPTS = true
		h.DTS = decodeTimestamp(data[pos+5 : pos+10])
		h.HasDTS = true
	}

	// header_size spans the 9-byte fixed prefix plus the full optional
	// header region PES_header_data_length declares, including any
	// stuffing/extension bytes this parser doesn't interpret.
	h.HeaderSize = 9 + headerDataLength
	return h, nil
}

// decodeTimestamp extracts a 33-bit PTS/DTS from 5 PES timestamp bytes per
// spec §4.C: ((b[0]>>1)&0x07)<<30 | ((word(b[1],b[2])>>1)&0x7fff)<<15 |
// ((word(b[3],b[4])>>1)&0x7fff).
func decodeTimestamp(b []byte) uint64 {
	top := uint64(b[0]>>1) & 0x07
	mid := uint64(uint16(b[1])<<8|uint16(b[2])) >> 1 & 0x7FFF
	low := uint64(uint16(b[3])<<8|uint16(b[4])) >> 1 & 0x7FFF
	return top<<30 | mid<<15 | low
}
