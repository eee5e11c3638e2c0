package mpegts

import "github.com/tspipe/tspipe/internal/errs"

// parsePacketHeader decodes the fixed 4-byte TS header plus, when present,
// the adaptation field, returning the header and the offset into pkt where
// the payload begins.
func parsePacketHeader(pkt []byte) (PacketHeader, int, error) {
	var h PacketHeader
	if len(pkt) != packetSize {
		return h, 0, errs.NotEnoughData("mpegts: packet must be 188 bytes")
	}
	if pkt[0] != syncByte {
		return h, 0, errs.InvalidSyncByte(syncByte, pkt[0])
	}

	h.PUSI = pkt[1]&0x40 != 0
	h.PID = uint16(pkt[1]&0x1F)<<8 | uint16(pkt[2])
	h.AdaptationControl = AdaptationControl((pkt[3] >> 4) & 0x03)
	h.ContinuityCounter = pkt[3] & 0x0F

	offset := 4
	if h.AdaptationControl == AdaptationAFOnly || h.AdaptationControl == AdaptationAFAndPayload {
		n, err := parseAdaptationField(pkt[offset:], &h)
		if err != nil {
			return h, 0, err
		}
		offset += n
	}
	h.HeaderSize = offset
	return h, offset, nil
}

// parseAdaptationField reads the adaptation field length, flag byte, and
// (if the PCR flag is set) a 6-byte PCR, per spec §4.C. It returns the total
// number of bytes the adaptation field occupies, including its own length
// byte.
func parseAdaptationField(buf []byte, h *PacketHeader) (int, error) {
	if len(buf) < 1 {
		return 0, errs.NotEnoughData("mpegts: adaptation field length")
	}
	afLen := int(buf[0])
	if afLen == 0 {
		return 1, nil
	}
	if len(buf) < 1+afLen {
		return 0, errs.NotEnoughData("mpegts: adaptation field body")
	}
	flags := buf[1]
	pcrFlag := flags&0x10 != 0
	if pcrFlag {
		if afLen < 7 {
			return 0, errs.NotEnoughData("mpegts: adaptation field PCR")
		}
		pcrBytes := buf[2:8]
		base := uint64(pcrBytes[0])<<25 |
			uint64(pcrBytes[1])<<17 |
			uint64(pcrBytes[2])<<9 |
			uint64(pcrBytes[3])<<1 |
			uint64(pcrBytes[4])>>7
		h.PCR = base
		h.HasPCR = true
		// The 9-bit extension (low bit of pcrBytes[4] plus all of
		// pcrBytes[5]) is discarded per spec's stated 300ns-precision
		// limitation.
	}
	return 1 + afLen, nil
}
