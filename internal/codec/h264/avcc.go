package h264

import (
	"encoding/binary"

	"github.com/tspipe/tspipe/internal/errs"
)

// DecoderConfigurationRecord is the AVCDecoderConfigurationRecord from
// ISO/IEC 14496-15 §5.3.3.1, plus the width/height/chroma parsed out of the
// first SPS for convenience.
type DecoderConfigurationRecord struct {
	Version              uint8
	ProfileIndication    uint8
	ProfileCompatibility uint8
	LevelIndication      uint8
	NALULengthSize       int // 1, 2, or 4

	SPS [][]byte
	PPS [][]byte

	ChromaFormat       uint8
	BitDepthLumaMinus8 uint8
	BitDepthChroma8    uint8
	SPSExt             [][]byte

	Width, Height int
}

// extendedProfile reports whether profile_idc carries the chroma/bit-depth
// extension block (all profiles except 66, 77, 88 per §4.B).
func extendedProfile(profile uint8) bool {
	return profile != 66 && profile != 77 && profile != 88
}

// NewDecoderConfigurationRecordFromSPSPPS builds a record from one SPS/PPS
// pair, decoding the SPS for width/height as §9's Open Questions note: only
// the first SPS/PPS is consulted.
func NewDecoderConfigurationRecordFromSPSPPS(sps, pps []byte) (DecoderConfigurationRecord, error) {
	var rec DecoderConfigurationRecord
	if len(sps) < 4 {
		return rec, errs.NotEnoughData("h264: sps too short for config record")
	}
	parsed, err := ParseSPS(sps)
	if err != nil {
		return rec, errs.Wrapf(err, "h264: parse sps for config record")
	}
	rec.Version = 1
	rec.ProfileIndication = sps[1]
	rec.ProfileCompatibility = sps[2]
	rec.LevelIndication = sps[3]
	rec.NALULengthSize = 4
	rec.SPS = [][]byte{sps}
	rec.PPS = [][]byte{pps}
	rec.Width = parsed.Width
	rec.Height = parsed.Height
	return rec, nil
}

// Marshal serializes the record per §4.B's byte layout.
func (r DecoderConfigurationRecord) Marshal() []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, 1, r.ProfileIndication, r.ProfileCompatibility, r.LevelIndication)
	lengthSizeMinusOne := uint8(r.NALULengthSize - 1)
	buf = append(buf, 0b11111100|lengthSizeMinusOne&0b11)
	buf = append(buf, 0b11100000|uint8(len(r.SPS))&0b11111)
	for _, sps := range r.SPS {
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(len(sps)))
		buf = append(buf, l[:]...)
		buf = append(buf, sps...)
	}
	buf = append(buf, uint8(len(r.PPS)))
	for _, pps := range r.PPS {
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(len(pps)))
		buf = append(buf, l[:]...)
		buf = append(buf, pps...)
	}
	if extendedProfile(r.ProfileIndication) {
		buf = append(buf, 0b11111100|r.ChromaFormat&0b11)
		buf = append(buf, 0b11111000|r.BitDepthLumaMinus8&0b111)
		buf = append(buf, 0b11111000|r.BitDepthChroma8&0b111)
		buf = append(buf, uint8(len(r.SPSExt)))
		for _, ext := range r.SPSExt {
			var l [2]byte
			binary.BigEndian.PutUint16(l[:], uint16(len(ext)))
			buf = append(buf, l[:]...)
			buf = append(buf, ext...)
		}
	}
	return buf
}

// ParseDecoderConfigurationRecord parses the byte layout produced by
// Marshal, restoring width/height from the first SPS.
func ParseDecoderConfigurationRecord(data []byte) (DecoderConfigurationRecord, error) {
	var rec DecoderConfigurationRecord
	if len(data) < 6 {
		return rec, errs.NotEnoughData("h264: config record too short")
	}
	rec.Version = data[0]
	if rec.Version != 1 {
		return rec, errs.UnsupportedConfigurationRecordVersion(rec.Version)
	}
	rec.ProfileIndication = data[1]
	rec.ProfileCompatibility = data[2]
	rec.LevelIndication = data[3]
	rec.NALULengthSize = int(data[4]&0b11) + 1
	numSPS := int(data[5] & 0b11111)
	pos := 6
	for i := 0; i < numSPS; i++ {
		if pos+2 > len(data) {
			return rec, errs.NotEnoughData("h264: sps length")
		}
		l := int(binary.BigEndian.Uint16(data[pos:]))
		pos += 2
		if pos+l > len(data) {
			return rec, errs.NotEnoughData("h264: sps payload")
		}
		rec.SPS = append(rec.SPS, data[pos:pos+l])
		pos += l
	}
	if pos >= len(data) {
		return rec, errs.NotEnoughData("h264: pps count")
	}
	numPPS := int(data[pos])
	pos++
	for i := 0; i < numPPS; i++ {
		if pos+2 > len(data) {
			return rec, errs.NotEnoughData("h264: pps length")
		}
		l := int(binary.BigEndian.Uint16(data[pos:]))
		pos += 2
		if pos+l > len(data) {
			return rec, errs.NotEnoughData("h264: pps payload")
		}
		rec.PPS = append(rec.PPS, data[pos:pos+l])
		pos += l
	}
	if extendedProfile(rec.ProfileIndication) && pos+4 <= len(data) {
		rec.ChromaFormat = data[pos] & 0b11
		rec.BitDepthLumaMinus8 = data[pos+1] & 0b111
		rec.BitDepthChroma8 = data[pos+2] & 0b111
		numExt := int(data[pos+3])
		pos += 4
		for i := 0; i < numExt; i++ {
			if pos+2 > len(data) {
				break
			}
			l := int(binary.BigEndian.Uint16(data[pos:]))
			pos += 2
			if pos+l > len(data) {
				break
			}
			rec.SPSExt = append(rec.SPSExt, data[pos:pos+l])
			pos += l
		}
	}
	if len(rec.SPS) > 0 {
		if parsed, err := ParseSPS(rec.SPS[0]); err == nil {
			rec.Width, rec.Height = parsed.Width, parsed.Height
		}
	}
	return rec, nil
}
