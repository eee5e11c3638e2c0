// Package h265 parses H.265/HEVC NAL units, decodes VPS/SPS/PPS for
// width/height/chroma/bit-depth/parallelism, and serializes/parses the
// HEVCDecoderConfigurationRecord, the way this codebase's h264 package
// handles the AVC side of the same job.
package h265

// NALKind classifies an HEVC NAL unit by its nal_unit_type (the 6-bit field
// at bits 1-6 of the 2-byte NAL header).
type NALKind uint8

const (
	KindUnspecified NALKind = iota
	KindSliceTrailN
	KindSliceTrailR
	KindSliceTsaN
	KindSliceTsaR
	KindSliceStsaN
	KindSliceStsaR
	KindSliceRadlN
	KindSliceRadlR
	KindSliceRaslN
	KindSliceRaslR
	KindSliceBlaWLp
	KindSliceBlaWRadl
	KindSliceBlaNLp
	KindSliceIdrWRadl
	KindSliceIdrNLp
	KindSliceCra
	KindVps
	KindSps
	KindPps
	KindAccessUnitDelimiter
	KindEndOfSequence
	KindEndOfStream
	KindFillerData
	KindSeiPrefix
	KindSeiSuffix
	KindOther
)

func kindFromType(t byte) NALKind {
	switch t {
	case 0:
		return KindSliceTrailN
	case 1:
		return KindSliceTrailR
	case 2:
		return KindSliceTsaN
	case 3:
		return KindSliceTsaR
	case 4:
		return KindSliceStsaN
	case 5:
		return KindSliceStsaR
	case 6:
		return KindSliceRadlN
	case 7:
		return KindSliceRadlR
	case 8:
		return KindSliceRaslN
	case 9:
		return KindSliceRaslR
	case 16:
		return KindSliceBlaWLp
	case 17:
		return KindSliceBlaWRadl
	case 18:
		return KindSliceBlaNLp
	case 19:
		return KindSliceIdrWRadl
	case 20:
		return KindSliceIdrNLp
	case 21:
		return KindSliceCra
	case 32:
		return KindVps
	case 33:
		return KindSps
	case 34:
		return KindPps
	case 35:
		return KindAccessUnitDelimiter
	case 36:
		return KindEndOfSequence
	case 37:
		return KindEndOfStream
	case 38:
		return KindFillerData
	case 39:
		return KindSeiPrefix
	case 40:
		return KindSeiSuffix
	default:
		return KindOther
	}
}

// NALUnit is a codec-agnostic NAL: a kind tag plus payload (2-byte HEVC
// header included, emulation prevention still present).
type NALUnit struct {
	Kind    NALKind
	Payload []byte
}

// NALType extracts the 6-bit nal_unit_type from the first byte of a NAL's
// 2-byte header.
func NALType(first byte) byte {
	return (first >> 1) & 0x3F
}

// IsVPS reports whether b (the first header byte) is a Video Parameter Set.
func IsVPS(b byte) bool { return NALType(b) == 32 }

// IsSPS reports whether b is a Sequence Parameter Set.
func IsSPS(b byte) bool { return NALType(b) == 33 }

// IsPPS reports whether b is a Picture Parameter Set.
func IsPPS(b byte) bool { return NALType(b) == 34 }

// IsIDR reports whether b carries an IDR slice (nal_unit_type 19 or 20).
func IsIDR(b byte) bool {
	t := NALType(b)
	return t == 19 || t == 20
}

// IsSlice reports whether b carries VCL (coded slice) data, i.e.
// nal_unit_type in [0, 31].
func IsSlice(b byte) bool {
	return NALType(b) <= 31
}

// SplitAnnexB splits an Annex-B byte stream into individual HEVC NAL units.
func SplitAnnexB(data []byte) []NALUnit {
	starts := findStartCodes(data)
	if len(starts) == 0 {
		return nil
	}
	var nals []NALUnit
	for i, start := range starts {
		end := len(data)
		if i+1 < len(starts) {
			end = starts[i+1].pos
		}
		payload := data[start.pos+start.len : end]
		if len(payload) == 0 {
			continue
		}
		nals = append(nals, NALUnit{
			Kind:    kindFromType(NALType(payload[0])),
			Payload: payload,
		})
	}
	return nals
}

type startCode struct {
	pos int
	len int
}

func findStartCodes(data []byte) []startCode {
	var out []startCode
	for i := 0; i+2 < len(data); i++ {
		if data[i] == 0 && data[i+1] == 0 {
			if data[i+2] == 1 {
				out = append(out, startCode{pos: i, len: 3})
				i += 2
			} else if i+3 < len(data) && data[i+2] == 0 && data[i+3] == 1 {
				out = append(out, startCode{pos: i, len: 4})
				i += 3
			}
		}
	}
	return out
}

// LengthPrefix returns a 4-byte big-endian length header followed by nal.
func LengthPrefix(nal []byte) []byte {
	out := make([]byte, 4+len(nal))
	out[0] = byte(len(nal) >> 24)
	out[1] = byte(len(nal) >> 16)
	out[2] = byte(len(nal) >> 8)
	out[3] = byte(len(nal))
	copy(out[4:], nal)
	return out
}

// SplitLengthPrefixed splits an AVCC-style length-prefixed buffer into
// individual NAL payloads.
func SplitLengthPrefixed(data []byte) [][]byte {
	var out [][]byte
	for len(data) >= 4 {
		n := int(data[0])<<24 | int(data[1])<<16 | int(data[2])<<8 | int(data[3])
		data = data[4:]
		if n < 0 || n > len(data) {
			break
		}
		out = append(out, data[:n])
		data = data[n:]
	}
	return out
}
