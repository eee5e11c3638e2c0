// Package h264 parses H.264 Annex-B/AVCC NAL units, decodes SPS for
// width/height/VUI, and serializes/parses the AVCDecoderConfigurationRecord,
// the way this codebase's h264parser package walks SPS/PPS bit fields but
// generalized to the full decoder-config record described in ISO/IEC
// 14496-15.
package h264

// NALKind classifies an H.264 NAL unit by its nal_unit_type.
type NALKind uint8

const (
	KindUnspecified NALKind = iota
	KindNonIdrPicture
	KindDataPartitionA
	KindDataPartitionB
	KindDataPartitionC
	KindIdrPicture
	KindSei
	KindSps
	KindPps
	KindAccessUnitDelimiter
	KindEndOfSequence
	KindEndOfStream
	KindFillerData
	KindSpsExt
	KindOther
)

// NALUnit is a codec-agnostic NAL: a type tag plus its payload (without
// start code or length prefix, with emulation prevention still present —
// the caller strips it before bit-level parsing).
type NALUnit struct {
	Kind    NALKind
	Payload []byte
}

func kindFromType(t byte) NALKind {
	switch t {
	case 1:
		return KindNonIdrPicture
	case 2:
		return KindDataPartitionA
	case 3:
		return KindDataPartitionB
	case 4:
		return KindDataPartitionC
	case 5:
		return KindIdrPicture
	case 6:
		return KindSei
	case 7:
		return KindSps
	case 8:
		return KindPps
	case 9:
		return KindAccessUnitDelimiter
	case 10:
		return KindEndOfSequence
	case 11:
		return KindEndOfStream
	case 12:
		return KindFillerData
	case 13:
		return KindSpsExt
	default:
		return KindOther
	}
}

// NALType returns the raw 5-bit nal_unit_type of a NAL's first byte.
func NALType(first byte) byte {
	return first & 0x1F
}

// IsIDR reports whether b (the first byte of a NAL unit) is an IDR slice.
func IsIDR(b byte) bool { return NALType(b) == 5 }

// IsSPS reports whether b is a Sequence Parameter Set.
func IsSPS(b byte) bool { return NALType(b) == 7 }

// IsPPS reports whether b is a Picture Parameter Set.
func IsPPS(b byte) bool { return NALType(b) == 8 }

// IsSlice reports whether b carries coded slice data (IDR or non-IDR).
func IsSlice(b byte) bool {
	t := NALType(b)
	return t == 1 || t == 5
}

// SplitAnnexB splits an Annex-B byte stream (0x000001 / 0x00000001
// start-code delimited) into individual NAL units, classified by kind.
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

// LengthPrefix returns a 4-byte big-endian length header followed by nal,
// the AVCC sample format this codebase's TS-to-fMP4 path emits.
func LengthPrefix(nal []byte) []byte {
	out := make([]byte, 4+len(nal))
	out[0] = byte(len(nal) >> 24)
	out[1] = byte(len(nal) >> 16)
	out[2] = byte(len(nal) >> 8)
	out[3] = byte(len(nal))
	copy(out[4:], nal)
	return out
}

// SplitLengthPrefixed splits an AVCC-style length-prefixed buffer (a run of
// u32(len)||nal) into individual NAL payloads.
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
