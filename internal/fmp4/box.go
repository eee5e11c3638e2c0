// Package fmp4 fragments MPEG-TS access units into ISO/IEC 14496-12/14
// fragmented MP4 (init segment + per-fragment moof/mdat), per spec §4.F.
// Box layout follows the byte-slice marshal idiom this codebase's h264/h265
// decoder-config records already use (build into a []byte, no io.Writer
// plumbing) rather than a generic box-tree library, since every box this
// pipeline emits is either fixed-shape or a thin wrapper around an already-
// serialized child.
package fmp4

import "encoding/binary"

// box wraps payload in a standard 8-byte-header ISO-BMFF box: a big-endian
// u32 size (including the header) followed by the 4-character type.
func box(boxType string, payload []byte) []byte {
	out := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(out[0:4], uint32(8+len(payload)))
	copy(out[4:8], boxType)
	copy(out[8:], payload)
	return out
}

// fullBox is box with the version+flags header ISO-BMFF "full boxes" carry.
func fullBox(boxType string, version uint8, flags uint32, payload []byte) []byte {
	head := make([]byte, 4+len(payload))
	head[0] = version
	head[1] = byte(flags >> 16)
	head[2] = byte(flags >> 8)
	head[3] = byte(flags)
	copy(head[4:], payload)
	return box(boxType, head)
}

func concat(boxes ...[]byte) []byte {
	n := 0
	for _, b := range boxes {
		n += len(b)
	}
	out := make([]byte, 0, n)
	for _, b := range boxes {
		out = append(out, b...)
	}
	return out
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func u64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
