// Package bitio provides the big-endian bit/byte reader shared by every
// codec config decoder and the MPEG-TS demultiplexer: fixed-width reads,
// single/N-bit reads, Exp-Golomb decoding, and emulation-prevention
// stripping ahead of bitstream parsing.
package bitio

import (
	"github.com/tspipe/tspipe/internal/errs"
)

// Reader reads big-endian fields from an in-memory byte slice, bit by bit
// or byte by byte. It mirrors the GolombBitReader shape used throughout
// this codebase's codec parsers, but operates on a slice instead of an
// io.Reader so callers can seek freely.
type Reader struct {
	data    []byte
	bytePos int
	bitPos  uint // 0..7, MSB-first within the current byte
}

// NewReader wraps b for bit/byte-granular reads. The caller is expected to
// strip emulation-prevention bytes (via EBSPToRBSP) before constructing a
// Reader over SPS/PPS/VPS payloads.
func NewReader(b []byte) *Reader {
	return &Reader{data: b}
}

func (r *Reader) remainingBits() int {
	return (len(r.data)-r.bytePos)*8 - int(r.bitPos)
}

// ReadBit reads a single bit.
func (r *Reader) ReadBit() (uint, error) {
	if r.remainingBits() < 1 {
		return 0, errs.NotEnoughData("bitio: ReadBit")
	}
	b := r.data[r.bytePos]
	bit := uint(b>>(7-r.bitPos)) & 1
	r.bitPos++
	if r.bitPos == 8 {
		r.bitPos = 0
		r.bytePos++
	}
	return bit, nil
}

// ReadBits reads n (0 <= n <= 32) bits into the low bits of the result,
// MSB-first.
func (r *Reader) ReadBits(n int) (uint32, error) {
	if n < 0 || n > 32 {
		return 0, errs.NotEnoughData("bitio: ReadBits: n out of range")
	}
	if r.remainingBits() < n {
		return 0, errs.NotEnoughData("bitio: ReadBits")
	}
	var v uint32
	for i := 0; i < n; i++ {
		bit, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		v = (v << 1) | uint32(bit)
	}
	return v, nil
}

// ReadExponentialGolombCode decodes an Exp-Golomb coded unsigned value per
// ITU-T H.264/H.265 clause 9.1: count leading zero bits up to the first 1,
// then read that many suffix bits; the value is 2^k - 1 + suffix.
func (r *Reader) ReadExponentialGolombCode() (uint, error) {
	k := 0
	for {
		bit, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		if bit != 0 {
			break
		}
		k++
		if k > 32 {
			return 0, errs.NotEnoughData("bitio: exp-golomb prefix too long")
		}
	}
	if k == 0 {
		return 0, nil
	}
	suffix, err := r.ReadBits(k)
	if err != nil {
		return 0, err
	}
	return uint(1<<uint(k)-1) + uint(suffix), nil
}

// ReadUE is an alias of ReadExponentialGolombCode returning uint32, for
// call sites that want a fixed-width result.
func (r *Reader) ReadUE() (uint32, error) {
	v, err := r.ReadExponentialGolombCode()
	return uint32(v), err
}

// ReadSE decodes a signed Exp-Golomb value using the standard mapping
// {0, +1, -1, +2, -2, ...} <-> {0, 1, 2, 3, 4, ...}.
func (r *Reader) ReadSE() (int, error) {
	ue, err := r.ReadExponentialGolombCode()
	if err != nil {
		return 0, err
	}
	if ue%2 == 0 {
		return -int(ue / 2), nil
	}
	return int(ue+1) / 2, nil
}

// SeekBit seeks to an absolute bit offset from the start of the buffer.
func (r *Reader) SeekBit(offset int) error {
	if offset < 0 || offset > len(r.data)*8 {
		return errs.NotEnoughData("bitio: SeekBit out of range")
	}
	r.bytePos = offset / 8
	r.bitPos = uint(offset % 8)
	return nil
}

// ByteAlign advances to the next byte boundary if not already aligned. It
// is the caller's responsibility to only invoke byte-granular reads after
// calling ByteAlign, or at a point already known to be byte-aligned (e.g.
// immediately after NewReader).
func (r *Reader) ByteAlign() {
	if r.bitPos != 0 {
		r.bitPos = 0
		r.bytePos++
	}
}

// U8 reads one byte-aligned byte.
func (r *Reader) U8() (uint8, error) {
	v, err := r.ReadBits(8)
	return uint8(v), err
}

// U16 reads a big-endian 16-bit field.
func (r *Reader) U16() (uint16, error) {
	v, err := r.ReadBits(16)
	return uint16(v), err
}

// U24 reads a big-endian 24-bit field.
func (r *Reader) U24() (uint32, error) {
	return r.ReadBits(24)
}

// U32 reads a big-endian 32-bit field.
func (r *Reader) U32() (uint32, error) {
	return r.ReadBits(32)
}

// U48 reads a big-endian 48-bit field (used for PCR bases).
func (r *Reader) U48() (uint64, error) {
	hi, err := r.ReadBits(24)
	if err != nil {
		return 0, err
	}
	lo, err := r.ReadBits(24)
	if err != nil {
		return 0, err
	}
	return uint64(hi)<<24 | uint64(lo), nil
}

// BytesLeft returns the number of whole bytes left from the current
// (assumed byte-aligned) position.
func (r *Reader) BytesLeft() int {
	n := len(r.data) - r.bytePos
	if r.bitPos != 0 {
		n--
	}
	if n < 0 {
		return 0
	}
	return n
}

// ReadRemainingBytes returns every remaining byte-aligned byte.
func (r *Reader) ReadRemainingBytes() []byte {
	r.ByteAlign()
	out := r.data[r.bytePos:]
	r.bytePos = len(r.data)
	return out
}

// EBSPToRBSP strips emulation-prevention bytes from an Encapsulated Byte
// Sequence Payload, producing the Raw Byte Sequence Payload that Exp-Golomb
// parsing of SPS/PPS/VPS expects: whenever the window matches 00 00 03,
// emit 00 00 and skip the 03; otherwise emit one byte.
func EBSPToRBSP(ebsp []byte) []byte {
	out := make([]byte, 0, len(ebsp))
	zeros := 0
	for i := 0; i < len(ebsp); i++ {
		b := ebsp[i]
		if zeros >= 2 && b == 0x03 {
			zeros = 0
			continue
		}
		out = append(out, b)
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return out
}

// RBSPToEBSP is the inverse of EBSPToRBSP: it inserts an emulation
// prevention 0x03 byte whenever two zero bytes are about to be followed by
// a byte <= 0x03, so the result never contains an unintended start-code
// pattern.
func RBSPToEBSP(rbsp []byte) []byte {
	out := make([]byte, 0, len(rbsp)+len(rbsp)/2)
	zeros := 0
	for _, b := range rbsp {
		if zeros >= 2 && b <= 0x03 {
			out = append(out, 0x03)
			zeros = 0
		}
		out = append(out, b)
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return out
}
