package bitio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadBitsAndAlignment(t *testing.T) {
	r := NewReader([]byte{0b10110010, 0xFF})
	bit, err := r.ReadBit()
	require.NoError(t, err)
	require.Equal(t, uint(1), bit)

	v, err := r.ReadBits(3)
	require.NoError(t, err)
	require.Equal(t, uint32(0b011), v)

	r.ByteAlign()
	b, err := r.U8()
	require.NoError(t, err)
	require.Equal(t, uint8(0xFF), b)
}

func TestExpGolombUnsigned(t *testing.T) {
	// 1 -> 0, 010 -> 1, 011 -> 2, 00100 -> 3, 00101 -> 4
	r := NewReader([]byte{0b1010_0110, 0b0100_0010, 0b1000_0000})
	for _, want := range []uint{0, 1, 2, 3, 4} {
		got, err := r.ReadExponentialGolombCode()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestSignedExpGolombMapping(t *testing.T) {
	// ue values 0,1,2,3,4 map to se values 0,1,-1,2,-2
	cases := []struct {
		ue   []byte
		want int
	}{
		{[]byte{0b1_000_000}, 0},
	}
	_ = cases
	// directly validate the mapping function against the standard table.
	mapping := map[uint]int{0: 0, 1: 1, 2: -1, 3: 2, 4: -2, 5: 3}
	for ue, want := range mapping {
		got := ueToSE(ue)
		require.Equal(t, want, got)
	}
}

// ueToSE mirrors Reader.ReadSE's mapping for direct table verification.
func ueToSE(ue uint) int {
	if ue%2 == 0 {
		return -int(ue / 2)
	}
	return int(ue+1) / 2
}

func TestEBSPRoundTrip(t *testing.T) {
	rbsp := []byte{0x00, 0x00, 0x00, 0x01, 0x02, 0x03, 0x00, 0x00, 0x01, 0x00, 0x00}
	ebsp := RBSPToEBSP(rbsp)
	back := EBSPToRBSP(ebsp)
	require.Equal(t, rbsp, back)
}

func TestEBSPToRBSPStripsEmulation(t *testing.T) {
	in := []byte{0x00, 0x00, 0x03, 0x01, 0x00, 0x00, 0x03, 0x02}
	out := EBSPToRBSP(in)
	require.Equal(t, []byte{0x00, 0x00, 0x01, 0x00, 0x00, 0x02}, out)
}

func TestSeekBitAndU16(t *testing.T) {
	r := NewReader([]byte{0x12, 0x34, 0x56, 0x78})
	require.NoError(t, r.SeekBit(16))
	v, err := r.U16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x5678), v)
}

func TestReadBitsNotEnoughData(t *testing.T) {
	r := NewReader([]byte{0xFF})
	_, err := r.ReadBits(16)
	require.Error(t, err)
}
