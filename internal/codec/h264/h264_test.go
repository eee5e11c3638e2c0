package h264

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCropUnitsTable(t *testing.T) {
	cases := []struct {
		idc        uint32
		mbsOnly    bool
		wantX, wantY uint32
	}{
		{0, true, 1, 1},
		{0, false, 1, 2},
		{1, true, 1, 1},
		{1, false, 1, 2},
		{2, true, 1, 2},
		{2, false, 1, 4},
		{3, true, 2, 2},
		{3, false, 2, 4},
	}
	for _, c := range cases {
		x, y := cropUnits(c.idc, c.mbsOnly)
		require.Equal(t, c.wantX, x, "idc=%d mbsOnly=%v", c.idc, c.mbsOnly)
		require.Equal(t, c.wantY, y, "idc=%d mbsOnly=%v", c.idc, c.mbsOnly)
	}
}

// realWorldSPS is a commonly-cited x264 High-profile SPS NAL (profile 100,
// level 1.0) used widely as a minimal fixture in H.264 tutorials.
var realWorldSPS = []byte{
	0x67, 0x64, 0x00, 0x0A, 0xAC, 0x72, 0x84, 0x44,
	0x26, 0x84, 0x00, 0x00, 0x03, 0x00, 0x04, 0x00,
	0x00, 0x03, 0x00, 0xCA, 0x3C, 0x48, 0x96, 0x11, 0x80,
}

func TestParseSPSRealWorldFixture(t *testing.T) {
	sps, err := ParseSPS(realWorldSPS)
	require.NoError(t, err)
	require.Equal(t, uint8(100), sps.ProfileIdc)
	require.Equal(t, uint8(10), sps.LevelIdc)
	require.Greater(t, sps.Width, 0)
	require.Greater(t, sps.Height, 0)
}

func TestAVCDecoderConfigurationRecordRoundTrip(t *testing.T) {
	pps := []byte{0x68, 0xEB, 0xE3, 0xCB, 0x22, 0xC0}
	rec, err := NewDecoderConfigurationRecordFromSPSPPS(realWorldSPS, pps)
	require.NoError(t, err)
	require.Equal(t, uint8(1), rec.Version)

	encoded := rec.Marshal()
	decoded, err := ParseDecoderConfigurationRecord(encoded)
	require.NoError(t, err)

	require.Equal(t, rec.ProfileIndication, decoded.ProfileIndication)
	require.Equal(t, rec.ProfileCompatibility, decoded.ProfileCompatibility)
	require.Equal(t, rec.LevelIndication, decoded.LevelIndication)
	require.Equal(t, rec.NALULengthSize, decoded.NALULengthSize)
	require.Equal(t, rec.SPS, decoded.SPS)
	require.Equal(t, rec.PPS, decoded.PPS)
	require.Equal(t, rec.Width, decoded.Width)
	require.Equal(t, rec.Height, decoded.Height)
}

func TestSplitAnnexB(t *testing.T) {
	data := []byte{0, 0, 0, 1, 0x67, 0xAA, 0, 0, 1, 0x68, 0xBB}
	nals := SplitAnnexB(data)
	require.Len(t, nals, 2)
	require.Equal(t, KindSps, nals[0].Kind)
	require.Equal(t, KindPps, nals[1].Kind)
}

func TestLengthPrefixRoundTrip(t *testing.T) {
	nalA := []byte{0x65, 0x01, 0x02}
	nalB := []byte{0x41, 0x03}
	buf := append(LengthPrefix(nalA), LengthPrefix(nalB)...)
	out := SplitLengthPrefixed(buf)
	require.Equal(t, [][]byte{nalA, nalB}, out)
}
