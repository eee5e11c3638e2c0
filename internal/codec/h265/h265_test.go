package h265

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNALTypeAndClassifiers(t *testing.T) {
	vpsHeader := byte(32 << 1)
	spsHeader := byte(33 << 1)
	ppsHeader := byte(34 << 1)
	idrHeader := byte(19 << 1)

	require.Equal(t, byte(32), NALType(vpsHeader))
	require.True(t, IsVPS(vpsHeader))
	require.True(t, IsSPS(spsHeader))
	require.True(t, IsPPS(ppsHeader))
	require.True(t, IsIDR(idrHeader))
	require.True(t, IsSlice(idrHeader))
	require.False(t, IsSlice(vpsHeader))
}

func TestParallelismTypeInference(t *testing.T) {
	cases := []struct {
		tiles, wpp bool
		want       uint8
	}{
		{false, false, ParallelismSlice},
		{true, false, ParallelismTile},
		{false, true, ParallelismWPP},
		{true, true, ParallelismMixed},
	}
	for _, c := range cases {
		pps := PPS{TilesEnabled: c.tiles, EntropyCodingSyncEnabled: c.wpp}
		require.Equal(t, c.want, pps.ParallelismType())
	}
}

func TestSplitAnnexB(t *testing.T) {
	data := []byte{
		0, 0, 0, 1, 32 << 1, 0x01, 0xAA,
		0, 0, 1, 33 << 1, 0x01, 0xBB,
	}
	nals := SplitAnnexB(data)
	require.Len(t, nals, 2)
	require.Equal(t, KindVps, nals[0].Kind)
	require.Equal(t, KindSps, nals[1].Kind)
}

func TestLengthPrefixRoundTrip(t *testing.T) {
	nalA := []byte{34 << 1, 0x01, 0x02}
	nalB := []byte{1 << 1, 0x03}
	buf := append(LengthPrefix(nalA), LengthPrefix(nalB)...)
	out := SplitLengthPrefixed(buf)
	require.Equal(t, [][]byte{nalA, nalB}, out)
}

func TestDecoderConfigurationRecordRoundTrip(t *testing.T) {
	rec := DecoderConfigurationRecord{
		ConfigurationVersion:             1,
		GeneralProfileSpace:              0,
		GeneralTierFlag:                  false,
		GeneralProfileIdc:                1,
		GeneralProfileCompatibilityFlags: 0x60000000,
		GeneralConstraintIndicatorFlags:  0x900000000000,
		GeneralLevelIdc:                  120,
		ParallelismType:                  ParallelismTile,
		ChromaFormatIdc:                  1,
		BitDepthLumaMinus8:               0,
		BitDepthChromaMinus8:             0,
		NumTemporalLayers:                1,
		LengthSizeMinusOne:               3,
		NaluArrays: []NaluArray{
			{ArrayCompleteness: true, NALUnitType: NaluArraySEIPrefix, NALUs: [][]byte{{39 << 1, 0x01, 0xDE, 0xAD}}},
		},
	}
	encoded := rec.Marshal()
	decoded, err := ParseDecoderConfigurationRecord(encoded)
	require.NoError(t, err)

	require.Equal(t, rec.GeneralProfileIdc, decoded.GeneralProfileIdc)
	require.Equal(t, rec.GeneralProfileCompatibilityFlags, decoded.GeneralProfileCompatibilityFlags)
	require.Equal(t, rec.GeneralConstraintIndicatorFlags, decoded.GeneralConstraintIndicatorFlags)
	require.Equal(t, rec.GeneralLevelIdc, decoded.GeneralLevelIdc)
	require.Equal(t, rec.ParallelismType, decoded.ParallelismType)
	require.Equal(t, rec.LengthSizeMinusOne, decoded.LengthSizeMinusOne)
	require.Len(t, decoded.NaluArrays, 1)
	require.Equal(t, NaluArraySEIPrefix, decoded.NaluArrays[0].NALUnitType)
}
