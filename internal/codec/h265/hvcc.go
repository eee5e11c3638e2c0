package h265

import (
	"encoding/binary"

	"github.com/tspipe/tspipe/internal/errs"
)

// NaluArrayKind is the restricted nal_unit_type domain permitted inside a
// NaluArray entry (VPS, SPS, PPS, and prefix/suffix SEI).
type NaluArrayKind uint8

const (
	NaluArrayVPS       NaluArrayKind = 32
	NaluArraySPS       NaluArrayKind = 33
	NaluArrayPPS       NaluArrayKind = 34
	NaluArraySEIPrefix NaluArrayKind = 39
	NaluArraySEISuffix NaluArrayKind = 40
)

// NaluArray groups same-kind parameter-set NALs inside a decoder
// configuration record, per §8.3.3.1's recommended VPS/SPS/PPS ordering.
type NaluArray struct {
	ArrayCompleteness bool
	NALUnitType       NaluArrayKind
	NALUs             [][]byte
}

// DecoderConfigurationRecord is the HEVCDecoderConfigurationRecord from
// ISO/IEC 14496-15 §8.3.3.1, plus the width/height/chroma parsed out of the
// first SPS for convenience.
type DecoderConfigurationRecord struct {
	ConfigurationVersion            uint8
	GeneralProfileSpace             uint8
	GeneralTierFlag                 bool
	GeneralProfileIdc               uint8
	GeneralProfileCompatibilityFlags uint32
	GeneralConstraintIndicatorFlags uint64
	GeneralLevelIdc                 uint8
	MinSpatialSegmentationIdc       uint16
	ParallelismType                 uint8
	ChromaFormatIdc                 uint8
	BitDepthLumaMinus8              uint8
	BitDepthChromaMinus8            uint8
	AvgFrameRate                    uint16
	ConstantFrameRate               uint8
	NumTemporalLayers               uint8
	TemporalIDNested                bool
	LengthSizeMinusOne              uint8
	NaluArrays                      []NaluArray

	Width, Height int
}

// NewDecoderConfigurationRecordFromVPSSPSPPS builds a record from one
// VPS/SPS/PPS triple, decoding the SPS for width/height/chroma/bit-depth
// and the PPS for parallelismType, the way §4.B specifies.
func NewDecoderConfigurationRecordFromVPSSPSPPS(vpsNAL, spsNAL, ppsNAL []byte) (DecoderConfigurationRecord, error) {
	var rec DecoderConfigurationRecord
	sps, err := ParseSPS(spsNAL)
	if err != nil {
		return rec, errs.Wrapf(err, "h265: parse sps for config record")
	}
	pps, err := ParsePPS(ppsNAL)
	if err != nil {
		return rec, errs.Wrapf(err, "h265: parse pps for config record")
	}

	ptl := sps.ProfileTierLevel
	rec.ConfigurationVersion = 1
	rec.GeneralProfileSpace = ptl.GeneralProfileSpace
	rec.GeneralTierFlag = ptl.GeneralTierFlag
	rec.GeneralProfileIdc = ptl.GeneralProfileIdc
	rec.GeneralProfileCompatibilityFlags = ptl.GeneralProfileCompatibilityFlags
	rec.GeneralConstraintIndicatorFlags = ptl.GeneralConstraintIndicatorFlags
	rec.GeneralLevelIdc = ptl.GeneralLevelIdc
	rec.ChromaFormatIdc = uint8(sps.ChromaFormatIdc)
	rec.BitDepthLumaMinus8 = sps.BitDepthLumaMinus8
	rec.BitDepthChromaMinus8 = sps.BitDepthChromaMinus8
	rec.NumTemporalLayers = uint8(sps.MaxSubLayersMinus1 + 1)
	rec.TemporalIDNested = sps.TemporalIDNesting
	rec.ParallelismType = pps.ParallelismType()
	rec.LengthSizeMinusOne = 3 // 4-byte NAL length prefix, the only size this pipeline emits
	rec.Width = sps.Width
	rec.Height = sps.Height
	rec.NaluArrays = []NaluArray{
		{ArrayCompleteness: true, NALUnitType: NaluArrayVPS, NALUs: [][]byte{vpsNAL}},
		{ArrayCompleteness: true, NALUnitType: NaluArraySPS, NALUs: [][]byte{spsNAL}},
		{ArrayCompleteness: true, NALUnitType: NaluArrayPPS, NALUs: [][]byte{ppsNAL}},
	}
	return rec, nil
}

// Marshal serializes the record per §8.3.3.1's 23-byte fixed header
// followed by the NaluArray table.
func (r DecoderConfigurationRecord) Marshal() []byte {
	buf := make([]byte, 23, 64)
	buf[0] = r.ConfigurationVersion
	buf[1] = r.GeneralProfileSpace<<6 | b2u8(r.GeneralTierFlag)<<5 | r.GeneralProfileIdc&0b11111
	binary.BigEndian.PutUint32(buf[2:6], r.GeneralProfileCompatibilityFlags)
	buf[6] = byte(r.GeneralConstraintIndicatorFlags >> 40)
	buf[7] = byte(r.GeneralConstraintIndicatorFlags >> 32)
	buf[8] = byte(r.GeneralConstraintIndicatorFlags >> 24)
	buf[9] = byte(r.GeneralConstraintIndicatorFlags >> 16)
	buf[10] = byte(r.GeneralConstraintIndicatorFlags >> 8)
	buf[11] = byte(r.GeneralConstraintIndicatorFlags)
	buf[12] = r.GeneralLevelIdc
	binary.BigEndian.PutUint16(buf[13:15], r.MinSpatialSegmentationIdc|0b1111<<12)
	buf[15] = 0b11111100 | r.ParallelismType&0b11
	buf[16] = 0b11111100 | r.ChromaFormatIdc&0b11
	buf[17] = 0b11111000 | r.BitDepthLumaMinus8&0b111
	buf[18] = 0b11111000 | r.BitDepthChromaMinus8&0b111
	binary.BigEndian.PutUint16(buf[19:21], r.AvgFrameRate)
	buf[21] = r.ConstantFrameRate<<6 | (r.NumTemporalLayers&0b111)<<3 | b2u8(r.TemporalIDNested)<<2 | r.LengthSizeMinusOne&0b11
	buf[22] = uint8(len(r.NaluArrays))

	for _, arr := range r.NaluArrays {
		head := uint8(arr.NALUnitType) & 0b111111
		if arr.ArrayCompleteness {
			head |= 0b10000000
		}
		buf = append(buf, head)
		var countBuf [2]byte
		binary.BigEndian.PutUint16(countBuf[:], uint16(len(arr.NALUs)))
		buf = append(buf, countBuf[:]...)
		for _, nal := range arr.NALUs {
			var lenBuf [2]byte
			binary.BigEndian.PutUint16(lenBuf[:], uint16(len(nal)))
			buf = append(buf, lenBuf[:]...)
			buf = append(buf, nal...)
		}
	}
	return buf
}

// ParseDecoderConfigurationRecord parses the byte layout produced by
// Marshal, restoring width/height/chroma from the first SPS entry found.
func ParseDecoderConfigurationRecord(data []byte) (DecoderConfigurationRecord, error) {
	var rec DecoderConfigurationRecord
	if len(data) < 23 {
		return rec, errs.NotEnoughData("h265: config record too short")
	}
	rec.ConfigurationVersion = data[0]
	if rec.ConfigurationVersion != 1 {
		return rec, errs.UnsupportedConfigurationRecordVersion(rec.ConfigurationVersion)
	}
	rec.GeneralProfileSpace = data[1] >> 6
	rec.GeneralTierFlag = (data[1]>>5)&1 != 0
	rec.GeneralProfileIdc = data[1] & 0b11111
	rec.GeneralProfileCompatibilityFlags = binary.BigEndian.Uint32(data[2:6])
	rec.GeneralConstraintIndicatorFlags = uint64(data[6])<<40 | uint64(data[7])<<32 | uint64(data[8])<<24 |
		uint64(data[9])<<16 | uint64(data[10])<<8 | uint64(data[11])
	rec.GeneralLevelIdc = data[12]
	rec.MinSpatialSegmentationIdc = binary.BigEndian.Uint16(data[13:15]) & 0x0FFF
	rec.ParallelismType = data[15] & 0b11
	rec.ChromaFormatIdc = data[16] & 0b11
	rec.BitDepthLumaMinus8 = data[17] & 0b111
	rec.BitDepthChromaMinus8 = data[18] & 0b111
	rec.AvgFrameRate = binary.BigEndian.Uint16(data[19:21])
	rec.ConstantFrameRate = data[21] >> 6
	rec.NumTemporalLayers = (data[21] >> 3) & 0b111
	rec.TemporalIDNested = (data[21]>>2)&1 != 0
	rec.LengthSizeMinusOne = data[21] & 0b11
	numArrays := int(data[22])

	pos := 23
	for i := 0; i < numArrays; i++ {
		if pos+3 > len(data) {
			return rec, errs.NotEnoughData("h265: nalu array header")
		}
		var arr NaluArray
		arr.ArrayCompleteness = data[pos]&0b10000000 != 0
		arr.NALUnitType = NaluArrayKind(data[pos] & 0b111111)
		naluCount := int(binary.BigEndian.Uint16(data[pos+1 : pos+3]))
		pos += 3
		for j := 0; j < naluCount; j++ {
			if pos+2 > len(data) {
				return rec, errs.NotEnoughData("h265: nalu length")
			}
			l := int(binary.BigEndian.Uint16(data[pos : pos+2]))
			pos += 2
			if pos+l > len(data) {
				return rec, errs.NotEnoughData("h265: nalu payload")
			}
			nal := data[pos : pos+l]
			arr.NALUs = append(arr.NALUs, nal)
			pos += l
			if arr.NALUnitType == NaluArraySPS && rec.Width == 0 {
				if parsed, err := ParseSPS(nal); err == nil {
					rec.Width, rec.Height = parsed.Width, parsed.Height
				}
			}
		}
		rec.NaluArrays = append(rec.NaluArrays, arr)
	}
	return rec, nil
}

func b2u8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
