package h264

import (
	"github.com/tspipe/tspipe/internal/bitio"
	"github.com/tspipe/tspipe/internal/errs"
)

// TimingInfo carries the VUI timing_info block.
type TimingInfo struct {
	NumUnitsInTick  uint32
	TimeScale       uint32
	FixedFrameRate  bool
}

// SPS is the decoded form of a Sequence Parameter Set, carrying the fields
// §4.B names plus the derived width/height.
type SPS struct {
	ProfileIdc uint8
	LevelIdc   uint8

	ChromaFormatIdc uint32
	FrameMbsOnly    bool

	PicWidthInMbsMinus1        uint32
	PicHeightInMapUnitsMinus1  uint32

	FrameCropping bool
	CropLeft      uint32
	CropRight     uint32
	CropTop       uint32
	CropBottom    uint32

	Width  int
	Height int

	VUIPresent             bool
	AspectRatioIdc         uint8
	SarWidth, SarHeight    uint16
	OverscanAppropriate    bool
	VideoFormat            uint8
	VideoFullRange         bool
	ColourPrimaries        uint8
	TransferCharacteristics uint8
	MatrixCoefficients     uint8
	ChromaSampleLocTop     uint32
	ChromaSampleLocBottom  uint32
	Timing                 TimingInfo
}

// cropUnits returns (CropUnitX, CropUnitY) per §4.B's chroma_format_idc
// table.
func cropUnits(chromaFormatIdc uint32, frameMbsOnly bool) (x, y uint32) {
	mbs := uint32(0)
	if frameMbsOnly {
		mbs = 1
	}
	twoMinusMbs := 2 - mbs
	switch chromaFormatIdc {
	case 0:
		return 1, twoMinusMbs
	case 1:
		return 1, 1 * twoMinusMbs
	case 2:
		return 1, 2 * twoMinusMbs
	case 3:
		return 2, 2 * twoMinusMbs
	default:
		return 1, twoMinusMbs
	}
}

// ParseSPS decodes an SPS NAL unit as carried in the stream (the NAL header
// byte included, emulation-prevention bytes still present; they are
// stripped here) per §4.B: profile/level, skip id and max-frame-num, pic_order_cnt_type
// conditional block, ref-frame fields, dimension fields, cropping, and the
// VUI timing block.
func ParseSPS(nal []byte) (SPS, error) {
	var sps SPS
	if len(nal) < 4 {
		return sps, errs.NotEnoughData("h264: SPS too short")
	}
	rbsp := bitio.EBSPToRBSP(nal[1:]) // drop nal header byte
	r := bitio.NewReader(rbsp)

	profileIdc, err := r.U8()
	if err != nil {
		return sps, errs.Wrapf(err, "h264: profile_idc")
	}
	sps.ProfileIdc = profileIdc

	if _, err := r.ReadBits(8); err != nil { // constraint flags + reserved
		return sps, errs.Wrapf(err, "h264: constraint flags")
	}
	levelIdc, err := r.U8()
	if err != nil {
		return sps, errs.Wrapf(err, "h264: level_idc")
	}
	sps.LevelIdc = levelIdc

	if _, err := r.ReadUE(); err != nil { // seq_parameter_set_id
		return sps, errs.Wrapf(err, "h264: seq_parameter_set_id")
	}

	sps.ChromaFormatIdc = 1 // default 4:2:0 when not present (profiles < high)
	switch profileIdc {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135:
		chromaFormatIdc, err := r.ReadUE()
		if err != nil {
			return sps, errs.Wrapf(err, "h264: chroma_format_idc")
		}
		sps.ChromaFormatIdc = chromaFormatIdc
		if chromaFormatIdc == 3 {
			if _, err := r.ReadBit(); err != nil { // separate_colour_plane_flag
				return sps, errs.Wrapf(err, "h264: separate_colour_plane_flag")
			}
		}
		if _, err := r.ReadUE(); err != nil { // bit_depth_luma_minus8
			return sps, errs.Wrapf(err, "h264: bit_depth_luma_minus8")
		}
		if _, err := r.ReadUE(); err != nil { // bit_depth_chroma_minus8
			return sps, errs.Wrapf(err, "h264: bit_depth_chroma_minus8")
		}
		if _, err := r.ReadBit(); err != nil { // qpprime_y_zero_transform_bypass_flag
			return sps, errs.Wrapf(err, "h264: qpprime flag")
		}
		seqScalingMatrixPresent, err := r.ReadBit()
		if err != nil {
			return sps, errs.Wrapf(err, "h264: seq_scaling_matrix_present_flag")
		}
		if seqScalingMatrixPresent != 0 {
			n := 8
			if chromaFormatIdc == 3 {
				n = 12
			}
			for i := 0; i < n; i++ {
				present, err := r.ReadBit()
				if err != nil {
					return sps, errs.Wrapf(err, "h264: seq_scaling_list_present_flag")
				}
				if present != 0 {
					if err := skipScalingList(r, sizeForScalingIdx(i)); err != nil {
						return sps, errs.Wrapf(err, "h264: scaling_list")
					}
				}
			}
		}
	}

	if _, err := r.ReadUE(); err != nil { // log2_max_frame_num_minus4
		return sps, errs.Wrapf(err, "h264: log2_max_frame_num_minus4")
	}
	picOrderCntType, err := r.ReadUE()
	if err != nil {
		return sps, errs.Wrapf(err, "h264: pic_order_cnt_type")
	}
	switch picOrderCntType {
	case 0:
		if _, err := r.ReadUE(); err != nil { // log2_max_pic_order_cnt_lsb_minus4
			return sps, errs.Wrapf(err, "h264: log2_max_pic_order_cnt_lsb_minus4")
		}
	case 1:
		if _, err := r.ReadBit(); err != nil { // delta_pic_order_always_zero_flag
			return sps, errs.Wrapf(err, "h264: delta_pic_order_always_zero_flag")
		}
		if _, err := r.ReadSE(); err != nil { // offset_for_non_ref_pic
			return sps, errs.Wrapf(err, "h264: offset_for_non_ref_pic")
		}
		if _, err := r.ReadSE(); err != nil { // offset_for_top_to_bottom_field
			return sps, errs.Wrapf(err, "h264: offset_for_top_to_bottom_field")
		}
		numRefFramesInCycle, err := r.ReadUE()
		if err != nil {
			return sps, errs.Wrapf(err, "h264: num_ref_frames_in_pic_order_cnt_cycle")
		}
		for i := uint32(0); i < numRefFramesInCycle; i++ {
			if _, err := r.ReadSE(); err != nil {
				return sps, errs.Wrapf(err, "h264: offset_for_ref_frame")
			}
		}
	}

	if _, err := r.ReadUE(); err != nil { // max_num_ref_frames
		return sps, errs.Wrapf(err, "h264: max_num_ref_frames")
	}
	if _, err := r.ReadBit(); err != nil { // gaps_in_frame_num_value_allowed_flag
		return sps, errs.Wrapf(err, "h264: gaps_in_frame_num_value_allowed_flag")
	}
	picWidthInMbsMinus1, err := r.ReadUE()
	if err != nil {
		return sps, errs.Wrapf(err, "h264: pic_width_in_mbs_minus1")
	}
	sps.PicWidthInMbsMinus1 = picWidthInMbsMinus1
	picHeightInMapUnitsMinus1, err := r.ReadUE()
	if err != nil {
		return sps, errs.Wrapf(err, "h264: pic_height_in_map_units_minus1")
	}
	sps.PicHeightInMapUnitsMinus1 = picHeightInMapUnitsMinus1

	frameMbsOnly, err := r.ReadBit()
	if err != nil {
		return sps, errs.Wrapf(err, "h264: frame_mbs_only_flag")
	}
	sps.FrameMbsOnly = frameMbsOnly != 0
	if frameMbsOnly == 0 {
		if _, err := r.ReadBit(); err != nil { // mb_adaptive_frame_field_flag
			return sps, errs.Wrapf(err, "h264: mb_adaptive_frame_field_flag")
		}
	}
	if _, err := r.ReadBit(); err != nil { // direct_8x8_inference_flag
		return sps, errs.Wrapf(err, "h264: direct_8x8_inference_flag")
	}

	frameCropping, err := r.ReadBit()
	if err != nil {
		return sps, errs.Wrapf(err, "h264: frame_cropping_flag")
	}
	sps.FrameCropping = frameCropping != 0
	if frameCropping != 0 {
		if sps.CropLeft, err = r.ReadUE(); err != nil {
			return sps, errs.Wrapf(err, "h264: frame_crop_left_offset")
		}
		if sps.CropRight, err = r.ReadUE(); err != nil {
			return sps, errs.Wrapf(err, "h264: frame_crop_right_offset")
		}
		if sps.CropTop, err = r.ReadUE(); err != nil {
			return sps, errs.Wrapf(err, "h264: frame_crop_top_offset")
		}
		if sps.CropBottom, err = r.ReadUE(); err != nil {
			return sps, errs.Wrapf(err, "h264: frame_crop_bottom_offset")
		}
	}

	vuiPresent, err := r.ReadBit()
	if err != nil {
		return sps, errs.Wrapf(err, "h264: vui_parameters_present_flag")
	}
	sps.VUIPresent = vuiPresent != 0
	if sps.VUIPresent {
		if err := parseVUI(&sps, r); err != nil {
			return sps, errs.Wrapf(err, "h264: vui_parameters")
		}
	}

	mbsOnlySub := 1
	if !sps.FrameMbsOnly {
		mbsOnlySub = 2
	}
	cropX, cropY := cropUnits(sps.ChromaFormatIdc, sps.FrameMbsOnly)
	sps.Width = int((picWidthInMbsMinus1+1)*16) - int((sps.CropLeft+sps.CropRight)*cropX)
	sps.Height = mbsOnlySub*int((picHeightInMapUnitsMinus1+1)*16) - int((sps.CropTop+sps.CropBottom)*cropY)

	return sps, nil
}

func sizeForScalingIdx(i int) int {
	if i < 6 {
		return 16
	}
	return 64
}

// skipScalingList consumes (without validating deltas beyond the decode
// loop itself) a scaling_list() element per Table 7-2.
func skipScalingList(r *bitio.Reader, size int) error {
	lastScale, nextScale := 8, 8
	for j := 0; j < size; j++ {
		if nextScale != 0 {
			deltaScale, err := r.ReadSE()
			if err != nil {
				return err
			}
			nextScale = (lastScale + deltaScale + 256) % 256
		}
		if nextScale != 0 {
			lastScale = nextScale
		}
	}
	return nil
}

func parseVUI(sps *SPS, r *bitio.Reader) error {
	aspectRatioPresent, err := r.ReadBit()
	if err != nil {
		return err
	}
	if aspectRatioPresent != 0 {
		idc, err := r.U8()
		if err != nil {
			return err
		}
		sps.AspectRatioIdc = idc
		const extendedSar = 255
		if idc == extendedSar {
			w, err := r.U16()
			if err != nil {
				return err
			}
			h, err := r.U16()
			if err != nil {
				return err
			}
			sps.SarWidth, sps.SarHeight = w, h
		}
	}

	overscanPresent, err := r.ReadBit()
	if err != nil {
		return err
	}
	if overscanPresent != 0 {
		v, err := r.ReadBit()
		if err != nil {
			return err
		}
		sps.OverscanAppropriate = v != 0
	}

	videoSignalPresent, err := r.ReadBit()
	if err != nil {
		return err
	}
	if videoSignalPresent != 0 {
		vf, err := r.ReadBits(3)
		if err != nil {
			return err
		}
		sps.VideoFormat = uint8(vf)
		fullRange, err := r.ReadBit()
		if err != nil {
			return err
		}
		sps.VideoFullRange = fullRange != 0
		colourDescPresent, err := r.ReadBit()
		if err != nil {
			return err
		}
		if colourDescPresent != 0 {
			if sps.ColourPrimaries, err = r.U8(); err != nil {
				return err
			}
			if sps.TransferCharacteristics, err = r.U8(); err != nil {
				return err
			}
			if sps.MatrixCoefficients, err = r.U8(); err != nil {
				return err
			}
		}
	}

	chromaLocPresent, err := r.ReadBit()
	if err != nil {
		return err
	}
	if chromaLocPresent != 0 {
		if sps.ChromaSampleLocTop, err = r.ReadUE(); err != nil {
			return err
		}
		if sps.ChromaSampleLocBottom, err = r.ReadUE(); err != nil {
			return err
		}
	}

	timingPresent, err := r.ReadBit()
	if err != nil {
		return err
	}
	if timingPresent != 0 {
		numUnits, err := r.U32()
		if err != nil {
			return err
		}
		timeScale, err := r.U32()
		if err != nil {
			return err
		}
		fixed, err := r.ReadBit()
		if err != nil {
			return err
		}
		sps.Timing = TimingInfo{NumUnitsInTick: numUnits, TimeScale: timeScale, FixedFrameRate: fixed != 0}
	}
	// remaining VUI fields (NAL/VCL HRD, pic_struct, bitstream restriction)
	// are not needed by this pipeline and are left unparsed.
	return nil
}
