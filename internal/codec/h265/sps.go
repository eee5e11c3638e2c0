package h265

import (
	"github.com/tspipe/tspipe/internal/bitio"
	"github.com/tspipe/tspipe/internal/errs"
)

// SPS is the subset of seq_parameter_set_rbsp() this pipeline needs: the
// profile/tier/level block, chroma/bit-depth, frame dimensions (after
// conformance-window cropping), and the temporal-layering fields the
// HEVCDecoderConfigurationRecord carries.
type SPS struct {
	ProfileTierLevel ProfileTierLevel

	MaxSubLayersMinus1 uint32
	TemporalIDNesting  bool

	ChromaFormatIdc    uint32
	SeparateColourPlane bool

	Width  int
	Height int

	BitDepthLumaMinus8   uint8
	BitDepthChromaMinus8 uint8
}

// chromaSubWH mirrors Table 6-1 of ISO/IEC 23008-2 for the conformance
// window's SubWidthC/SubHeightC scale factors.
func chromaSubWH(chromaFormatIdc uint32, separateColourPlane bool) (subW, subH uint32) {
	if separateColourPlane {
		return 1, 1
	}
	switch chromaFormatIdc {
	case 0: // monochrome
		return 1, 1
	case 1: // 4:2:0
		return 2, 2
	case 2: // 4:2:2
		return 2, 1
	case 3: // 4:4:4
		return 1, 1
	default:
		return 1, 1
	}
}

// ParseSPS decodes an HEVC SPS NAL (2-byte header included) for the fields
// listed on SPS. Only the prefix of seq_parameter_set_rbsp() up to and
// including bit_depth_chroma_minus8 is consumed — every field this pipeline
// needs appears there, well before the short-term-ref-pic-set and
// scaling-list tables that follow.
func ParseSPS(nal []byte) (SPS, error) {
	var sps SPS
	if len(nal) < 3 {
		return sps, errs.NotEnoughData("h265: SPS too short")
	}
	rbsp := bitio.EBSPToRBSP(nal[2:]) // drop 2-byte NAL header
	r := bitio.NewReader(rbsp)

	if _, err := r.ReadBits(4); err != nil { // sps_video_parameter_set_id
		return sps, errs.Wrapf(err, "h265: sps_video_parameter_set_id")
	}
	maxSubLayersMinus1, err := r.ReadBits(3)
	if err != nil {
		return sps, errs.Wrapf(err, "h265: sps_max_sub_layers_minus1")
	}
	sps.MaxSubLayersMinus1 = maxSubLayersMinus1
	nesting, err := r.ReadBit()
	if err != nil {
		return sps, errs.Wrapf(err, "h265: sps_temporal_id_nesting_flag")
	}
	sps.TemporalIDNesting = nesting != 0

	ptl, err := parseProfileTierLevel(r, true, maxSubLayersMinus1)
	if err != nil {
		return sps, errs.Wrapf(err, "h265: profile_tier_level")
	}
	sps.ProfileTierLevel = ptl

	if _, err := r.ReadUE(); err != nil { // sps_seq_parameter_set_id
		return sps, errs.Wrapf(err, "h265: sps_seq_parameter_set_id")
	}
	chromaFormatIdc, err := r.ReadUE()
	if err != nil {
		return sps, errs.Wrapf(err, "h265: chroma_format_idc")
	}
	sps.ChromaFormatIdc = chromaFormatIdc
	if chromaFormatIdc == 3 {
		sepPlane, err := r.ReadBit()
		if err != nil {
			return sps, errs.Wrapf(err, "h265: separate_colour_plane_flag")
		}
		sps.SeparateColourPlane = sepPlane != 0
	}
	picWidth, err := r.ReadUE()
	if err != nil {
		return sps, errs.Wrapf(err, "h265: pic_width_in_luma_samples")
	}
	picHeight, err := r.ReadUE()
	if err != nil {
		return sps, errs.Wrapf(err, "h265: pic_height_in_luma_samples")
	}

	confWindow, err := r.ReadBit()
	if err != nil {
		return sps, errs.Wrapf(err, "h265: conformance_window_flag")
	}
	var cropLeft, cropRight, cropTop, cropBottom uint32
	if confWindow != 0 {
		if cropLeft, err = r.ReadUE(); err != nil {
			return sps, errs.Wrapf(err, "h265: conf_win_left_offset")
		}
		if cropRight, err = r.ReadUE(); err != nil {
			return sps, errs.Wrapf(err, "h265: conf_win_right_offset")
		}
		if cropTop, err = r.ReadUE(); err != nil {
			return sps, errs.Wrapf(err, "h265: conf_win_top_offset")
		}
		if cropBottom, err = r.ReadUE(); err != nil {
			return sps, errs.Wrapf(err, "h265: conf_win_bottom_offset")
		}
	}

	bitDepthLuma, err := r.ReadUE()
	if err != nil {
		return sps, errs.Wrapf(err, "h265: bit_depth_luma_minus8")
	}
	sps.BitDepthLumaMinus8 = uint8(bitDepthLuma)
	bitDepthChroma, err := r.ReadUE()
	if err != nil {
		return sps, errs.Wrapf(err, "h265: bit_depth_chroma_minus8")
	}
	sps.BitDepthChromaMinus8 = uint8(bitDepthChroma)

	subW, subH := chromaSubWH(chromaFormatIdc, sps.SeparateColourPlane)
	sps.Width = int(picWidth) - int((cropLeft+cropRight)*subW)
	sps.Height = int(picHeight) - int((cropTop+cropBottom)*subH)

	return sps, nil
}
