package h265

import (
	"github.com/tspipe/tspipe/internal/bitio"
	"github.com/tspipe/tspipe/internal/errs"
)

// Parallelism type values for HEVCDecoderConfigurationRecord.parallelismType
// per ISO/IEC 14496-15 §8.3.3.1: 0 = mixed/unknown, 1 = slice-based,
// 2 = tile-based, 3 = WPP (entropy-coding-sync) based.
const (
	ParallelismMixed = 0
	ParallelismSlice = 1
	ParallelismTile  = 2
	ParallelismWPP   = 3
)

// PPS is the subset of pic_parameter_set_rbsp() needed to infer
// parallelismType: the tiles/WPP enable flags.
type PPS struct {
	TilesEnabled             bool
	EntropyCodingSyncEnabled bool
}

// ParallelismType derives the decoder-config parallelismType from the two
// flags, per the rule the HEVC decoder-config spec states: tiles and WPP
// are mutually exclusive in a conforming bitstream, so either flag alone
// selects its parallelism mode and neither selects slice-based.
func (p PPS) ParallelismType() uint8 {
	switch {
	case p.TilesEnabled && p.EntropyCodingSyncEnabled:
		return ParallelismMixed
	case p.TilesEnabled:
		return ParallelismTile
	case p.EntropyCodingSyncEnabled:
		return ParallelismWPP
	default:
		return ParallelismSlice
	}
}

// ParsePPS decodes the prefix of an HEVC PPS NAL (2-byte header included)
// up to and including entropy_coding_sync_enabled_flag, which is as far as
// this pipeline needs to go.
func ParsePPS(nal []byte) (PPS, error) {
	var pps PPS
	if len(nal) < 3 {
		return pps, errs.NotEnoughData("h265: PPS too short")
	}
	rbsp := bitio.EBSPToRBSP(nal[2:])
	r := bitio.NewReader(rbsp)

	if _, err := r.ReadUE(); err != nil { // pps_pic_parameter_set_id
		return pps, errs.Wrapf(err, "h265: pps_pic_parameter_set_id")
	}
	if _, err := r.ReadUE(); err != nil { // pps_seq_parameter_set_id
		return pps, errs.Wrapf(err, "h265: pps_seq_parameter_set_id")
	}
	if _, err := r.ReadBit(); err != nil { // dependent_slice_segments_enabled_flag
		return pps, errs.Wrapf(err, "h265: dependent_slice_segments_enabled_flag")
	}
	if _, err := r.ReadBit(); err != nil { // output_flag_present_flag
		return pps, errs.Wrapf(err, "h265: output_flag_present_flag")
	}
	if _, err := r.ReadBits(3); err != nil { // num_extra_slice_header_bits
		return pps, errs.Wrapf(err, "h265: num_extra_slice_header_bits")
	}
	if _, err := r.ReadBit(); err != nil { // sign_data_hiding_enabled_flag
		return pps, errs.Wrapf(err, "h265: sign_data_hiding_enabled_flag")
	}
	if _, err := r.ReadBit(); err != nil { // cabac_init_present_flag
		return pps, errs.Wrapf(err, "h265: cabac_init_present_flag")
	}
	if _, err := r.ReadUE(); err != nil { // num_ref_idx_l0_default_active_minus1
		return pps, errs.Wrapf(err, "h265: num_ref_idx_l0_default_active_minus1")
	}
	if _, err := r.ReadUE(); err != nil { // num_ref_idx_l1_default_active_minus1
		return pps, errs.Wrapf(err, "h265: num_ref_idx_l1_default_active_minus1")
	}
	if _, err := r.ReadSE(); err != nil { // init_qp_minus26
		return pps, errs.Wrapf(err, "h265: init_qp_minus26")
	}
	if _, err := r.ReadBit(); err != nil { // constrained_intra_pred_flag
		return pps, errs.Wrapf(err, "h265: constrained_intra_pred_flag")
	}
	if _, err := r.ReadBit(); err != nil { // transform_skip_enabled_flag
		return pps, errs.Wrapf(err, "h265: transform_skip_enabled_flag")
	}
	cuQpDeltaEnabled, err := r.ReadBit()
	if err != nil {
		return pps, errs.Wrapf(err, "h265: cu_qp_delta_enabled_flag")
	}
	if cuQpDeltaEnabled != 0 {
		if _, err := r.ReadUE(); err != nil { // diff_cu_qp_delta_depth
			return pps, errs.Wrapf(err, "h265: diff_cu_qp_delta_depth")
		}
	}
	if _, err := r.ReadSE(); err != nil { // pps_cb_qp_offset
		return pps, errs.Wrapf(err, "h265: pps_cb_qp_offset")
	}
	if _, err := r.ReadSE(); err != nil { // pps_cr_qp_offset
		return pps, errs.Wrapf(err, "h265: pps_cr_qp_offset")
	}
	if _, err := r.ReadBit(); err != nil { // pps_slice_chroma_qp_offsets_present_flag
		return pps, errs.Wrapf(err, "h265: pps_slice_chroma_qp_offsets_present_flag")
	}
	if _, err := r.ReadBit(); err != nil { // weighted_pred_flag
		return pps, errs.Wrapf(err, "h265: weighted_pred_flag")
	}
	if _, err := r.ReadBit(); err != nil { // weighted_bipred_flag
		return pps, errs.Wrapf(err, "h265: weighted_bipred_flag")
	}
	if _, err := r.ReadBit(); err != nil { // transquant_bypass_enabled_flag
		return pps, errs.Wrapf(err, "h265: transquant_bypass_enabled_flag")
	}
	tilesEnabled, err := r.ReadBit()
	if err != nil {
		return pps, errs.Wrapf(err, "h265: tiles_enabled_flag")
	}
	pps.TilesEnabled = tilesEnabled != 0
	entropyCodingSync, err := r.ReadBit()
	if err != nil {
		return pps, errs.Wrapf(err, "h265: entropy_coding_sync_enabled_flag")
	}
	pps.EntropyCodingSyncEnabled = entropyCodingSync != 0

	return pps, nil
}
