package h265

import (
	"github.com/tspipe/tspipe/internal/bitio"
	"github.com/tspipe/tspipe/internal/errs"
)

// VPS is the subset of video_parameter_set_rbsp() this pipeline carries:
// just enough to validate the NAL and expose the profile_tier_level block,
// which this pipeline never needs since SPS already carries its own.
type VPS struct {
	ID                 uint8
	MaxSubLayersMinus1 uint32
	TemporalIDNesting  bool
}

// ParseVPS decodes the header prefix of an HEVC VPS NAL (2-byte header
// included): the id, max sub-layer count, and nesting flag. The VPS is
// otherwise passed through uninterpreted into the decoder configuration
// record's NAL unit arrays, the way the record's own spec expects.
func ParseVPS(nal []byte) (VPS, error) {
	var vps VPS
	if len(nal) < 3 {
		return vps, errs.NotEnoughData("h265: VPS too short")
	}
	rbsp := bitio.EBSPToRBSP(nal[2:])
	r := bitio.NewReader(rbsp)

	id, err := r.ReadBits(4)
	if err != nil {
		return vps, errs.Wrapf(err, "h265: vps_video_parameter_set_id")
	}
	vps.ID = uint8(id)
	if _, err := r.ReadBit(); err != nil { // vps_base_layer_internal_flag
		return vps, errs.Wrapf(err, "h265: vps_base_layer_internal_flag")
	}
	if _, err := r.ReadBit(); err != nil { // vps_base_layer_available_flag
		return vps, errs.Wrapf(err, "h265: vps_base_layer_available_flag")
	}
	if _, err := r.ReadBits(6); err != nil { // vps_max_layers_minus1
		return vps, errs.Wrapf(err, "h265: vps_max_layers_minus1")
	}
	maxSubLayersMinus1, err := r.ReadBits(3)
	if err != nil {
		return vps, errs.Wrapf(err, "h265: vps_max_sub_layers_minus1")
	}
	vps.MaxSubLayersMinus1 = maxSubLayersMinus1
	nesting, err := r.ReadBit()
	if err != nil {
		return vps, errs.Wrapf(err, "h265: vps_temporal_id_nesting_flag")
	}
	vps.TemporalIDNesting = nesting != 0

	return vps, nil
}
