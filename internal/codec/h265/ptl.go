package h265

import "github.com/tspipe/tspipe/internal/bitio"

// ProfileTierLevel carries the general_* fields of profile_tier_level() per
// ISO/IEC 23008-2 §7.3.3 — the subset the HEVC decoder configuration record
// needs. Per-sub-layer profile/level fields are consumed but not retained.
type ProfileTierLevel struct {
	GeneralProfileSpace              uint8
	GeneralTierFlag                  bool
	GeneralProfileIdc                uint8
	GeneralProfileCompatibilityFlags uint32
	GeneralConstraintIndicatorFlags  uint64 // 48 bits
	GeneralLevelIdc                  uint8
}

// parseProfileTierLevel decodes profile_tier_level(profilePresentFlag,
// maxNumSubLayersMinus1), skipping the per-sub-layer profile/level blocks it
// doesn't need to retain.
func parseProfileTierLevel(r *bitio.Reader, profilePresentFlag bool, maxNumSubLayersMinus1 uint32) (ProfileTierLevel, error) {
	var ptl ProfileTierLevel
	if profilePresentFlag {
		space, err := r.ReadBits(2)
		if err != nil {
			return ptl, err
		}
		ptl.GeneralProfileSpace = uint8(space)
		tier, err := r.ReadBit()
		if err != nil {
			return ptl, err
		}
		ptl.GeneralTierFlag = tier != 0
		idc, err := r.ReadBits(5)
		if err != nil {
			return ptl, err
		}
		ptl.GeneralProfileIdc = uint8(idc)
		compat, err := r.ReadBits(32)
		if err != nil {
			return ptl, err
		}
		ptl.GeneralProfileCompatibilityFlags = compat
		hi, err := r.ReadBits(16)
		if err != nil {
			return ptl, err
		}
		lo, err := r.ReadBits(32)
		if err != nil {
			return ptl, err
		}
		ptl.GeneralConstraintIndicatorFlags = uint64(hi)<<32 | uint64(lo)
	}
	level, err := r.ReadBits(8)
	if err != nil {
		return ptl, err
	}
	ptl.GeneralLevelIdc = uint8(level)

	if maxNumSubLayersMinus1 == 0 {
		return ptl, nil
	}

	subProfilePresent := make([]bool, maxNumSubLayersMinus1)
	subLevelPresent := make([]bool, maxNumSubLayersMinus1)
	for i := uint32(0); i < maxNumSubLayersMinus1; i++ {
		p, err := r.ReadBit()
		if err != nil {
			return ptl, err
		}
		subProfilePresent[i] = p != 0
		l, err := r.ReadBit()
		if err != nil {
			return ptl, err
		}
		subLevelPresent[i] = l != 0
	}
	for i := maxNumSubLayersMinus1; i < 8; i++ {
		if _, err := r.ReadBits(2); err != nil { // reserved_zero_2bits
			return ptl, err
		}
	}
	for i := uint32(0); i < maxNumSubLayersMinus1; i++ {
		if subProfilePresent[i] {
			// profile_space(2)+tier(1)+profile_idc(5)+compat_flags(32)+
			// constraint_indicator_flags(48) = 88 bits, read in three chunks.
			if _, err := r.ReadBits(32); err != nil {
				return ptl, err
			}
			if _, err := r.ReadBits(32); err != nil {
				return ptl, err
			}
			if _, err := r.ReadBits(24); err != nil {
				return ptl, err
			}
		}
		if subLevelPresent[i] {
			if _, err := r.ReadBits(8); err != nil {
				return ptl, err
			}
		}
	}
	return ptl, nil
}
