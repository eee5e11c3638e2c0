package fmp4

import (
	"github.com/tspipe/tspipe/internal/codec/h264"
	"github.com/tspipe/tspipe/internal/codec/h265"
)

// videoAU is one assembled access unit: its length-prefixed sample bytes,
// whether it contains an IDR slice, and the clock-normalized timestamp of
// the access unit it was built from.
type videoAU struct {
	data      []byte
	keyframe  bool
	timestamp Translated
}

// VideoFramer assembles PES-delivered Annex-B access units into fMP4
// samples using the paired-sample rule of spec §4.F: a sample's duration is
// only known once the next access unit's timestamp has arrived, so the
// framer always holds the most recent AU back as "next" and emits "current"
// one step behind.
type VideoFramer struct {
	h265    bool
	current *videoAU
}

// NewVideoFramer builds a framer for the given elementary stream codec.
func NewVideoFramer(h265Codec bool) *VideoFramer {
	return &VideoFramer{h265: h265Codec}
}

// Push assembles one Annex-B access unit (data, as delivered in a single
// PES packet) into an AU, pairs it against the previously held AU, and
// returns the now-complete Sample plus its keyframe flag. ok is false while
// the framer is still waiting on a second AU to learn the first one's
// duration, or if the AU carried no retainable slice NALs.
func (f *VideoFramer) Push(data []byte, ts Translated) (sample Sample, ok bool) {
	sampleData, keyframe := f.buildAU(data)
	if sampleData == nil {
		return Sample{}, false
	}
	next := &videoAU{data: sampleData, keyframe: keyframe, timestamp: ts}
	prev := f.current
	f.current = next
	if prev == nil {
		return Sample{}, false
	}
	duration := uint32((next.timestamp.Timestamp90k + PCRCycle - prev.timestamp.Timestamp90k) % PCRCycle)
	return Sample{
		Data:                 prev.data,
		Timestamp90k:         prev.timestamp.Timestamp90k,
		CompositionOffset90k: prev.timestamp.CompositionOff,
		Duration:             duration,
		Keyframe:             prev.keyframe,
		ProgramDateTime:      prev.timestamp.ProgramDateTime,
	}, true
}

// buildAU filters an Annex-B access unit down to its slice NALs (IDR and
// non-IDR coded slices; parameter sets and other non-VCL NALs are dropped
// from the sample payload, since they live in the init segment's decoder
// config instead), concatenating each as a u32-length-prefixed entry.
func (f *VideoFramer) buildAU(data []byte) (sampleData []byte, keyframe bool) {
	var out []byte
	if f.h265 {
		for _, nal := range h265.SplitAnnexB(data) {
			if len(nal.Payload) == 0 || !h265.IsSlice(nal.Payload[0]) {
				continue
			}
			out = append(out, h265.LengthPrefix(nal.Payload)...)
			if h265.IsIDR(nal.Payload[0]) {
				keyframe = true
			}
		}
	} else {
		for _, nal := range h264.SplitAnnexB(data) {
			if len(nal.Payload) == 0 || !h264.IsSlice(nal.Payload[0]) {
				continue
			}
			out = append(out, h264.LengthPrefix(nal.Payload)...)
			if h264.IsIDR(nal.Payload[0]) {
				keyframe = true
			}
		}
	}
	if out == nil {
		return nil, false
	}
	return out, keyframe
}
