package fmp4

import "github.com/tspipe/tspipe/internal/codec/aac"

// AudioFramer turns one PES-delivered run of ADTS frames into individual
// fMP4 samples, per spec §4.F: each ADTS frame becomes its own fragment
// with a fixed duration of 1024 samples at the stream's sampling frequency
// (expressed in 90 kHz ticks), using the PTS the PES packet carried as-is
// (no pairing needed since ADTS frames carry no separate DTS).
type AudioFramer struct{}

// Push decodes data (one or more concatenated ADTS frames from a single PES
// payload) into samples, each stamped with ts — the same clock-normalized
// timestamp for every frame in the PES packet, since MPEG-TS/ADTS doesn't
// carry a per-subframe PTS.
func (AudioFramer) Push(data []byte, ts Translated) ([]Sample, error) {
	frames, err := aac.ParseADTSFrames(data)
	if err != nil {
		return nil, err
	}
	samples := make([]Sample, 0, len(frames))
	for _, frame := range frames {
		duration := uint32(1024 * HZ / frame.Config.SamplingFreqHz)
		samples = append(samples, Sample{
			Data:            frame.Payload,
			Timestamp90k:    ts.Timestamp90k,
			Duration:        duration,
			Keyframe:        true,
			ProgramDateTime: ts.ProgramDateTime,
		})
	}
	return samples, nil
}
