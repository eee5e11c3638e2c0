// Package aac decodes the AAC AudioSpecificConfig carried in an MPEG-TS
// PMT/ADTS stream and reassembles ADTS frames into raw AAC blocks, the way
// this codebase's h264parser decodes SPS/PPS: a small bit-level walk over a
// single descriptor.
package aac

import (
	"github.com/tspipe/tspipe/internal/bitio"
	"github.com/tspipe/tspipe/internal/errs"
)

// sampleRateTable is the 13-entry sampling-frequency table from ISO/IEC
// 14496-3 table 1.16, plus a 15-value "escape" handled separately.
var sampleRateTable = [13]int{
	96000, 88200, 64000, 48000, 44100, 32000,
	24000, 22050, 16000, 12000, 11025, 8000, 7350,
}

// AudioSpecificConfig is the decoded form of an AAC ASC descriptor.
type AudioSpecificConfig struct {
	ObjectType       uint8
	SampleFrequency  uint8 // index into sampleRateTable, or 15 for explicit
	SamplingFreqHz   int
	ChannelConfig    uint8
	FrameLengthFlag  bool
	DependsOnCore    bool
	ExtensionFlag    bool
}

// ParseAudioSpecificConfig decodes a >=2 byte ASC per spec §4.B: 5 bits
// object_type | 4 bits sf_index | 4 bits channel_config | 3 bits
// AOT-specific flags.
func ParseAudioSpecificConfig(data []byte) (AudioSpecificConfig, error) {
	var asc AudioSpecificConfig
	if len(data) < 2 {
		return asc, errs.NotEnoughData("aac: ASC requires >=2 bytes")
	}
	r := bitio.NewReader(data)

	objectType, err := r.ReadBits(5)
	if err != nil {
		return asc, errs.Wrapf(err, "aac: object_type")
	}
	if objectType > 4 {
		return asc, errs.UnsupportedAudioFormat
	}
	asc.ObjectType = uint8(objectType)

	sfIndex, err := r.ReadBits(4)
	if err != nil {
		return asc, errs.Wrapf(err, "aac: sf_index")
	}
	if sfIndex > 12 && sfIndex != 15 {
		return asc, errs.UnsupportedFrequencyIndex(uint8(sfIndex))
	}
	asc.SampleFrequency = uint8(sfIndex)
	if sfIndex == 15 {
		freq, err := r.ReadBits(24)
		if err != nil {
			return asc, errs.Wrapf(err, "aac: explicit sampling frequency")
		}
		asc.SamplingFreqHz = int(freq)
	} else {
		asc.SamplingFreqHz = sampleRateTable[sfIndex]
	}

	chanConfig, err := r.ReadBits(4)
	if err != nil {
		return asc, errs.Wrapf(err, "aac: channel_config")
	}
	if chanConfig > 7 {
		return asc, errs.UnsupportedChannelConfiguration(uint8(chanConfig))
	}
	asc.ChannelConfig = uint8(chanConfig)

	// AOT-specific 3 bits: frame_length_flag, depends_on_core_coder,
	// extension_flag. Tolerate truncated trailing bits (some encoders emit
	// exactly 2 bytes with no AOT-specific tail).
	if bit, err := r.ReadBit(); err == nil {
		asc.FrameLengthFlag = bit != 0
		if bit2, err := r.ReadBit(); err == nil {
			asc.DependsOnCore = bit2 != 0
			if bit3, err := r.ReadBit(); err == nil {
				asc.ExtensionFlag = bit3 != 0
			}
		}
	}

	return asc, nil
}

// Bytes serializes asc back into a 2-byte ASC: object_type, sf_index and
// channel_config only. The explicit 24-bit frequency of an escape (15)
// sf_index and the AOT-specific tail bits are not emitted.
func (asc AudioSpecificConfig) Bytes() []byte {
	b := make([]byte, 2)
	b[0] = asc.ObjectType<<3 | asc.SampleFrequency>>1
	b[1] = asc.SampleFrequency<<7 | asc.ChannelConfig<<3
	return b
}

// ADTSHeaderLength is the fixed length of an ADTS header without CRC.
const ADTSHeaderLength = 7

// ADTSFrame is one demuxed ADTS frame: its raw AAC payload (the "raw data
// block") plus the ASC implied by the frame's header fields.
type ADTSFrame struct {
	Config  AudioSpecificConfig
	Payload []byte
}

// ParseADTSFrames splits a concatenated run of ADTS frames (as delivered in
// one PES payload) into individual raw AAC blocks, mirroring the per-field
// walk this codebase's TS demuxer performs over ADTS-framed PES payloads.
func ParseADTSFrames(data []byte) ([]ADTSFrame, error) {
	var frames []ADTSFrame
	for len(data) > 0 {
		if len(data) < ADTSHeaderLength {
			return frames, errs.NotEnoughData("aac: ADTS header truncated")
		}
		if data[0] != 0xFF || data[1]&0xF0 != 0xF0 {
			return frames, errs.NotEnoughData("aac: ADTS syncword")
		}
		r := bitio.NewReader(data)
		if _, err := r.ReadBits(12); err != nil { // syncword
			return frames, err
		}
		if _, err := r.ReadBits(3); err != nil { // MPEG version + layer
			return frames, err
		}
		protectionAbsent, err := r.ReadBit()
		if err != nil {
			return frames, err
		}
		objectType, err := r.ReadBits(2)
		if err != nil {
			return frames, err
		}
		sfIndex, err := r.ReadBits(4)
		if err != nil {
			return frames, err
		}
		if sfIndex > 12 && sfIndex != 15 {
			return frames, errs.UnsupportedFrequencyIndex(uint8(sfIndex))
		}
		if _, err := r.ReadBit(); err != nil { // private bit
			return frames, err
		}
		chanConfig, err := r.ReadBits(3)
		if err != nil {
			return frames, err
		}
		if _, err := r.ReadBits(4); err != nil { // originality/home/copyright bits
			return frames, err
		}
		frameLength, err := r.ReadBits(13)
		if err != nil {
			return frames, err
		}
		if _, err := r.ReadBits(11); err != nil { // buffer fullness
			return frames, err
		}
		numFrames, err := r.ReadBits(2)
		if err != nil {
			return frames, err
		}

		hdrLen := ADTSHeaderLength
		if protectionAbsent == 0 {
			hdrLen += 2
		}
		if int(frameLength) < hdrLen || int(frameLength) > len(data) {
			return frames, errs.NotEnoughData("aac: ADTS frame_length out of range")
		}

		cfg := AudioSpecificConfig{
			ObjectType:      uint8(objectType + 1),
			SampleFrequency: uint8(sfIndex),
			ChannelConfig:   uint8(chanConfig),
		}
		if sfIndex == 15 {
			cfg.SamplingFreqHz = 0
		} else {
			cfg.SamplingFreqHz = sampleRateTable[sfIndex]
		}

		payload := make([]byte, int(frameLength)-hdrLen)
		copy(payload, data[hdrLen:int(frameLength)])
		frames = append(frames, ADTSFrame{Config: cfg, Payload: payload})

		_ = numFrames // always treated as 1 AAC frame per ADTS frame, per convention
		data = data[frameLength:]
	}
	return frames, nil
}
