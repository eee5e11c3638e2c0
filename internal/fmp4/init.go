package fmp4

import (
	"github.com/tspipe/tspipe/internal/codec/aac"
	"github.com/tspipe/tspipe/internal/codec/h264"
	"github.com/tspipe/tspipe/internal/codec/h265"
)

// VideoConfig is the decoder configuration gating an init segment, carried
// separately for H.264 and H.265 since their box/config-record shapes
// differ (avc1/avcC vs hev1/hvcC).
type VideoConfig struct {
	H265 bool
	AVC  h264.DecoderConfigurationRecord
	HEVC h265.DecoderConfigurationRecord
}

func (c VideoConfig) width() int {
	if c.H265 {
		return c.HEVC.Width
	}
	return c.AVC.Width
}

func (c VideoConfig) height() int {
	if c.H265 {
		return c.HEVC.Height
	}
	return c.AVC.Height
}

// InitBuilder accumulates the decoder configuration for one video and one
// audio track and produces the init segment (ftyp+moov) once both are
// known, per spec §4.F's gating rule: a single video IDR with a populated
// decoder config record is not enough on its own, the AAC config must also
// have arrived.
type InitBuilder struct {
	video   *VideoConfig
	audio   *aac.AudioSpecificConfig
}

// SetVideoConfig records the video track's decoder configuration, built
// from the stream's first SPS/PPS (or VPS/SPS/PPS for HEVC).
func (b *InitBuilder) SetVideoConfig(cfg VideoConfig) {
	b.video = &cfg
}

// SetAudioConfig records the audio track's AudioSpecificConfig, decoded
// from the stream's first ADTS header.
func (b *InitBuilder) SetAudioConfig(cfg aac.AudioSpecificConfig) {
	b.audio = &cfg
}

// Ready reports whether both tracks' configuration has been observed, i.e.
// whether Build can produce a well-formed init segment.
func (b *InitBuilder) Ready() bool {
	return b.video != nil && b.audio != nil
}

// Build serializes the init segment: ftyp advertising {isom, avc1|hev1,
// mp41}, followed by moov with a video trak (track 1), an audio trak
// (track 2), and mvex declaring both as fragmented.
func (b *InitBuilder) Build() []byte {
	videoBrand := "avc1"
	if b.video.H265 {
		videoBrand = "hev1"
	}
	ftyp := box("ftyp", concat([]byte("isom"), u32(512), []byte("isom"), []byte(videoBrand), []byte("mp41")))

	moov := box("moov", concat(
		mvhd(),
		videoTrak(*b.video),
		audioTrak(*b.audio),
		mvex(),
	))
	return concat(ftyp, moov)
}

func mvhd() []byte {
	payload := concat(
		u32(0), u32(0), // creation/modification time
		u32(HZ), u32(0), // timescale, duration
		u32(0x00010000), // rate
		u16(0x0100), u16(0), // volume, reserved
		u32(0), u32(0), // reserved
		identityMatrix(),
		make([]byte, 24), // pre_defined
		u32(3),           // next_track_ID
	)
	return fullBox("mvhd", 0, 0, payload)
}

func identityMatrix() []byte {
	return concat(
		u32(0x00010000), u32(0), u32(0),
		u32(0), u32(0x00010000), u32(0),
		u32(0), u32(0), u32(0x40000000),
	)
}

func tkhd(trackID uint32, width, height int, audio bool) []byte {
	volume := uint16(0)
	if audio {
		volume = 0x0100
	}
	payload := concat(
		u32(0), u32(0), // creation/modification time
		u32(trackID), u32(0), // track_ID, reserved
		u32(0),           // duration
		u32(0), u32(0),   // reserved
		u16(0), u16(0),   // layer, alternate_group
		u16(volume), u16(0),
		identityMatrix(),
		u32(uint32(width)<<16), u32(uint32(height)<<16),
	)
	return fullBox("tkhd", 0, 0x000007, payload)
}

func mdhd() []byte {
	payload := concat(
		u32(0), u32(0), // creation/modification time
		u32(HZ), u32(0), // timescale, duration
		u16(0x55C4), u16(0), // language "und", pre_defined
	)
	return fullBox("mdhd", 0, 0, payload)
}

func hdlr(handlerType, name string) []byte {
	nameBytes := append([]byte(name), 0)
	payload := concat(
		u32(0), []byte(handlerType), make([]byte, 12), nameBytes,
	)
	return fullBox("hdlr", 0, 0, payload)
}

func dinf() []byte {
	url := fullBox("url ", 0, 1, nil)
	dref := fullBox("dref", 0, 0, concat(u32(1), url))
	return box("dinf", dref)
}

func emptyStbl(sampleEntry []byte) []byte {
	stsd := fullBox("stsd", 0, 0, concat(u32(1), sampleEntry))
	stts := fullBox("stts", 0, 0, u32(0))
	stsc := fullBox("stsc", 0, 0, u32(0))
	stsz := fullBox("stsz", 0, 0, concat(u32(0), u32(0)))
	stco := fullBox("stco", 0, 0, u32(0))
	return box("stbl", concat(stsd, stts, stsc, stsz, stco))
}

func videoSampleEntry(cfg VideoConfig) []byte {
	boxType := "avc1"
	var configBox []byte
	if cfg.H265 {
		boxType = "hev1"
		configBox = box("hvcC", cfg.HEVC.Marshal())
	} else {
		configBox = box("avcC", cfg.AVC.Marshal())
	}
	fixed := concat(
		make([]byte, 6), u16(1), // reserved, data_reference_index
		u16(0), u16(0), // pre_defined, reserved
		make([]byte, 12), // pre_defined[3]
		u16(uint16(cfg.width())), u16(uint16(cfg.height())),
		u32(0x00480000), u32(0x00480000), // h/v resolution
		u32(0),       // reserved
		u16(1),       // frame_count
		make([]byte, 32), // compressorname
		u16(0x0018),  // depth
		u16(0xFFFF),  // pre_defined
	)
	return box(boxType, concat(fixed, configBox))
}

func audioSampleEntry(cfg aac.AudioSpecificConfig) []byte {
	esds := buildESDS(cfg)
	fixed := concat(
		make([]byte, 6), u16(1), // reserved, data_reference_index
		u32(0), u32(0), // reserved
		u16(channelCount(cfg)), u16(16), // channelcount, samplesize
		u16(0), u16(0), // pre_defined, reserved
		u32(uint32(cfg.SamplingFreqHz)<<16),
	)
	return box("mp4a", concat(fixed, esds))
}

func channelCount(cfg aac.AudioSpecificConfig) uint16 {
	if cfg.ChannelConfig == 0 {
		return 2
	}
	return uint16(cfg.ChannelConfig)
}

// buildESDS wraps cfg's raw ASC bytes in the MPEG-4 ES_Descriptor/
// DecoderConfigDescriptor/DecoderSpecificInfo/SLConfigDescriptor chain an
// mp4a sample entry requires, per ISO/IEC 14496-1 §7.2.6.
func buildESDS(cfg aac.AudioSpecificConfig) []byte {
	asc := cfg.Bytes()
	decSpecificInfo := concat([]byte{0x05, byte(len(asc))}, asc)
	decConfigPayload := concat(
		[]byte{0x40},       // objectTypeIndication: MPEG-4 AAC
		[]byte{0x15},       // streamType=5 (audio) <<2 | upStream<<1 | reserved
		[]byte{0, 0, 0},    // bufferSizeDB
		u32(0), u32(0),     // maxBitrate, avgBitrate
		decSpecificInfo,
	)
	decConfig := concat([]byte{0x04, byte(len(decConfigPayload))}, decConfigPayload)
	slConfig := []byte{0x06, 0x01, 0x02}
	esPayload := concat(u16(1), []byte{0x00}, decConfig, slConfig)
	esDescriptor := concat([]byte{0x03, byte(len(esPayload))}, esPayload)
	return fullBox("esds", 0, 0, esDescriptor)
}

func videoTrak(cfg VideoConfig) []byte {
	minf := box("minf", concat(
		fullBox("vmhd", 0, 1, concat(u16(0), make([]byte, 6))),
		dinf(),
		emptyStbl(videoSampleEntry(cfg)),
	))
	mdia := box("mdia", concat(mdhd(), hdlr("vide", "VideoHandler"), minf))
	return box("trak", concat(tkhd(VideoTrackID, cfg.width(), cfg.height(), false), mdia))
}

func audioTrak(cfg aac.AudioSpecificConfig) []byte {
	minf := box("minf", concat(
		fullBox("smhd", 0, 0, concat(u16(0), u16(0))),
		dinf(),
		emptyStbl(audioSampleEntry(cfg)),
	))
	mdia := box("mdia", concat(mdhd(), hdlr("soun", "SoundHandler"), minf))
	return box("trak", concat(tkhd(AudioTrackID, 0, 0, true), mdia))
}

func mvex() []byte {
	trexVideo := fullBox("trex", 0, 0, concat(u32(VideoTrackID), u32(1), u32(0), u32(0), u32(0)))
	trexAudio := fullBox("trex", 0, 0, concat(u32(AudioTrackID), u32(1), u32(0), u32(0), u32(0)))
	return box("mvex", concat(trexVideo, trexAudio))
}
