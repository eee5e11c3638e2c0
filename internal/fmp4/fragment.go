package fmp4

import "encoding/binary"

// trackID values this module always uses: video is track 1, audio track 2,
// per spec §4.F's init-segment layout.
const (
	VideoTrackID = 1
	AudioTrackID = 2
)

// sampleFlags packs the sample_depends_on / sample_is_non_sync_sample
// fields of ISO/IEC 14496-12 §8.8.3.1 into a trun/tfhd sample_flags u32,
// the layout this codebase mirrors from how ffmpeg's movenc writes it:
// sample_depends_on in bits 24-25, sample_is_non_sync_sample at bit 16.
func sampleFlags(keyframe bool) uint32 {
	dependsOn := uint32(1)
	nonSync := uint32(1)
	if keyframe {
		dependsOn = 2
		nonSync = 0
	}
	return dependsOn<<24 | nonSync<<16
}

// BuildFragment serializes one moof+mdat pair for a run of samples
// belonging to a single track, per spec §4.F: mfhd(seq) / traf{tfhd(track,
// default_sample_duration), tfdt(dts), trun(samples, data_offset)} / mdat.
// seq is the fragment's sequence number (moof.mfhd.sequence_number);
// baseDecodeTime is the track-timeline DTS of the first sample (tfdt);
// video controls whether composition-time offsets are written per sample.
func BuildFragment(trackID uint32, seq uint32, baseDecodeTime uint64, samples []Sample, video bool) []byte {
	mfhd := fullBox("mfhd", 0, 0, u32(seq))

	defaultDuration := uint32(0)
	if len(samples) > 0 {
		defaultDuration = samples[0].Duration
	}
	tfhd := fullBox("tfhd", 0, 0x000008|0x020000, concat(u32(trackID), u32(defaultDuration)))
	tfdt := fullBox("tfdt", 1, 0, u64(baseDecodeTime))

	trunFlags := uint32(0x000001 | 0x000100 | 0x000200 | 0x000400)
	if video {
		trunFlags |= 0x000800
	}
	trunPayload := concat(u32(uint32(len(samples))), u32(0) /* data_offset placeholder */)
	for _, s := range samples {
		entry := concat(u32(s.Duration), u32(uint32(len(s.Data))), u32(sampleFlags(s.Keyframe)))
		if video {
			entry = concat(entry, u32(uint32(int32(s.CompositionOffset90k))))
		}
		trunPayload = concat(trunPayload, entry)
	}
	trun := fullBox("trun", 1, trunFlags, trunPayload)

	traf := box("traf", concat(tfhd, tfdt, trun))
	moof := box("moof", concat(mfhd, traf))

	dataOffset := uint32(len(moof) + 8)
	// data_offset sits 16 bytes into the trun box (8-byte box header +
	// 4-byte version/flags + 4-byte sample_count), which itself starts
	// after moof's header, mfhd, traf's header, and tfhd+tfdt.
	trunStart := 8 + len(mfhd) + 8 + len(tfhd) + len(tfdt)
	binary.BigEndian.PutUint32(moof[trunStart+16:trunStart+20], dataOffset)

	var mdatPayload []byte
	for _, s := range samples {
		mdatPayload = append(mdatPayload, s.Data...)
	}
	mdat := box("mdat", mdatPayload)

	return concat(moof, mdat)
}
