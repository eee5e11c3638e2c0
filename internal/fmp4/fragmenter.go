package fmp4

import (
	"time"

	"github.com/tspipe/tspipe/internal/codec/aac"
	"github.com/tspipe/tspipe/internal/codec/h264"
	"github.com/tspipe/tspipe/internal/codec/h265"
	"github.com/tspipe/tspipe/internal/errs"
)

// Fragmenter ties together clock normalization (clock.go), the paired-
// sample video framer and per-ADTS-frame audio framer (video.go/audio.go),
// the init-segment gate (init.go), and the keyframe-driven partial/segment
// boundary rule of spec §4.F into the single push-based entry point a
// session subscriber drives: one Fragmenter per live stream.
//
// PartDuration decisions follow the video track only, per §4.F: audio
// samples are appended to whatever partial/segment is currently open and
// never themselves open or close one. This mirrors the teacher's TSCache
// (media/protocol/hls/cache.go), which likewise keys segment boundaries off
// the video GOP structure and lets audio ride along.
type Fragmenter struct {
	h265Codec bool

	clock       *ClockNormalizer
	video       *VideoFramer
	audio       AudioFramer
	init        InitBuilder
	initEmitted bool

	gotVideoConfig bool
	gotAudioConfig bool

	partDurationTicks uint64

	partialBegin *uint64
}

// NewFragmenter returns a Fragmenter for one stream. partDuration is the
// LL-HLS target partial duration (§6's part_duration CLI/env flag); video
// codec selection (H.264 vs H.265) is fixed for the lifetime of the stream,
// consistent with spec §3's "PIDs are immutable once a program is
// discovered" invariant.
func NewFragmenter(h265Codec bool, partDuration time.Duration) *Fragmenter {
	return &Fragmenter{
		h265Codec:         h265Codec,
		clock:             NewClockNormalizer(),
		video:             NewVideoFramer(h265Codec),
		partDurationTicks: uint64(partDuration.Seconds() * HZ),
	}
}

// ObserveClockRef feeds a freshly decoded PCR into the clock normalizer, per
// §4.F's clock-normalization rules.
func (f *Fragmenter) ObserveClockRef(pcr uint64, now time.Time) {
	f.clock.Observe(pcr, now)
}

// PushVideoConfig records the decoder configuration parsed from the
// stream's first SPS/PPS (or VPS/SPS/PPS). Safe to call more than once; the
// init segment is built from whichever configuration arrived before the
// gating condition in Ready is first satisfied.
func (f *Fragmenter) PushVideoConfig(sps, pps []byte, vps []byte) error {
	if f.h265Codec {
		rec, err := h265.NewDecoderConfigurationRecordFromVPSSPSPPS(vps, sps, pps)
		if err != nil {
			return err
		}
		f.init.SetVideoConfig(VideoConfig{H265: true, HEVC: rec})
	} else {
		rec, err := h264.NewDecoderConfigurationRecordFromSPSPPS(sps, pps)
		if err != nil {
			return err
		}
		f.init.SetVideoConfig(VideoConfig{H265: false, AVC: rec})
	}
	f.gotVideoConfig = true
	return nil
}

// PushAudioConfig records the AAC AudioSpecificConfig implied by the
// stream's first ADTS frame.
func (f *Fragmenter) PushAudioConfig(cfg aac.AudioSpecificConfig) {
	f.init.SetAudioConfig(cfg)
	f.gotAudioConfig = true
}

// maybeEmitInit returns an EventInit once both tracks' configuration has
// been observed, per §4.F's gating rule; it is a no-op (returns ok=false)
// every call after the first.
func (f *Fragmenter) maybeEmitInit() (Event, bool) {
	if f.initEmitted || !f.init.Ready() {
		return Event{}, false
	}
	f.initEmitted = true
	return Event{Kind: EventInit, Init: f.init.Build()}, true
}

// PushVideoAU feeds one Annex-B access unit (as delivered in a single PES
// payload) through the paired-sample framer, translating its PTS/DTS
// against the clock normalizer first. It returns zero or more Events: at
// most one EventInit (the first time gating is satisfied), plus an
// EventFragment for the now-complete previous AU, decorated with the
// segment/partial boundary flags of §4.F. Frames arriving before the clock
// has observed a PCR are dropped silently, per §4.F.
func (f *Fragmenter) PushVideoAU(data []byte, pts, dts uint64, hasDTS bool) ([]Event, error) {
	if !f.clock.Ready() {
		return nil, nil
	}
	ts := f.clock.Translate(pts, dts, hasDTS)
	sample, ok := f.video.Push(data, ts)
	if !ok {
		return f.initEventOnly(), nil
	}

	var events []Event
	if ev, ok := f.maybeEmitInit(); ok {
		events = append(events, ev)
	}

	boundary := f.classifyVideoBoundary(sample)
	fragment := BuildFragment(VideoTrackID, 0, sample.Timestamp90k, []Sample{sample}, true)
	events = append(events, Event{
		Kind:            EventFragment,
		Fragment:        fragment,
		Video:           true,
		NewSegment:      boundary.newSegment,
		Partial:         boundary.partial,
		Independent:     boundary.independent,
		Keyframe:        sample.Keyframe,
		ProgramDateTime: sample.ProgramDateTime,
		Timestamp90k:    sample.Timestamp90k,
		EndTimestamp90k: sample.Timestamp90k + uint64(sample.Duration),
	})
	return events, nil
}

func (f *Fragmenter) initEventOnly() []Event {
	if ev, ok := f.maybeEmitInit(); ok {
		return []Event{ev}
	}
	return nil
}

type boundaryDecision struct {
	newSegment  bool
	partial     bool
	independent bool
}

// classifyVideoBoundary implements §4.F's keyframe-driven partial/segment
// boundary rule against a just-emitted (paired, duration-known) video
// sample. Every video sample optionally closes a trailing partial before a
// keyframe opens a new segment, or closes a plain partial at the part
// duration threshold.
func (f *Fragmenter) classifyVideoBoundary(sample Sample) boundaryDecision {
	begin := sample.Timestamp90k
	var decision boundaryDecision

	if sample.Keyframe {
		if f.partialBegin != nil {
			diff := begin - *f.partialBegin
			if diff > f.partDurationTicks {
				// A trailing partial closes just before this keyframe so the
				// new segment's first partial starts exactly at begin.
				decision.partial = true
			}
		}
		begin2 := begin
		f.partialBegin = &begin2
		decision.newSegment = true
		decision.independent = true
		return decision
	}

	if f.partialBegin != nil {
		diff := begin - *f.partialBegin
		if diff > f.partDurationTicks {
			decision.partial = true
			begin2 := begin
			f.partialBegin = &begin2
		}
	}
	return decision
}

// PushAudio feeds one PES payload's worth of ADTS frames through the audio
// framer, translating PTS against the clock normalizer. Audio never
// triggers a segment/partial boundary on its own (§4.F); each resulting
// sample is wrapped in its own fragment and emitted with Video false, which
// is how the segment store tells it apart from a video boundary event when
// deciding whether to touch partial bookkeeping.
func (f *Fragmenter) PushAudio(data []byte, pts uint64) ([]Event, error) {
	if !f.clock.Ready() {
		return nil, nil
	}
	if !f.gotAudioConfig {
		frames, err := aac.ParseADTSFrames(data)
		if err != nil || len(frames) == 0 {
			return nil, err
		}
		f.PushAudioConfig(frames[0].Config)
	}

	ts := f.clock.Translate(pts, pts, false)
	samples, err := f.audio.Push(data, ts)
	if err != nil {
		if errs.CodeOf(err) != errs.CodeUnknown {
			return nil, nil
		}
		return nil, err
	}

	var events []Event
	if ev, ok := f.maybeEmitInit(); ok {
		events = append(events, ev)
	}
	for _, sample := range samples {
		fragment := BuildFragment(AudioTrackID, 0, sample.Timestamp90k, []Sample{sample}, false)
		events = append(events, Event{
			Kind:            EventFragment,
			Fragment:        fragment,
			Video:           false,
			ProgramDateTime: sample.ProgramDateTime,
			Timestamp90k:    sample.Timestamp90k,
			EndTimestamp90k: sample.Timestamp90k + uint64(sample.Duration),
		})
	}
	return events, nil
}
