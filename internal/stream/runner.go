// Package stream is the glue between internal/session's per-stream
// broadcast, internal/fmp4's fragmenter, and internal/segstore's segment
// ring: one Runner per live stream, started from the session manager's
// "create_session" trigger (spec §4.D), consuming Packet/ClockRef messages
// and feeding them into a Fragmenter whose Events populate a Store the HTTP
// surface reads from.
package stream

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/tspipe/tspipe/internal/codec/h264"
	"github.com/tspipe/tspipe/internal/codec/h265"
	"github.com/tspipe/tspipe/internal/errs"
	"github.com/tspipe/tspipe/internal/fmp4"
	"github.com/tspipe/tspipe/internal/mpegts"
	"github.com/tspipe/tspipe/internal/segstore"
	"github.com/tspipe/tspipe/internal/session"
	"github.com/tspipe/tspipe/internal/stats"
)

// Registry looks up the segment store backing a live stream name, the
// interface internal/httpapi depends on.
type Registry interface {
	Lookup(name string) (*segstore.Store, bool)
}

// Runner owns one stream's Fragmenter+Store pair and the goroutine pumping
// a session.Subscription into them.
type Runner struct {
	name string
	log  zerolog.Logger
	cfg  segstore.Config

	store      *segstore.Store
	fragmenter *fmp4.Fragmenter
	counters   *stats.StreamCounters

	gotVideoSPS, gotVideoPPS, gotVideoVPS []byte
}

// newRunner allocates the store up front (so an HTTP client polling
// playlist.m3u8 immediately after creation sees an empty-but-valid
// manifest rather than a 404) but defers the Fragmenter until the first
// video packet reveals whether the stream is H.264 or H.265.
func newRunner(name string, cfg segstore.Config, log zerolog.Logger) *Runner {
	return &Runner{
		name:  name,
		log:   log.With().Str("stream", name).Logger(),
		cfg:   cfg,
		store: segstore.New(cfg),
	}
}

// Store returns the runner's segment store.
func (r *Runner) Store() *segstore.Store { return r.store }

// Run drains sub until the session channel closes (stream ended),
// translating every message into Fragmenter/Store calls. It is meant to be
// started as its own goroutine by the Manager.
func (r *Runner) Run(sub *session.Subscription) {
	defer errs.Recover(r.log, "stream.Runner")
	defer sub.Close()
	for {
		msg, ok := sub.Recv()
		if !ok {
			r.log.Info().Msg("stream: session closed, stopping runner")
			return
		}
		r.handle(msg)
	}
}

func (r *Runner) handle(msg session.Message) {
	switch msg.Kind {
	case session.MessageClockRef:
		if r.fragmenter != nil {
			r.fragmenter.ObserveClockRef(msg.PCR, time.Now())
		}
	case session.MessagePacket:
		switch {
		case msg.Codec.IsVideo():
			r.handleVideo(msg)
		case msg.Codec.IsAudio():
			r.handleAudio(msg)
		}
	}
}

func (r *Runner) ensureFragmenter(codec mpegts.StreamType) {
	if r.fragmenter != nil {
		return
	}
	r.fragmenter = fmp4.NewFragmenter(codec == mpegts.H265, r.cfg.PartDuration)
}

func (r *Runner) handleVideo(msg session.Message) {
	r.ensureFragmenter(msg.Codec)

	r.captureParameterSets(msg.Codec, msg.Data)
	if r.gotVideoSPS != nil && r.gotVideoPPS != nil {
		if err := r.fragmenter.PushVideoConfig(r.gotVideoSPS, r.gotVideoPPS, r.gotVideoVPS); err != nil {
			r.log.Debug().Err(err).Msg("stream: video decoder config not ready yet")
		} else {
			r.gotVideoSPS, r.gotVideoPPS, r.gotVideoVPS = nil, nil, nil
		}
	}

	events, err := r.fragmenter.PushVideoAU(msg.Data, msg.PTS, msg.DTS, msg.HasDTS)
	if err != nil {
		r.log.Warn().Err(err).Msg("stream: dropping malformed video access unit")
		return
	}
	r.emit(events)
}

// emit hands each event to the segment store and, if metrics are enabled,
// records its byte count against this stream's rolling bitrate counter.
func (r *Runner) emit(events []fmp4.Event) {
	for _, ev := range events {
		r.store.Handle(ev)
		if r.counters != nil && len(ev.Fragment) > 0 {
			r.counters.Bitrate.Add(int64(len(ev.Fragment)))
		}
	}
}

// captureParameterSets scans one access unit's NALs for SPS/PPS (and VPS
// for HEVC), per spec §9's "only the first SPS/PPS is consulted" rule: once
// a set has been captured it is never overwritten by a later AU.
func (r *Runner) captureParameterSets(codec mpegts.StreamType, data []byte) {
	if codec == mpegts.H265 {
		if r.gotVideoSPS != nil && r.gotVideoPPS != nil {
			return
		}
		for _, nal := range h265.SplitAnnexB(data) {
			if len(nal.Payload) == 0 {
				continue
			}
			switch {
			case r.gotVideoSPS == nil && h265.IsSPS(nal.Payload[0]):
				r.gotVideoSPS = nal.Payload
			case r.gotVideoPPS == nil && h265.IsPPS(nal.Payload[0]):
				r.gotVideoPPS = nal.Payload
			case r.gotVideoVPS == nil && h265.IsVPS(nal.Payload[0]):
				r.gotVideoVPS = nal.Payload
			}
		}
		return
	}
	if r.gotVideoSPS != nil && r.gotVideoPPS != nil {
		return
	}
	for _, nal := range h264.SplitAnnexB(data) {
		if len(nal.Payload) == 0 {
			continue
		}
		switch {
		case r.gotVideoSPS == nil && h264.IsSPS(nal.Payload[0]):
			r.gotVideoSPS = nal.Payload
		case r.gotVideoPPS == nil && h264.IsPPS(nal.Payload[0]):
			r.gotVideoPPS = nal.Payload
		}
	}
}

func (r *Runner) handleAudio(msg session.Message) {
	if r.fragmenter == nil {
		// Audio arrived before any video access unit; defer until a video
		// packet establishes the codec (H.264/H.265 selection only matters
		// for the video track, but the Fragmenter is shared).
		return
	}
	events, err := r.fragmenter.PushAudio(msg.Data, msg.PTS)
	if err != nil {
		r.log.Warn().Err(err).Msg("stream: dropping malformed ADTS payload")
		return
	}
	r.emit(events)
}
