package stats

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// reportInterval matches the teacher's statistics goroutines, which poll
// and log once a second.
const reportInterval = time.Second

// StreamCounters is the per-stream counter set a stream.Runner feeds as it
// pushes bytes through the fragmenter.
type StreamCounters struct {
	Bitrate *RollingCounter
}

func newStreamCounters() *StreamCounters {
	return &StreamCounters{Bitrate: NewRollingCounter(DefaultGridCount, 1)}
}

// Reporter owns one RollingCounter per live stream name and periodically
// logs each one's bitrate at Info level, gated by the §6 enable_metrics
// flag, mirroring the teacher's statistics package (one goroutine per
// metric, logging through the shared zerolog.Logger) collapsed into a
// single periodic sweep over a registry instead of one goroutine per
// stream per metric.
type Reporter struct {
	enabled bool
	log     zerolog.Logger

	mu      sync.Mutex
	streams map[string]*StreamCounters
}

// NewReporter returns a Reporter. If enabled is false, Counters still
// allocates and updates rolling counters (cheap) but Run logs nothing and
// only waits for its context to be canceled, per §6's enable_metrics gate.
func NewReporter(enabled bool, log zerolog.Logger) *Reporter {
	return &Reporter{enabled: enabled, log: log, streams: make(map[string]*StreamCounters)}
}

// Counters returns (creating if necessary) the counter set for name.
func (r *Reporter) Counters(name string) *StreamCounters {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.streams[name]
	if !ok {
		c = newStreamCounters()
		r.streams[name] = c
	}
	return c
}

// Forget drops name's counters once its stream ends.
func (r *Reporter) Forget(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.streams, name)
}

// Run logs every live stream's bitrate once per second until ctx is
// canceled. If metrics are disabled it logs nothing and returns once ctx is
// canceled.
func (r *Reporter) Run(ctx context.Context) {
	if !r.enabled {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(reportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.logOnce()
		}
	}
}

func (r *Reporter) logOnce() {
	r.mu.Lock()
	snapshot := make(map[string]*StreamCounters, len(r.streams))
	for name, c := range r.streams {
		snapshot[name] = c
	}
	r.mu.Unlock()

	for name, c := range snapshot {
		r.log.Info().
			Str("stream", name).
			Int64("bitrate_bps", c.Bitrate.Avg()*8).
			Msg("stats: periodic report")
	}
}
