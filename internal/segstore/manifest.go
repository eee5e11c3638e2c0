package segstore

import (
	"bytes"
	"fmt"
	"math"
)

// renderManifest builds the LL-HLS playlist text of spec §4.G. Grounded on
// the teacher's TSCache.genM3U8PlayList (media/protocol/hls/cache.go):
// fmt.Fprintf into a bytes.Buffer under the store's own lock, called only
// on a boundary event and served from the cached result the rest of the
// time. Callers must not hold st.mu (it takes its own read lock).
func (st *Store) renderManifest() []byte {
	st.mu.RLock()
	live := append([]*Segment(nil), st.live...)
	mediaSequence := st.mediaSequence
	hasInit := len(st.initSegment) > 0
	st.mu.RUnlock()

	var buf bytes.Buffer
	buf.WriteString("#EXTM3U\n")
	buf.WriteString("#EXT-X-VERSION:9\n")

	target := 1.0
	for _, seg := range live {
		if seg.Complete() {
			if d := seg.Duration(); d > target {
				target = d
			}
		}
	}
	fmt.Fprintf(&buf, "#EXT-X-TARGETDURATION:%d\n", int(math.Ceil(target)))

	if st.cfg.LowLatencyMode {
		fmt.Fprintf(&buf, "#EXT-X-PART-INF:PART-TARGET=%.3f\n", st.cfg.PartDuration.Seconds())
		fmt.Fprintf(&buf, "#EXT-X-SERVER-CONTROL:CAN-BLOCK-RELOAD=YES,PART-HOLD-BACK=%.3f\n",
			st.cfg.PartDuration.Seconds()*3.001)
	}
	if !st.cfg.IsLive {
		buf.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")
		buf.WriteString("#EXT-X-ALLOW-CACHE:YES\n")
	}
	if hasInit {
		buf.WriteString(`#EXT-X-MAP:URI="init.mp4"` + "\n")
	}
	fmt.Fprintf(&buf, "#EXT-X-MEDIA-SEQUENCE:%d\n\n", mediaSequence)

	partWindowStart := len(live) - 4
	for i, seg := range live {
		msn := mediaSequence + uint64(i)
		fmt.Fprintf(&buf, "#EXT-X-PROGRAM-DATE-TIME:%s\n", seg.ProgramDateTime.Format("2006-01-02T15:04:05.000Z07:00"))

		if st.cfg.LowLatencyMode && i >= partWindowStart {
			for pi, part := range seg.Partials() {
				independent := ""
				if part.Independent {
					independent = ",INDEPENDENT=YES"
				}
				if part.Complete() {
					fmt.Fprintf(&buf, "#EXT-X-PART:DURATION=%.5f,URI=\"part.m4s?msn=%d&part=%d\"%s\n",
						part.Duration(), msn, pi, independent)
				} else {
					fmt.Fprintf(&buf, "#EXT-X-PRELOAD-HINT:TYPE=PART,URI=\"part.m4s?msn=%d&part=%d\"%s\n",
						msn, pi, independent)
				}
			}
		}
		if seg.Complete() {
			fmt.Fprintf(&buf, "#EXTINF:%.5f,\nsegment.m4s?msn=%d\n", seg.Duration(), msn)
		}
	}

	return buf.Bytes()
}
