package httpapi

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/tspipe/tspipe/internal/segstore"
)

// statusInfo is the shape served at {stream_name}/status.json, a small
// diagnostic route outside spec §6's four HLS routes, grounded on the
// teacher's media/protocol/hls/http_hook.go HlsHookData struct and its use
// of jsoniter to marshal stream status for an external callback.
type statusInfo struct {
	Stream          string `json:"stream"`
	MediaSequence   uint64 `json:"media_sequence"`
	ManifestVersion uint64 `json:"manifest_version"`
	HasInit         bool   `json:"has_init"`
}

func (s *Server) serveStatus(w http.ResponseWriter, r *http.Request, streamName string, store *segstore.Store) {
	_, version := store.Manifest()
	info := statusInfo{
		Stream:          streamName,
		MediaSequence:   store.MediaSequence(),
		ManifestVersion: version,
		HasInit:         store.InitSegment() != nil,
	}

	data, err := jsoniter.Marshal(info)
	if err != nil {
		http.Error(w, "status: marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
