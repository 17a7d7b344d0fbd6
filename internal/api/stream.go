package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// streamHeartbeat keeps idle connections open through proxies.
const streamHeartbeat = 25 * time.Second

type streamEvent struct {
	ETag string `json:"etag"`
}

// handleStream pushes the snapshot ETag as server-sent events: one "init"
// event on connect, then an "update" event each time the rule set changes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalError(w, r, "streaming is not supported")
		return
	}

	updates, unsubscribe := s.svc.Holder().Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "init", s.svc.Snapshot().ETag); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case etag, ok := <-updates:
			if !ok {
				return
			}
			if err := writeEvent(w, "update", etag); err != nil {
				s.logger.Debug().Err(err).Msg("stream client went away")
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, name, etag string) error {
	data, err := json.Marshal(streamEvent{ETag: etag})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
