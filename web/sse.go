package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// heartbeatInterval paces SSE comment lines that keep idle connections from
// being reaped by intermediaries.
const heartbeatInterval = 15 * time.Second

type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming is not supported by this connection")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseWriter{w: w, flusher: flusher}, nil
}

func (s *sseWriter) sendEvent(event string, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := s.w.Write([]byte("event: " + event + "\n")); err != nil {
			return err
		}
	}
	if _, err := s.w.Write([]byte("data: " + string(buf) + "\n\n")); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseWriter) sendHeartbeat() error {
	if _, err := s.w.Write([]byte(": heartbeat\n\n")); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// handleChanges streams the change bus as server-sent events. The stream is
// seeded with the current forest and then follows live changes until the
// client disconnects.
func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusNotImplemented, err)
		return
	}

	ctx := r.Context()
	changes := s.service.Changes(ctx)
	heartbeat := s.clock.Ticker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if err := sse.sendHeartbeat(); err != nil {
				return
			}
		case change, ok := <-changes:
			if !ok {
				return
			}
			if err := sse.sendEvent("change", changeToJSON(change)); err != nil {
				return
			}
		}
	}
}
