package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/psaab/srxmerge/pkg/logging"
)

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

func writeSSEEvent(w http.ResponseWriter, id uint64, event, data string) {
	fmt.Fprintf(w, "id: %d\n", id)
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// parseResults turns "ok,fatal" into a filter set; empty means all.
func parseResults(s string) map[string]bool {
	if s == "" {
		return nil
	}
	out := make(map[string]bool)
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out[r] = true
		}
	}
	return out
}

// eventsHandler returns the most recent ?limit= merge events, newest first.
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, "event buffer not available")
		return
	}
	filter := parseResults(r.URL.Query().Get("result"))
	out := []logging.EventRecord{}
	for _, rec := range s.events.Latest(queryInt(r, "limit", 50)) {
		if filter == nil || filter[rec.Result] {
			out = append(out, rec)
		}
	}
	writeOK(w, out)
}

// eventStreamHandler streams merge events via SSE. Supports ?result=
// (comma-separated ok,fatal,error).
func (s *Server) eventStreamHandler(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, "event buffer not available")
		return
	}
	filter := parseResults(r.URL.Query().Get("result"))

	setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	sub := s.events.Subscribe(128)
	defer sub.Close()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-sub.C:
			if filter != nil && !filter[rec.Result] {
				continue
			}
			data, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			writeSSEEvent(w, rec.Seq, "merge", string(data))
		}
	}
}
