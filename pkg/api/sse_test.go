package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psaab/srxmerge/pkg/logging"
)

func TestEventStreamHandler(t *testing.T) {
	buf := logging.NewEventBuffer(16)
	s := &Server{events: buf}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest("GET", "/api/v1/events/stream?result=fatal", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.eventStreamHandler(w, req)
		close(done)
	}()

	// Wait for the subscription.
	time.Sleep(50 * time.Millisecond)
	buf.Add(logging.EventRecord{Result: "ok", ID: "skipped"})
	buf.Add(logging.EventRecord{Result: "fatal", ID: "run-2", Fatal: 1})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.NotContains(t, body, "skipped")

	var events, ids []string
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if ev, ok := strings.CutPrefix(line, "event: "); ok {
			events = append(events, ev)
		}
		if id, ok := strings.CutPrefix(line, "id: "); ok {
			ids = append(ids, id)
		}
	}
	require.Equal(t, []string{"merge"}, events)
	assert.Equal(t, []string{"2"}, ids)
	assert.Contains(t, body, `"id":"run-2"`)
}

func TestEventsHandler(t *testing.T) {
	f := newFixture(t)
	f.do(t, "POST", "/api/v1/check", CheckRequest{Document: policyDoc})
	f.do(t, "POST", "/api/v1/check", CheckRequest{Document: `security { address-book { global { address a 300.0.0.1/32; } } }`})

	w, resp := f.do(t, "GET", "/api/v1/events?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var recs []logging.EventRecord
	data(t, resp, &recs)
	require.Len(t, recs, 2)
	assert.Equal(t, "fatal", recs[0].Result)
	assert.Equal(t, "ok", recs[1].Result)

	w, resp = f.do(t, "GET", "/api/v1/events?result=ok", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data(t, resp, &recs)
	require.Len(t, recs, 1)
	assert.Equal(t, "ok", recs[0].Result)
}

func TestEventsUnavailable(t *testing.T) {
	s := &Server{}
	w := httptest.NewRecorder()
	s.eventsHandler(w, httptest.NewRequest("GET", "/api/v1/events", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
