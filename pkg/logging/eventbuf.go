// Package logging holds the process log setup and the recent merge event
// buffer that the API streams.
package logging

import (
	"sync"
	"time"

	"github.com/psaab/srxmerge/pkg/merge"
)

// EventRecord summarizes one merge pass.
type EventRecord struct {
	Seq        uint64        `json:"seq"`
	Time       time.Time     `json:"time"`
	ID         string        `json:"id,omitempty"` // empty when the pass was canceled
	Result     string        `json:"result"`       // "ok", "fatal", "error"
	Directives int           `json:"directives"`
	Policies   int           `json:"policies"`
	Warnings   int           `json:"warnings"`
	Fatal      int           `json:"fatal"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	Error      string        `json:"error,omitempty"`
}

// EventBuffer is a thread-safe circular buffer of recent merge events.
type EventBuffer struct {
	mu    sync.RWMutex
	buf   []EventRecord
	head  int // next write position
	count int
	seq   uint64

	subMu sync.RWMutex
	subs  map[*Subscription]struct{}
}

// Subscription receives new events from an EventBuffer.
type Subscription struct {
	C  chan EventRecord
	eb *EventBuffer
}

// Close unsubscribes. C is not closed.
func (s *Subscription) Close() {
	s.eb.subMu.Lock()
	delete(s.eb.subs, s)
	s.eb.subMu.Unlock()
}

// NewEventBuffer creates a buffer holding the last size events.
func NewEventBuffer(size int) *EventBuffer {
	if size < 1 {
		size = 1
	}
	return &EventBuffer{
		buf:  make([]EventRecord, size),
		subs: make(map[*Subscription]struct{}),
	}
}

// Add stores rec, assigning its sequence number, and notifies subscribers
// without blocking. Slow subscribers miss events.
func (eb *EventBuffer) Add(rec EventRecord) EventRecord {
	eb.mu.Lock()
	eb.seq++
	rec.Seq = eb.seq
	eb.buf[eb.head] = rec
	eb.head = (eb.head + 1) % len(eb.buf)
	if eb.count < len(eb.buf) {
		eb.count++
	}
	eb.mu.Unlock()

	eb.subMu.RLock()
	for sub := range eb.subs {
		select {
		case sub.C <- rec:
		default:
		}
	}
	eb.subMu.RUnlock()
	return rec
}

// Subscribe returns a Subscription with a channel of bufSize entries.
func (eb *EventBuffer) Subscribe(bufSize int) *Subscription {
	if bufSize < 1 {
		bufSize = 64
	}
	sub := &Subscription{C: make(chan EventRecord, bufSize), eb: eb}
	eb.subMu.Lock()
	eb.subs[sub] = struct{}{}
	eb.subMu.Unlock()
	return sub
}

// Latest returns the most recent n events, newest first.
func (eb *EventBuffer) Latest(n int) []EventRecord {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if n > eb.count {
		n = eb.count
	}
	if n <= 0 {
		return nil
	}
	out := make([]EventRecord, n)
	for i := range out {
		out[i] = eb.buf[(eb.head-1-i+len(eb.buf))%len(eb.buf)]
	}
	return out
}

// ObserveMerge records a pass; it makes the buffer a merge.Observer.
func (eb *EventBuffer) ObserveMerge(res *merge.ResolvedConfig, elapsed time.Duration, err error) {
	rec := EventRecord{Time: time.Now(), Result: "ok", Elapsed: elapsed}
	if err != nil {
		rec.Result = "error"
		rec.Error = err.Error()
	}
	if res != nil {
		rec.ID = res.ID
		rec.Directives = len(res.Outcomes)
		rec.Policies = len(res.Policies)
		rec.Fatal = len(res.Diagnostics.Fatal())
		rec.Warnings = len(res.Diagnostics) - rec.Fatal
		if rec.Fatal > 0 {
			rec.Result = "fatal"
		}
	}
	eb.Add(rec)
}
