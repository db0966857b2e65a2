package configstore

import (
	"fmt"
	"time"

	"github.com/psaab/srxmerge/pkg/config"
)

// HistoryEntry is a committed tree. Slot 1 is the commit before the
// active one.
type HistoryEntry struct {
	Config    *config.Node
	Timestamp time.Time
	Comment   string
	MergeID   string // run ID of the pass that validated the tree
}

// History keeps the most recent commits in a fixed-size ring.
type History struct {
	ring []*HistoryEntry
	head int // next write position
	n    int
}

// NewHistory creates a History holding at most size entries.
func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	return &History{ring: make([]*HistoryEntry, size)}
}

// Push records a snapshot, evicting the oldest when full.
func (h *History) Push(e *HistoryEntry) {
	h.ring[h.head] = e
	h.head = (h.head + 1) % len(h.ring)
	if h.n < len(h.ring) {
		h.n++
	}
}

// Get returns rollback slot n (1 = most recent).
func (h *History) Get(n int) (*HistoryEntry, error) {
	if n < 1 || n > h.n {
		return nil, fmt.Errorf("rollback %d: no such configuration (have %d entries)", n, h.n)
	}
	idx := (h.head - n + len(h.ring)) % len(h.ring)
	return h.ring[idx], nil
}

// Len returns the number of stored entries.
func (h *History) Len() int { return h.n }

// MaxSize returns the ring capacity.
func (h *History) MaxSize() int { return len(h.ring) }

// List returns the entries most recent first.
func (h *History) List() []*HistoryEntry {
	out := make([]*HistoryEntry, 0, h.n)
	for i := 1; i <= h.n; i++ {
		e, _ := h.Get(i)
		out = append(out, e)
	}
	return out
}
