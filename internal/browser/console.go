package browser

import (
	"sync"

	"github.com/nextlevelbuilder/goforge/pkg/protocol"
)

// ConsoleRing is the bounded FIFO of captured console, page-error and
// request-failed entries. Append-only with size-based eviction; navigation
// resets it.
type ConsoleRing struct {
	mu      sync.Mutex
	entries []protocol.ConsoleEntry
	max     int
}

// NewConsoleRing creates a ring holding at most max entries.
func NewConsoleRing(max int) *ConsoleRing {
	if max <= 0 {
		max = 1000
	}
	return &ConsoleRing{max: max}
}

// Push appends an entry, evicting the oldest when full.
func (r *ConsoleRing) Push(entry protocol.ConsoleEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	if len(r.entries) > r.max {
		r.entries = r.entries[len(r.entries)-r.max:]
	}
}

// Snapshot returns entries matching the optional type filter, oldest first.
// When drain is set the ring is cleared after the read.
func (r *ConsoleRing) Snapshot(filter string, drain bool) []protocol.ConsoleEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []protocol.ConsoleEntry
	for _, e := range r.entries {
		if filter == "" || e.Type == filter {
			out = append(out, e)
		}
	}
	if drain {
		r.entries = nil
	}
	return out
}

// Reset clears the ring.
func (r *ConsoleRing) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}

// Len returns the current entry count.
func (r *ConsoleRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
