package logging

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultRingCapacity is how many records the in-memory buffer retains.
const DefaultRingCapacity = 2000

// Entry is a single captured log record.
type Entry struct {
	ID       string    `json:"id"`
	Time     time.Time `json:"time"`
	Level    string    `json:"level"`
	Category string    `json:"category,omitempty"`
	Message  string    `json:"message"`
}

// Ring is a fixed-capacity buffer of recent log entries. Once full, the
// oldest entry is dropped for each new one.
type Ring struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

// NewRing creates a ring holding up to capacity entries.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &Ring{entries: make([]Entry, capacity)}
}

// Append stores an entry, assigning it a unique ID.
func (r *Ring) Append(e Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = e
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.full = true
	}
}

// Filter narrows a Snapshot call.
type Filter struct {
	Category string
	Level    string
	Limit    int
}

// Snapshot returns matching entries, oldest first. A zero Filter returns
// everything currently buffered.
func (r *Ring) Snapshot(f Filter) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ordered []Entry
	if r.full {
		ordered = append(ordered, r.entries[r.next:]...)
		ordered = append(ordered, r.entries[:r.next]...)
	} else {
		ordered = append(ordered, r.entries[:r.next]...)
	}

	out := ordered[:0:len(ordered)]
	for _, e := range ordered {
		if f.Category != "" && !strings.EqualFold(e.Category, f.Category) {
			continue
		}
		if f.Level != "" && !strings.EqualFold(e.Level, f.Level) {
			continue
		}
		out = append(out, e)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// Len reports how many entries are buffered.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.entries)
	}
	return r.next
}
