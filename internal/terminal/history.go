package terminal

import "strings"

// DefaultHistorySize is the history capacity when none is configured.
const DefaultHistorySize = 100

// History is a fixed-capacity ring of committed commands, oldest first.
// Empty entries and immediate repeats are not recorded.
type History struct {
	entries []string
	start   int
	count   int
}

// NewHistory creates a ring holding at most capacity entries.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{entries: make([]string, capacity)}
}

// Add appends entry, evicting the oldest when full. It reports whether the
// entry was recorded.
func (h *History) Add(entry string) bool {
	if strings.TrimSpace(entry) == "" {
		return false
	}
	if h.count > 0 && h.At(h.count-1) == entry {
		return false
	}

	capacity := len(h.entries)
	if h.count < capacity {
		h.entries[(h.start+h.count)%capacity] = entry
		h.count++
		return true
	}
	h.entries[h.start] = entry
	h.start = (h.start + 1) % capacity
	return true
}

// Len returns the number of entries.
func (h *History) Len() int {
	return h.count
}

// Cap returns the capacity.
func (h *History) Cap() int {
	return len(h.entries)
}

// At returns the i-th entry, 0 being the oldest.
func (h *History) At(i int) string {
	return h.entries[(h.start+i)%len(h.entries)]
}

// Entries returns a copy of the entries, oldest first.
func (h *History) Entries() []string {
	out := make([]string, h.count)
	for i := range out {
		out[i] = h.At(i)
	}
	return out
}

// Load replaces the contents with entries, applying the same rules as Add.
func (h *History) Load(entries []string) {
	h.start, h.count = 0, 0
	for _, e := range entries {
		h.Add(e)
	}
}
