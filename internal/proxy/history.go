package proxy

import (
	"sync"

	"github.com/rshield/rshield/internal/model"
)

// History is the bounded FIFO of ProxyRequestRecord entries (spec
// §3/§8: at most 1000, oldest evicted on overflow).
type History struct {
	mu      sync.Mutex
	records []model.ProxyRequestRecord
	byID    map[string]int
}

// NewHistory constructs an empty history ring.
func NewHistory() *History {
	return &History{byID: make(map[string]int)}
}

// Add appends a record, evicting the oldest entry if the ring is full.
func (h *History) Add(rec model.ProxyRequestRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.records) >= model.MaxRequestHistory {
		evicted := h.records[0]
		h.records = h.records[1:]
		delete(h.byID, evicted.ID)
		for id, idx := range h.byID {
			h.byID[id] = idx - 1
		}
	}
	h.byID[rec.ID] = len(h.records)
	h.records = append(h.records, rec)
}

// UpdateResponse mutates the response fields of an existing record by
// id in place.
func (h *History) UpdateResponse(id string, status int, headers map[string]string, body string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	idx, ok := h.byID[id]
	if !ok {
		return false
	}
	h.records[idx].Status = status
	h.records[idx].ResponseHeaders = headers
	h.records[idx].ResponseBody = body
	return true
}

// All returns a snapshot of the current history, oldest first.
func (h *History) All() []model.ProxyRequestRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]model.ProxyRequestRecord, len(h.records))
	copy(out, h.records)
	return out
}

// Len returns the current entry count.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}
