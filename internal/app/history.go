package app

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// History tracks looked-up item ids, most recent last, one entry per id.
// Record and Evict are O(1); the ordered map keeps a linked list plus an index.
type History struct {
	limit int
	order *orderedmap.OrderedMap[int, struct{}]
}

// NewHistory constructs a history tracker. limit <= 0 keeps every id.
func NewHistory(limit int) *History {
	return &History{
		limit: max(limit, 0),
		order: orderedmap.New[int, struct{}](),
	}
}

// Record appends id, or moves it to the tail when already present.
func (h *History) Record(id int) {
	if _, present := h.order.Get(id); present {
		_ = h.order.MoveToBack(id)
		return
	}
	h.order.Set(id, struct{}{})
	for h.limit > 0 && h.order.Len() > h.limit {
		oldest := h.order.Oldest()
		if oldest == nil {
			return
		}
		h.order.Delete(oldest.Key)
	}
}

// Evict removes id if present.
func (h *History) Evict(id int) {
	h.order.Delete(id)
}

// IDs returns the recorded ids, oldest first.
func (h *History) IDs() []int {
	out := make([]int, 0, h.order.Len())
	for pair := h.order.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

func (h *History) Contains(id int) bool {
	_, present := h.order.Get(id)
	return present
}

func (h *History) Len() int {
	return h.order.Len()
}

func (h *History) Clear() {
	h.order = orderedmap.New[int, struct{}]()
}
