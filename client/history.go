package client

import (
	"sync"

	"chatgo/internal/domain"
)

// History is the client's in-memory ordered message sequence for one chat.
// It is idempotent against the broadcast echo: the originator of a create
// receives both the synchronous response and the room broadcast for the
// same message, so ApplyNew dedups by id. Updates and deletes replace the
// matching entry in place; a deleted message is never removed from the
// sequence, which keeps reply references stable.
type History struct {
	mu    sync.Mutex
	msgs  []domain.Message
	index map[int64]int
}

func NewHistory() *History {
	return &History{index: make(map[int64]int)}
}

// ApplyNew appends the message unless it is already present.
func (h *History) ApplyNew(m domain.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.index[m.ID]; ok {
		return
	}
	h.index[m.ID] = len(h.msgs)
	h.msgs = append(h.msgs, m)
}

// ApplyUpdate replaces the matching message in place. Unknown ids are
// ignored; the next poll reconciles them.
func (h *History) ApplyUpdate(m domain.Message) {
	h.replace(m)
}

// ApplyDelete replaces the matching message in place with its cleared
// representation. The entry keeps its position in the sequence.
func (h *History) ApplyDelete(m domain.Message) {
	h.replace(m)
}

func (h *History) replace(m domain.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if i, ok := h.index[m.ID]; ok {
		h.msgs[i] = m
	}
}

// Replace swaps local state wholesale for a freshly fetched history. This
// is the reconciliation backstop: whatever the live channel missed is
// corrected here.
func (h *History) Replace(msgs []domain.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.msgs = make([]domain.Message, len(msgs))
	copy(h.msgs, msgs)
	h.index = make(map[int64]int, len(msgs))
	for i, m := range h.msgs {
		h.index[m.ID] = i
	}
}

// Messages returns a snapshot of the sequence in order.
func (h *History) Messages() []domain.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]domain.Message, len(h.msgs))
	copy(out, h.msgs)
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}
