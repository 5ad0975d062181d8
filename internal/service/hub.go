package service

import "sync"

// Entity names a changed record type.
type Entity string

const (
	EntityTask     Entity = "task"
	EntityExpense  Entity = "expense"
	EntityCategory Entity = "category"
	EntityUser     Entity = "user"
	EntitySale     Entity = "sale"
)

// Change announces that records of an entity were modified.
type Change struct {
	Entity Entity
	ID     uint
}

// Hub fans out change notifications so open views can reload their
// snapshots after a mutation.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan Change
	nextID int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Change)}
}

// Subscribe returns a buffered channel of changes and a cancel func.
func (h *Hub) Subscribe() (<-chan Change, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Change, 16)
	h.subs[id] = ch
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
}

// Publish never blocks. A subscriber with a full buffer misses the change,
// which is fine since any later change triggers a full reload.
func (h *Hub) Publish(c Change) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- c:
		default:
		}
	}
}
