package domain

import (
	"sync"
	"time"
)

// OrderState is the mutable lifecycle record of an admitted order.
type OrderState struct {
	Seq        uint64    `json:"seq"` // Admission sequence, breaks ties between equal placement times
	PlacedAt   time.Time `json:"placed_at"`
	ExpiresAt  time.Time `json:"expires_at"` // Zero value means no expiration
	Executed   bool      `json:"executed"`
	ExecutedAt time.Time `json:"executed_at"`
}

// IsOpen reports whether the order is not executed and not past its expiration at now.
func (s OrderState) IsOpen(now time.Time) bool {
	if s.Executed {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// StateTable holds the canonical lifecycle state of every admitted order.
// Orders are addressed by a dense slot assigned at insertion.
type StateTable struct {
	mu      sync.RWMutex
	slots   []OrderState
	index   map[OrderID]int
	nextSeq uint64
}

// NewStateTable creates an empty state table.
func NewStateTable() *StateTable {
	return &StateTable{
		index:   make(map[OrderID]int),
		nextSeq: 1,
	}
}

// Insert stores st under id and stamps its admission sequence.
// Returns the existing slot and false if id is already present.
func (t *StateTable) Insert(id OrderID, st OrderState) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if slot, ok := t.index[id]; ok {
		return slot, false
	}
	st.Seq = t.nextSeq
	t.nextSeq++
	t.slots = append(t.slots, st)
	slot := len(t.slots) - 1
	t.index[id] = slot
	return slot, true
}

// Slot returns the slot assigned to id.
func (t *StateTable) Slot(id OrderID) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	slot, ok := t.index[id]
	return slot, ok
}

// At returns a copy of the state in slot.
func (t *StateTable) At(slot int) OrderState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.slots[slot]
}

// Get returns a copy of the state for id.
func (t *StateTable) Get(id OrderID) (OrderState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	slot, ok := t.index[id]
	if !ok {
		return OrderState{}, false
	}
	return t.slots[slot], true
}

// IsOpen reports whether the order in slot is open at now.
func (t *StateTable) IsOpen(slot int, now time.Time) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.slots[slot].IsOpen(now)
}

// MarkExecuted flags every slot as executed at the given time.
func (t *StateTable) MarkExecuted(at time.Time, slots ...int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, slot := range slots {
		t.slots[slot].Executed = true
		t.slots[slot].ExecutedAt = at
	}
}

// Expire sets the expiration of slot to at.
func (t *StateTable) Expire(slot int, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slots[slot].ExpiresAt = at
}

// Len returns the number of admitted orders.
func (t *StateTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.slots)
}
