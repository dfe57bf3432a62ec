package domain

import "fmt"

// Holdings maps instrument symbols to held quantities. Absent means zero.
// Holdings is not safe for concurrent use; Account serializes access to it.
type Holdings struct {
	qty map[string]int64
}

// NewHoldings creates an empty registry.
func NewHoldings() Holdings {
	return Holdings{qty: make(map[string]int64)}
}

// Get returns the held quantity for symbol, 0 if absent.
func (h *Holdings) Get(symbol string) int64 {
	return h.qty[symbol]
}

// Adjust applies a signed quantity change. The registry is unchanged on error.
func (h *Holdings) Adjust(symbol string, delta int64) error {
	if h.qty == nil {
		h.qty = make(map[string]int64)
	}
	next := h.qty[symbol] + delta
	if next < 0 {
		return fmt.Errorf("%s: hold %d, adjust %d: %w", symbol, h.qty[symbol], delta, ErrInsufficientHoldings)
	}
	if next == 0 {
		delete(h.qty, symbol)
		return nil
	}
	h.qty[symbol] = next
	return nil
}

// Snapshot returns a copy of all non-zero holdings.
func (h *Holdings) Snapshot() map[string]int64 {
	out := make(map[string]int64, len(h.qty))
	for k, v := range h.qty {
		out[k] = v
	}
	return out
}
