package orderbook

import (
	"time"

	"trading_core/internal/domain"

	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

const queueDegree = 32

// entry is a live queue element. Seq is unique, so no two entries compare equal.
// price and market are copied at admission so the key never changes inside the tree.
type entry struct {
	order    *domain.Order
	slot     int
	seq      uint64
	placedAt time.Time
	price    decimal.Decimal
	market   bool
}

func newEntry(o *domain.Order, slot int, st domain.OrderState) entry {
	return entry{
		order:    o,
		slot:     slot,
		seq:      st.Seq,
		placedAt: st.PlacedAt,
		price:    o.Price,
		market:   o.IsMarket(),
	}
}

// queue keeps one side of a partition in price-time priority.
type queue struct {
	tree *btree.BTreeG[entry]
}

func newQueue(side domain.Side) *queue {
	less := askLess
	if side == domain.SideBuy {
		less = bidLess
	}
	return &queue{tree: btree.NewG(queueDegree, less)}
}

// bidLess ranks a ahead of b: MARKET first, then higher price, then earlier placement.
func bidLess(a, b entry) bool {
	if am, bm := a.market, b.market; am != bm {
		return am
	} else if !am {
		if c := a.price.Cmp(b.price); c != 0 {
			return c > 0
		}
	}
	return earlier(a, b)
}

// askLess ranks a ahead of b: MARKET first, then lower price, then earlier placement.
func askLess(a, b entry) bool {
	if am, bm := a.market, b.market; am != bm {
		return am
	} else if !am {
		if c := a.price.Cmp(b.price); c != 0 {
			return c < 0
		}
	}
	return earlier(a, b)
}

func earlier(a, b entry) bool {
	if !a.placedAt.Equal(b.placedAt) {
		return a.placedAt.Before(b.placedAt)
	}
	return a.seq < b.seq
}

func (q *queue) push(e entry) {
	q.tree.ReplaceOrInsert(e)
}

func (q *queue) remove(e entry) {
	q.tree.Delete(e)
}

func (q *queue) len() int {
	return q.tree.Len()
}

// scan walks open entries in priority order until fn returns false.
// Closed entries met on the way are pruned.
func (q *queue) scan(open func(entry) bool, fn func(entry) bool) {
	stale := acquireEntries()
	defer releaseEntries(stale)

	q.tree.Ascend(func(e entry) bool {
		if !open(e) {
			*stale = append(*stale, e)
			return true
		}
		return fn(e)
	})

	for _, e := range *stale {
		q.tree.Delete(e)
	}
}
