package orderbook

import (
	"sync"
)

// entryPool recycles the scratch slices used while pruning queues.
var entryPool = sync.Pool{
	New: func() interface{} {
		s := make([]entry, 0, 16)
		return &s
	},
}

func acquireEntries() *[]entry {
	return entryPool.Get().(*[]entry)
}

func releaseEntries(s *[]entry) {
	if s == nil {
		return
	}
	// Drop order pointers before pooling
	clear(*s)
	*s = (*s)[:0]
	entryPool.Put(s)
}
