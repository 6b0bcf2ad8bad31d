package engine

import (
	"sync"

	"github.com/google/btree"

	"github.com/YangLiliang/minivenue/internal/domain"
)

func orderIDLess(a, b uint64) bool { return a < b }

// sideSet is one side of an instrument's book: the ids of the orders
// resting there, ordered ascending. Ascending id is the venue's matching
// priority (submission time, not price). The mutex serializes a matching
// walk against concurrent inserts and removals on the same side; the
// matcher in this package holds it for the duration of a walk.
type sideSet struct {
	mu  sync.Mutex
	ids *btree.BTreeG[uint64]
}

func newSideSet() *sideSet {
	const degree = 32
	return &sideSet{ids: btree.NewG[uint64](degree, orderIDLess)}
}

// Add records a resting order id.
func (s *sideSet) Add(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids.ReplaceOrInsert(id)
}

// Remove drops an order id; absent ids are a no-op.
func (s *sideSet) Remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids.Delete(id)
}

// snapshot returns the resting ids in ascending order. Caller holds mu.
func (s *sideSet) snapshot() []uint64 {
	out := make([]uint64, 0, s.ids.Len())
	s.ids.Ascend(func(id uint64) bool {
		out = append(out, id)
		return true
	})
	return out
}

// Len returns the number of resting ids on this side.
func (s *sideSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids.Len()
}

// instrumentBook holds the two independently lockable resting sets of one
// instrument.
type instrumentBook struct {
	sell *sideSet
	buy  *sideSet
}

func newInstrumentBook() *instrumentBook {
	return &instrumentBook{sell: newSideSet(), buy: newSideSet()}
}

func (b *instrumentBook) side(s domain.Side) *sideSet {
	if s == domain.SideSell {
		return b.sell
	}
	return b.buy
}

// BookIndex is a thread-safe map of instrument id to its book. Instruments
// are created lazily the first time an order for them is accepted and live
// for the rest of the process.
type BookIndex struct {
	mu    sync.RWMutex
	books map[string]*instrumentBook
}

// NewBookIndex creates an empty BookIndex.
func NewBookIndex() *BookIndex {
	return &BookIndex{
		books: make(map[string]*instrumentBook),
	}
}

// GetOrCreate returns the book for the given instrument, creating it if it
// doesn't already exist.
func (bi *BookIndex) GetOrCreate(instrumentID string) *instrumentBook {
	bi.mu.RLock()
	book, ok := bi.books[instrumentID]
	bi.mu.RUnlock()
	if ok {
		return book
	}

	bi.mu.Lock()
	defer bi.mu.Unlock()
	// Double-check after acquiring write lock.
	if book, ok = bi.books[instrumentID]; ok {
		return book
	}
	book = newInstrumentBook()
	bi.books[instrumentID] = book
	return book
}

// Lookup returns the book for the given instrument, or false if no order
// for it has ever been accepted.
func (bi *BookIndex) Lookup(instrumentID string) (*instrumentBook, bool) {
	bi.mu.RLock()
	defer bi.mu.RUnlock()
	book, ok := bi.books[instrumentID]
	return book, ok
}
