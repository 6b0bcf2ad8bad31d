package store

import (
	"sync"

	"github.com/YangLiliang/minivenue/internal/domain"
)

// entry wraps one order with its own read/write lock. The lock guards the
// mutable fields (RemainingQty); the store's structural lock guards the map
// itself. Indices hold order ids, never *entry, so a deleted order can
// never be reached through a stale pointer.
type entry struct {
	mu    sync.RWMutex
	order domain.Order
}

// OrderStore is the owner of every live order record, keyed by order id.
// Reads take shared access on the structural lock; insert and delete take
// exclusive access. Per-order locks nest inside the structural lock and,
// when two orders are locked together, are always acquired in ascending
// order-id order.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[uint64]*entry
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders: make(map[uint64]*entry),
	}
}

// Insert adds an order to the store. The caller has already assigned a
// unique order id, so an existing entry is a bug; Insert overwrites it
// rather than panicking.
func (s *OrderStore) Insert(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.OrderID] = &entry{order: o}
}

// Delete removes an order from the store. It reports whether the order was
// present, so a cancel racing a fill-to-zero can detect that it lost.
func (s *OrderStore) Delete(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return false
	}
	delete(s.orders, id)
	return true
}

// Get returns a copy of the order, or false if it does not exist.
func (s *OrderStore) Get(id uint64) (domain.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.order, true
}

// All returns a copy of every live order, in no particular order.
func (s *OrderStore) All() []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Order, 0, len(s.orders))
	for _, e := range s.orders {
		e.mu.RLock()
		out = append(out, e.order)
		e.mu.RUnlock()
	}
	return out
}

// Len returns the number of live orders.
func (s *OrderStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// TradeExec is the outcome of executing one trade between two orders: the
// pre-trade snapshots of both sides and the matched quantity.
type TradeExec struct {
	Sell domain.Order // snapshot before the decrement
	Buy  domain.Order
	Qty  int64
}

// Execute matches a sell order against a buy order: under both orders'
// write locks it computes qty = min(remaining, remaining) and decrements
// both remaining quantities. The two locks are taken in ascending order-id
// order to rule out a cross deadlock with a concurrent trade on the same
// pair. Returns false if either order has vanished or is exhausted.
func (s *OrderStore) Execute(sellID, buyID uint64) (TradeExec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	se, ok := s.orders[sellID]
	if !ok {
		return TradeExec{}, false
	}
	be, ok := s.orders[buyID]
	if !ok {
		return TradeExec{}, false
	}

	first, second := se, be
	if buyID < sellID {
		first, second = be, se
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	qty := se.order.RemainingQty
	if be.order.RemainingQty < qty {
		qty = be.order.RemainingQty
	}
	if qty <= 0 {
		return TradeExec{}, false
	}

	exec := TradeExec{Sell: se.order, Buy: be.order, Qty: qty}
	se.order.RemainingQty -= qty
	be.order.RemainingQty -= qty
	return exec, true
}

// ApplyFill atomically reads an order's remaining quantity, asks compute
// for the fill amount, and decrements by it. The pre-fill snapshot and the
// computed fill are returned. A zero fill leaves the order untouched and
// returns ok=false, as does a missing order.
func (s *OrderStore) ApplyFill(id uint64, compute func(remaining int64) int64) (domain.Order, int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.orders[id]
	if !ok {
		return domain.Order{}, 0, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.order
	fill := compute(before.RemainingQty)
	if fill <= 0 || fill > before.RemainingQty {
		return domain.Order{}, 0, false
	}
	e.order.RemainingQty -= fill
	return before, fill, true
}
