package store

import (
	"sync"

	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/YangLiliang/minivenue/internal/domain"
)

// priceBucket groups a client's own resting order ids at one price.
type priceBucket struct {
	price decimal.Decimal
	ids   map[uint64]struct{}
}

func bucketLess(a, b priceBucket) bool {
	return a.price.LessThan(b.price)
}

// clientOrders holds one client's resting orders, bucketed by price, one
// B-tree per side. A single mutex covers both sides of the same client.
type clientOrders struct {
	mu   sync.Mutex
	sell *btree.BTreeG[priceBucket]
	buy  *btree.BTreeG[priceBucket]
}

func newClientOrders() *clientOrders {
	const degree = 8
	return &clientOrders{
		sell: btree.NewG[priceBucket](degree, bucketLess),
		buy:  btree.NewG[priceBucket](degree, bucketLess),
	}
}

func (c *clientOrders) side(s domain.Side) *btree.BTreeG[priceBucket] {
	if s == domain.SideSell {
		return c.sell
	}
	return c.buy
}

// ClientIndex tracks, per client, the prices at which the client's own
// orders rest on each side. It exists for exactly one purpose: detecting an
// incoming order that would cross one of the same client's resting orders
// on the opposite side, which is rejected before acceptance.
type ClientIndex struct {
	mu      sync.RWMutex
	clients map[uint64]*clientOrders
}

// NewClientIndex creates an empty ClientIndex.
func NewClientIndex() *ClientIndex {
	return &ClientIndex{
		clients: make(map[uint64]*clientOrders),
	}
}

// Add records a resting order id under its client's price bucket. The
// client's bucket trees are created lazily on first use.
func (ci *ClientIndex) Add(clientID uint64, side domain.Side, price decimal.Decimal, orderID uint64) {
	ci.mu.RLock()
	c, ok := ci.clients[clientID]
	ci.mu.RUnlock()
	if !ok {
		ci.mu.Lock()
		if c, ok = ci.clients[clientID]; !ok {
			c = newClientOrders()
			ci.clients[clientID] = c
		}
		ci.mu.Unlock()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	tree := c.side(side)
	bucket, ok := tree.Get(priceBucket{price: price})
	if !ok {
		bucket = priceBucket{price: price, ids: make(map[uint64]struct{})}
		tree.ReplaceOrInsert(bucket)
	}
	bucket.ids[orderID] = struct{}{}
}

// Remove deletes an order id from its client's price bucket, dropping the
// bucket once it empties. Missing clients, buckets, or ids are no-ops.
func (ci *ClientIndex) Remove(clientID uint64, side domain.Side, price decimal.Decimal, orderID uint64) {
	ci.mu.RLock()
	c, ok := ci.clients[clientID]
	ci.mu.RUnlock()
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	tree := c.side(side)
	bucket, ok := tree.Get(priceBucket{price: price})
	if !ok {
		return
	}
	delete(bucket.ids, orderID)
	if len(bucket.ids) == 0 {
		tree.Delete(bucket)
	}
}

// WouldSelfTrade reports whether a prospective order from clientID at the
// given price would cross one of the client's own resting orders on the
// opposite side: a buy crosses any own sell priced <= price, a sell
// crosses any own buy priced >= price.
func (ci *ClientIndex) WouldSelfTrade(clientID uint64, side domain.Side, price decimal.Decimal) bool {
	ci.mu.RLock()
	c, ok := ci.clients[clientID]
	ci.mu.RUnlock()
	if !ok {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if side == domain.SideBuy {
		if cheapest, ok := c.sell.Min(); ok {
			return cheapest.price.LessThanOrEqual(price)
		}
		return false
	}
	if dearest, ok := c.buy.Max(); ok {
		return dearest.price.GreaterThanOrEqual(price)
	}
	return false
}
