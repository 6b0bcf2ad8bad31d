package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind distinguishes limit orders from market orders.
type Kind string

const (
	KindLimit  Kind = "LIMIT"
	KindMarket Kind = "MARKET"
)

// Side indicates whether an order sells or buys.
type Side string

const (
	SideSell Side = "SELL"
	SideBuy  Side = "BUY"
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideSell {
		return SideBuy
	}
	return SideSell
}

// Valid reports whether s is one of the two known sides.
func (s Side) Valid() bool {
	return s == SideSell || s == SideBuy
}

// Valid reports whether k is one of the two known order kinds.
func (k Kind) Valid() bool {
	return k == KindLimit || k == KindMarket
}

// Order represents an accepted order resting in the venue. The OrderID is
// assigned at acceptance from a monotonically increasing counter and is
// never reused. RemainingQty is mutated only by the matching engine under
// the order's write lock; every index refers to the order by id, never by
// pointer.
type Order struct {
	OrderID      uint64
	ClientID     uint64
	InstrumentID string
	Side         Side
	Kind         Kind
	Price        decimal.Decimal
	OrigQty      int64
	RemainingQty int64
	SubmittedAt  time.Time
}

// NewOrderRequest is a client's instruction to place an order. Validation
// happens before an order id is assigned; a request that fails any check
// is rejected with order id 0.
type NewOrderRequest struct {
	ClientID     uint64          `json:"client_id"`
	InstrumentID string          `json:"instrument_id"`
	Side         Side            `json:"side"`
	Kind         Kind            `json:"kind"`
	Price        decimal.Decimal `json:"price"`
	Qty          int64           `json:"qty"`
	Time         string          `json:"time,omitempty"`
}

// Validate checks the request fields in a fixed order and returns a
// ValidationError describing the first failing check, or nil.
func (r *NewOrderRequest) Validate() error {
	switch {
	case r.ClientID == 0:
		return &ValidationError{Message: "client id must be positive"}
	case r.InstrumentID == "":
		return &ValidationError{Message: "instrument id must not be empty"}
	case !r.Side.Valid():
		return &ValidationError{Message: "order side is invalid"}
	case r.Qty <= 0:
		return &ValidationError{Message: "order quantity must be positive"}
	case !r.Price.IsPositive():
		return &ValidationError{Message: "order price must be positive"}
	case !r.Kind.Valid():
		return &ValidationError{Message: "order kind is invalid"}
	}
	return nil
}

// CancelOrderRequest asks the venue to cancel a resting order.
type CancelOrderRequest struct {
	OrderID uint64 `json:"order_id"`
	Time    string `json:"time,omitempty"`
}

// QueryOrderRequest asks for a snapshot of every resting order.
type QueryOrderRequest struct {
	Time string `json:"time,omitempty"`
}

// SendMessageRequest activates a broadcast-feed exchange. It carries no
// payload beyond the client timestamp; the act of asking is what flushes
// buffered feed reports outward.
type SendMessageRequest struct {
	Time string `json:"time,omitempty"`
}
