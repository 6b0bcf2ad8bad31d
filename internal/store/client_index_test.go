package store

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/YangLiliang/minivenue/internal/domain"
)

func price(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestWouldSelfTrade(t *testing.T) {
	tests := []struct {
		name      string
		restSide  domain.Side
		restPrice int64
		side      domain.Side
		price     int64
		want      bool
	}{
		{name: "buy crossing own sell at same price", restSide: domain.SideSell, restPrice: 10, side: domain.SideBuy, price: 10, want: true},
		{name: "buy above own sell", restSide: domain.SideSell, restPrice: 10, side: domain.SideBuy, price: 15, want: true},
		{name: "buy below own sell", restSide: domain.SideSell, restPrice: 10, side: domain.SideBuy, price: 9, want: false},
		{name: "sell crossing own buy at same price", restSide: domain.SideBuy, restPrice: 10, side: domain.SideSell, price: 10, want: true},
		{name: "sell below own buy", restSide: domain.SideBuy, restPrice: 10, side: domain.SideSell, price: 8, want: true},
		{name: "sell above own buy", restSide: domain.SideBuy, restPrice: 10, side: domain.SideSell, price: 11, want: false},
		{name: "same side never self-trades", restSide: domain.SideBuy, restPrice: 10, side: domain.SideBuy, price: 10, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ci := NewClientIndex()
			ci.Add(1, tt.restSide, price(tt.restPrice), 1)

			if got := ci.WouldSelfTrade(1, tt.side, price(tt.price)); got != tt.want {
				t.Errorf("WouldSelfTrade = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWouldSelfTradeUnknownClient(t *testing.T) {
	ci := NewClientIndex()
	if ci.WouldSelfTrade(1, domain.SideBuy, price(10)) {
		t.Error("empty index reported self-trade")
	}
}

func TestWouldSelfTradeIgnoresOtherClients(t *testing.T) {
	ci := NewClientIndex()
	ci.Add(1, domain.SideSell, price(10), 1)
	if ci.WouldSelfTrade(2, domain.SideBuy, price(15)) {
		t.Error("self-trade reported across clients")
	}
}

func TestRemoveClearsBucket(t *testing.T) {
	ci := NewClientIndex()
	ci.Add(1, domain.SideSell, price(10), 1)
	ci.Add(1, domain.SideSell, price(10), 2)

	ci.Remove(1, domain.SideSell, price(10), 1)
	if !ci.WouldSelfTrade(1, domain.SideBuy, price(10)) {
		t.Error("bucket dropped while an order remained")
	}

	ci.Remove(1, domain.SideSell, price(10), 2)
	if ci.WouldSelfTrade(1, domain.SideBuy, price(10)) {
		t.Error("empty bucket still triggers self-trade")
	}

	// Removing from missing client, bucket, or id must not panic.
	ci.Remove(9, domain.SideSell, price(10), 1)
	ci.Remove(1, domain.SideSell, price(99), 1)
	ci.Remove(1, domain.SideSell, price(10), 42)
}

func TestSelfTradeChecksExtremeBucket(t *testing.T) {
	ci := NewClientIndex()
	ci.Add(1, domain.SideSell, price(10), 1)
	ci.Add(1, domain.SideSell, price(20), 2)

	// Cheapest own sell decides: 12 crosses the 10 bucket even though the
	// 20 bucket does not cross.
	if !ci.WouldSelfTrade(1, domain.SideBuy, price(12)) {
		t.Error("buy at 12 should cross own sell at 10")
	}
	if ci.WouldSelfTrade(1, domain.SideBuy, price(9)) {
		t.Error("buy at 9 crosses nothing")
	}

	ci.Add(2, domain.SideBuy, price(5), 3)
	ci.Add(2, domain.SideBuy, price(8), 4)
	// Dearest own buy decides for the sell direction.
	if !ci.WouldSelfTrade(2, domain.SideSell, price(7)) {
		t.Error("sell at 7 should cross own buy at 8")
	}
	if ci.WouldSelfTrade(2, domain.SideSell, price(9)) {
		t.Error("sell at 9 crosses nothing")
	}
}

func TestFeedBufferDrain(t *testing.T) {
	f := NewFeedBuffer()
	for i := uint64(1); i <= 3; i++ {
		f.Append(domain.ExecutionReport{Status: domain.StatusFill, OrderID: i})
	}
	if f.Len() != 3 {
		t.Fatalf("len = %d, want 3", f.Len())
	}

	got := f.Drain()
	if len(got) != 3 || got[0].OrderID != 1 || got[2].OrderID != 3 {
		t.Fatalf("drain = %+v", got)
	}
	if f.Len() != 0 || len(f.Drain()) != 0 {
		t.Error("buffer not empty after drain")
	}
}
