package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/YangLiliang/minivenue/internal/domain"
	"github.com/YangLiliang/minivenue/internal/engine"
	"github.com/YangLiliang/minivenue/internal/store"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine() *engine.Matcher {
	return engine.NewMatcher(
		store.NewOrderStore(),
		store.NewClientIndex(),
		engine.NewBookIndex(),
		store.NewFeedBuffer(),
		100*time.Millisecond,
		3*time.Second,
		discard(),
	)
}

func orderReq(client uint64, side domain.Side, price, qty int64) *domain.NewOrderRequest {
	return &domain.NewOrderRequest{
		ClientID:     client,
		InstrumentID: "AAPL",
		Side:         side,
		Kind:         domain.KindLimit,
		Price:        decimal.NewFromInt(price),
		Qty:          qty,
	}
}

func drainReports(out *Outbox[domain.ExecutionReport]) []domain.ExecutionReport {
	var got []domain.ExecutionReport
	for {
		rep, ok := out.Pop()
		if !ok {
			return got
		}
		got = append(got, rep)
	}
}

func TestOutboxFIFO(t *testing.T) {
	out := NewOutbox[int]()
	for i := 1; i <= 5; i++ {
		if err := out.Push(i); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	for want := 1; want <= 5; want++ {
		got, ok := out.Pop()
		if !ok || got != want {
			t.Fatalf("pop = %d,%v, want %d,true", got, ok, want)
		}
	}
	if _, ok := out.Pop(); ok {
		t.Error("pop on empty outbox succeeded")
	}
}

func TestOutboxClose(t *testing.T) {
	out := NewOutbox[int]()
	out.Push(1)
	out.Close()

	if err := out.Push(2); err != domain.ErrSessionGone {
		t.Errorf("push after close = %v, want ErrSessionGone", err)
	}
	if v, ok := out.Pop(); !ok || v != 1 {
		t.Errorf("queued element lost on close: %d,%v", v, ok)
	}
	if !out.Drained() {
		t.Error("expected drained after close and flush")
	}
}

func TestRegistryRouteMissDoesNotPanic(t *testing.T) {
	reg := NewRegistry(discard())
	reg.Route(99, domain.ExecutionReport{Status: domain.StatusFill, OrderID: 99})

	out := NewOutbox[domain.ExecutionReport]()
	out.Close()
	reg.Register(1, out)
	reg.Route(1, domain.ExecutionReport{Status: domain.StatusFill, OrderID: 1})
}

func TestNewOrderSessionAcceptAndReject(t *testing.T) {
	eng := newTestEngine()
	reg := NewRegistry(discard())
	s := NewOrderSession(eng, reg, discard())

	s.Step(Event{Kind: EvMessage, NewOrder: orderReq(1, domain.SideBuy, 10, 100)})
	got := drainReports(s.Reports())
	if len(got) != 1 || got[0].Status != domain.StatusOrderAccept {
		t.Fatalf("expected one ORDER_ACCEPT, got %+v", got)
	}
	if _, ok := reg.Resolve(got[0].OrderID); !ok {
		t.Error("accepted order not registered")
	}

	bad := orderReq(0, domain.SideBuy, 10, 100)
	s.Step(Event{Kind: EvMessage, NewOrder: bad})
	got = drainReports(s.Reports())
	if len(got) != 1 || got[0].Status != domain.StatusOrderReject {
		t.Fatalf("expected one ORDER_REJECT, got %+v", got)
	}
	if got[0].OrderID != 0 {
		t.Errorf("reject carries order id %d, want 0", got[0].OrderID)
	}
}

func TestNewOrderSessionsTradeRoutesBothFills(t *testing.T) {
	eng := newTestEngine()
	reg := NewRegistry(discard())

	seller := NewOrderSession(eng, reg, discard())
	seller.Step(Event{Kind: EvMessage, NewOrder: orderReq(1, domain.SideSell, 10, 100)})
	sellReps := drainReports(seller.Reports())
	if len(sellReps) != 1 || sellReps[0].Status != domain.StatusOrderAccept {
		t.Fatalf("sell accept missing: %+v", sellReps)
	}

	buyer := NewOrderSession(eng, reg, discard())
	buyer.Step(Event{Kind: EvMessage, NewOrder: orderReq(2, domain.SideBuy, 10, 100)})

	buyReps := drainReports(buyer.Reports())
	if len(buyReps) != 2 {
		t.Fatalf("buyer expected accept+fill, got %+v", buyReps)
	}
	if buyReps[0].Status != domain.StatusOrderAccept || buyReps[1].Status != domain.StatusFill {
		t.Errorf("buyer report order wrong: %s then %s", buyReps[0].Status, buyReps[1].Status)
	}

	routed := drainReports(seller.Reports())
	if len(routed) != 1 || routed[0].Status != domain.StatusFill {
		t.Fatalf("seller expected routed fill, got %+v", routed)
	}
	if routed[0].FillQty != 100 || routed[0].LeaveQty != 0 {
		t.Errorf("routed fill qty = %d leave %d, want 100/0", routed[0].FillQty, routed[0].LeaveQty)
	}
}

func TestNewOrderSessionDisconnectStillRestsOrder(t *testing.T) {
	eng := newTestEngine()
	reg := NewRegistry(discard())
	s := NewOrderSession(eng, reg, discard())

	// The client vanishes between acceptance and the accept-report write.
	s.Reports().Close()
	s.Step(Event{Kind: EvMessage, NewOrder: orderReq(1, domain.SideBuy, 10, 100)})

	snapshot := eng.Query()
	if len(snapshot) != 1 {
		t.Fatalf("expected accepted order resting, got %d", len(snapshot))
	}
	if eng.Scheduler().TaskCount() != 1 {
		t.Fatalf("resting order has no scheduled fill, tasks = %d", eng.Scheduler().TaskCount())
	}

	// A counterparty can still trade against it; the fill routed to the
	// dead owner is dropped, not lost from the book.
	other := NewOrderSession(eng, reg, discard())
	other.Step(Event{Kind: EvMessage, NewOrder: orderReq(2, domain.SideSell, 10, 100)})
	reps := drainReports(other.Reports())
	if len(reps) != 2 || reps[0].Status != domain.StatusOrderAccept || reps[1].Status != domain.StatusFill {
		t.Fatalf("counterparty expected accept+fill, got %+v", reps)
	}
	if len(eng.Query()) != 0 {
		t.Error("book not empty after the trade")
	}
	if eng.Scheduler().TaskCount() != 0 {
		t.Errorf("scheduled task leaked, tasks = %d", eng.Scheduler().TaskCount())
	}
}

func TestQuerySessionStreamsSnapshotThenCloses(t *testing.T) {
	eng := newTestEngine()
	reg := NewRegistry(discard())

	src := NewOrderSession(eng, reg, discard())
	src.Step(Event{Kind: EvMessage, NewOrder: orderReq(1, domain.SideBuy, 10, 100)})
	src.Step(Event{Kind: EvMessage, NewOrder: orderReq(2, domain.SideSell, 20, 200)})

	q := QuerySession(eng, discard())
	q.Step(Event{Kind: EvActivate})

	var got []domain.OrderReport
	for {
		rep, ok := q.Snapshot().Pop()
		if !ok {
			break
		}
		got = append(got, rep)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 snapshot elements, got %d", len(got))
	}
	if got[0].OrderID >= got[1].OrderID {
		t.Errorf("snapshot not ascending: %d, %d", got[0].OrderID, got[1].OrderID)
	}
	if !q.Snapshot().Drained() {
		t.Error("query outbox not closed after snapshot")
	}
}

func TestFeedSessionRoutesAndEchoes(t *testing.T) {
	eng := newTestEngine()
	reg := NewRegistry(discard())

	owner := NewOrderSession(eng, reg, discard())
	owner.Step(Event{Kind: EvMessage, NewOrder: orderReq(1, domain.SideBuy, 10, 1000)})
	acc := drainReports(owner.Reports())
	orderID := acc[0].OrderID

	if !eng.SimulatedFill(orderID) {
		t.Fatal("simulated fill should leave quantity")
	}

	f := FeedSession(eng, reg, discard())
	f.Step(Event{Kind: EvActivate})

	echoed := drainReports(f.Reports())
	if len(echoed) != 1 || echoed[0].Status != domain.StatusFill {
		t.Fatalf("feed echo missing: %+v", echoed)
	}
	routed := drainReports(owner.Reports())
	if len(routed) != 1 || routed[0].OrderID != orderID {
		t.Fatalf("owner did not receive routed fill: %+v", routed)
	}
	if !f.Reports().Drained() {
		t.Error("feed outbox not closed after drain")
	}

	// A second activation finds nothing new.
	f2 := FeedSession(eng, reg, discard())
	f2.Step(Event{Kind: EvActivate})
	if extra := drainReports(f2.Reports()); len(extra) != 0 {
		t.Errorf("second feed drain not empty: %+v", extra)
	}
}

func TestSessionLifecycle(t *testing.T) {
	eng := newTestEngine()
	reg := NewRegistry(discard())
	s := NewOrderSession(eng, reg, discard())

	if s.State() != StateCreated {
		t.Fatalf("initial state = %d, want created", s.State())
	}
	s.Step(Event{Kind: EvMessage, NewOrder: orderReq(1, domain.SideBuy, 10, 100)})
	if s.State() != StateActive {
		t.Fatalf("state after message = %d, want active", s.State())
	}
	s.Step(Event{Kind: EvFinish})
	if s.State() != StateFinished {
		t.Fatalf("state after finish = %d, want finished", s.State())
	}

	// Steps after finish are ignored and the outbox rejects pushes.
	s.Step(Event{Kind: EvMessage, NewOrder: orderReq(1, domain.SideBuy, 10, 100)})
	if got := drainReports(s.Reports()); len(got) != 0 {
		t.Errorf("finished session produced reports: %+v", got)
	}
}

func TestDispatcherDrivesSessions(t *testing.T) {
	eng := newTestEngine()
	reg := NewRegistry(discard())
	d := NewDispatcher(4, 16, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	s := NewOrderSession(eng, reg, discard())
	if err := d.Post(ctx, Completion{Session: s, Event: Event{Kind: EvMessage, NewOrder: orderReq(1, domain.SideBuy, 10, 100)}}); err != nil {
		t.Fatalf("post: %v", err)
	}

	select {
	case <-s.Gate():
	case <-time.After(2 * time.Second):
		t.Fatal("completion never processed")
	}
	got := drainReports(s.Reports())
	if len(got) != 1 || got[0].Status != domain.StatusOrderAccept {
		t.Fatalf("expected accept, got %+v", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}
