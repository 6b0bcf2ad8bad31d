package engine

import (
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/YangLiliang/minivenue/internal/domain"
	"github.com/YangLiliang/minivenue/internal/metrics"
	"github.com/YangLiliang/minivenue/internal/store"
)

// RoutedReport pairs an execution report with the order id whose stream
// owns it. OrderID 0 means "the session that triggered this"; anything
// else is resolved through the notification registry.
type RoutedReport struct {
	OrderID uint64
	Report  domain.ExecutionReport
}

// Matcher is the matching engine: it owns order acceptance, the crossing
// walk, cancellation, query snapshots, and the synthetic fills fed to it
// by its Scheduler. One Matcher instance serves the whole process; it is
// constructed at startup and handed to every session.
type Matcher struct {
	store   *store.OrderStore
	clients *store.ClientIndex
	books   *BookIndex
	feed    *store.FeedBuffer
	sched   *Scheduler
	logger  *slog.Logger
	nextID  atomic.Uint64
}

// NewMatcher creates a Matcher with its simulated-fill Scheduler attached;
// the caller starts the scheduler with Scheduler().Start.
func NewMatcher(
	st *store.OrderStore,
	clients *store.ClientIndex,
	books *BookIndex,
	feed *store.FeedBuffer,
	pollInterval, dwell time.Duration,
	logger *slog.Logger,
) *Matcher {
	m := &Matcher{
		store:   st,
		clients: clients,
		books:   books,
		feed:    feed,
		logger:  logger,
	}
	m.sched = NewScheduler(pollInterval, dwell, m.SimulatedFill, logger)
	return m
}

// Scheduler returns the matcher's simulated-fill scheduler.
func (m *Matcher) Scheduler() *Scheduler {
	return m.sched
}

// Create validates a new-order request, runs self-trade prevention, and on
// success assigns the next order id and inserts the order into the store
// and the client index, lazily creating the instrument's book. The report
// is ORDER_ACCEPT with the assigned id, or ORDER_REJECT with id 0 and the
// first failing check's message.
func (m *Matcher) Create(req *domain.NewOrderRequest) (uint64, domain.ExecutionReport) {
	report := domain.RejectReport(req)

	if err := req.Validate(); err != nil {
		report.ErrorMessage = err.Error()
		report.Time = domain.Now()
		metrics.OrdersRejected.Inc()
		return 0, report
	}
	if m.clients.WouldSelfTrade(req.ClientID, req.Side, req.Price) {
		report.ErrorMessage = domain.ErrImproperMatch.Error()
		report.Time = domain.Now()
		metrics.OrdersRejected.Inc()
		m.logger.Info("self-trade rejected",
			slog.Uint64("client_id", req.ClientID),
			slog.String("instrument_id", req.InstrumentID),
		)
		return 0, report
	}

	orderID := m.nextID.Add(1)
	order := domain.Order{
		OrderID:      orderID,
		ClientID:     req.ClientID,
		InstrumentID: req.InstrumentID,
		Side:         req.Side,
		Kind:         req.Kind,
		Price:        req.Price,
		OrigQty:      req.Qty,
		RemainingQty: req.Qty,
		SubmittedAt:  time.Now(),
	}

	m.books.GetOrCreate(req.InstrumentID)
	m.store.Insert(order)
	m.clients.Add(order.ClientID, order.Side, order.Price, orderID)

	report.Status = domain.StatusOrderAccept
	report.OrderID = orderID
	report.Time = domain.Now()
	metrics.OrdersAccepted.Inc()
	return orderID, report
}

// Match runs the crossing walk for a freshly accepted order and then
// either rests it (book side set + scheduled fill) or, if it filled
// completely, removes it. Two FILL reports per trade are returned, each
// addressed to the order id whose stream should carry it.
func (m *Matcher) Match(orderID uint64) []RoutedReport {
	incoming, ok := m.store.Get(orderID)
	if !ok {
		return nil
	}

	var reports []RoutedReport
	if book, ok := m.books.Lookup(incoming.InstrumentID); ok {
		reports = m.cross(incoming, book)
	}

	// Rest or retire: the walk may have consumed the whole order.
	if cur, ok := m.store.Get(orderID); ok {
		if cur.RemainingQty > 0 {
			book := m.books.GetOrCreate(cur.InstrumentID)
			book.side(cur.Side).Add(orderID)
			m.sched.Add(orderID)
		} else {
			m.retire(cur, false)
		}
	}
	return reports
}

// cross walks the opposite side's resting set in ascending order-id order
// while the incoming order still has quantity. Stale or exhausted entries
// are removed in passing; a trade fires only when the two orders belong to
// different clients and the prices cross (sell <= buy). The side's mutex
// is held for the whole walk, so matching against one instrument side is
// serialized.
func (m *Matcher) cross(incoming domain.Order, book *instrumentBook) []RoutedReport {
	opp := book.side(incoming.Side.Opposite())
	opp.mu.Lock()
	defer opp.mu.Unlock()

	var reports []RoutedReport
	for _, candidateID := range opp.snapshot() {
		in, ok := m.store.Get(incoming.OrderID)
		if !ok || in.RemainingQty == 0 {
			break
		}

		cand, ok := m.store.Get(candidateID)
		if !ok || cand.RemainingQty == 0 {
			// Exhausted by a concurrent fill but never unhooked; sweep it.
			// The book entry goes directly here since the side lock is
			// already held.
			opp.ids.Delete(candidateID)
			if ok {
				m.retire(cand, false)
			}
			continue
		}
		if cand.ClientID == in.ClientID || !crosses(in, cand) {
			continue
		}

		// Suspend the counterparty's scheduled fill while trading on it.
		m.sched.Remove(candidateID)

		sellID, buyID := incoming.OrderID, candidateID
		if in.Side == domain.SideBuy {
			sellID, buyID = candidateID, incoming.OrderID
		}
		if exec, ok := m.store.Execute(sellID, buyID); ok {
			sellRep, buyRep := fillReports(exec, in.Side)
			reports = append(reports,
				RoutedReport{OrderID: sellID, Report: sellRep},
				RoutedReport{OrderID: buyID, Report: buyRep},
			)
			metrics.Trades.Inc()
		}

		// The trade may have exhausted the counterparty.
		if cand, ok := m.store.Get(candidateID); !ok || cand.RemainingQty == 0 {
			opp.ids.Delete(candidateID)
			if ok {
				m.retire(cand, false)
			}
		} else {
			m.sched.Add(candidateID)
		}
	}
	return reports
}

// crosses reports whether the incoming order and a resting counterparty
// are price-compatible: the sell price must not exceed the buy price.
func crosses(incoming, resting domain.Order) bool {
	if incoming.Side == domain.SideSell {
		return incoming.Price.LessThanOrEqual(resting.Price)
	}
	return resting.Price.LessThanOrEqual(incoming.Price)
}

// fillReports builds the two per-side FILL reports for one execution. The
// fill price is the resting order's price: the buy side's price when the
// incoming order was a sell, the sell side's otherwise. Quantities are the
// pre-trade remainders captured by the execution.
func fillReports(exec store.TradeExec, incomingSide domain.Side) (sell, buy domain.ExecutionReport) {
	fillPrice := exec.Sell.Price
	if incomingSide == domain.SideSell {
		fillPrice = exec.Buy.Price
	}
	now := domain.Now()

	sell = domain.ExecutionReport{
		Status:       domain.StatusFill,
		ClientID:     exec.Sell.ClientID,
		OrderID:      exec.Sell.OrderID,
		InstrumentID: exec.Sell.InstrumentID,
		OrderQty:     exec.Sell.RemainingQty,
		OrderPrice:   exec.Sell.Price,
		FillQty:      exec.Qty,
		FillPrice:    fillPrice,
		LeaveQty:     exec.Sell.RemainingQty - exec.Qty,
		Time:         now,
	}
	buy = domain.ExecutionReport{
		Status:       domain.StatusFill,
		ClientID:     exec.Buy.ClientID,
		OrderID:      exec.Buy.OrderID,
		InstrumentID: exec.Buy.InstrumentID,
		OrderQty:     exec.Buy.RemainingQty,
		OrderPrice:   exec.Buy.Price,
		FillQty:      exec.Qty,
		FillPrice:    fillPrice,
		LeaveQty:     exec.Buy.RemainingQty - exec.Qty,
		Time:         now,
	}
	return sell, buy
}

// Cancel removes an order from the scheduler and every index. An unknown
// id, or one that a concurrent fill-to-zero deleted first, yields
// CANCEL_REJECT; otherwise the report is CANCELED carrying the order's
// fields as of the cancel.
func (m *Matcher) Cancel(req *domain.CancelOrderRequest) domain.ExecutionReport {
	report := domain.CancelRejectReport(req)

	info, ok := m.store.Get(req.OrderID)
	if !ok {
		report.ErrorMessage = domain.ErrOrderNotFound.Error()
		report.Time = domain.Now()
		return report
	}

	if !m.store.Delete(req.OrderID) {
		// Lost the race against a fill that reached zero.
		report.ErrorMessage = domain.ErrOrderNotFound.Error()
		report.Time = domain.Now()
		return report
	}
	if book, ok := m.books.Lookup(info.InstrumentID); ok {
		book.side(info.Side).Remove(req.OrderID)
	}
	m.clients.Remove(info.ClientID, info.Side, info.Price, req.OrderID)
	m.sched.Remove(req.OrderID)

	report.Status = domain.StatusCanceled
	report.ClientID = info.ClientID
	report.InstrumentID = info.InstrumentID
	report.OrderQty = info.RemainingQty
	report.OrderPrice = info.Price
	report.LeaveQty = info.RemainingQty
	report.Time = domain.Now()
	metrics.Cancels.Inc()
	m.logger.Info("order canceled",
		slog.Uint64("order_id", req.OrderID),
		slog.Uint64("client_id", info.ClientID),
	)
	return report
}

// Query snapshots every resting order, ascending by order id. Read-only.
func (m *Matcher) Query() []domain.OrderReport {
	orders := m.store.All()
	reports := make([]domain.OrderReport, 0, len(orders))
	for _, o := range orders {
		reports = append(reports, domain.OrderReportOf(o))
	}
	sortReports(reports)
	return reports
}

// Lookup returns the resting order with the given id as a query report.
func (m *Matcher) Lookup(orderID uint64) (domain.OrderReport, bool) {
	o, ok := m.store.Get(orderID)
	if !ok {
		return domain.OrderReport{}, false
	}
	return domain.OrderReportOf(o), true
}

// SimulatedFill forces a synthetic partial fill on a resting order: half
// the remaining quantity rounded down to the nearest 100 units, or the
// whole remainder when that rounds to zero. The FILL report goes to the
// feed buffer for the next broadcast drain. Returns false when the order
// has vanished or just reached zero (the caller must not reschedule).
func (m *Matcher) SimulatedFill(orderID uint64) bool {
	before, fill, ok := m.store.ApplyFill(orderID, simFillQty)
	if !ok {
		return false
	}

	m.feed.Append(domain.ExecutionReport{
		Status:       domain.StatusFill,
		ClientID:     before.ClientID,
		OrderID:      orderID,
		InstrumentID: before.InstrumentID,
		OrderQty:     before.RemainingQty,
		OrderPrice:   before.Price,
		FillQty:      fill,
		FillPrice:    before.Price,
		LeaveQty:     before.RemainingQty - fill,
		Time:         domain.Now(),
	})
	metrics.SimulatedFills.Inc()

	if before.RemainingQty-fill == 0 {
		after := before
		after.RemainingQty = 0
		m.retire(after, true)
		return false
	}
	return true
}

// DrainFeed hands out the scheduler-generated reports buffered since the
// last broadcast-feed activation.
func (m *Matcher) DrainFeed() []domain.ExecutionReport {
	return m.feed.Drain()
}

// retire removes a finished order everywhere it is referenced: store, book
// side set, client index bucket. fromBook controls whether the book entry
// might exist (an order that filled completely on arrival never rested).
// Removal is tolerant of partially missing references, which happen when
// two paths race to retire the same order; the winner of the store delete
// does the index cleanup.
func (m *Matcher) retire(o domain.Order, fromBook bool) {
	if !m.store.Delete(o.OrderID) {
		return
	}
	if fromBook {
		if book, ok := m.books.Lookup(o.InstrumentID); ok {
			book.side(o.Side).Remove(o.OrderID)
		}
	}
	m.clients.Remove(o.ClientID, o.Side, o.Price, o.OrderID)
	m.sched.Remove(o.OrderID)
}

// simFillQty implements the synthetic fill sizing rule.
func simFillQty(remaining int64) int64 {
	half := remaining / 2
	fill := half - half%100
	if fill == 0 {
		fill = remaining
	}
	return fill
}

// sortReports orders query snapshots ascending by order id.
func sortReports(reports []domain.OrderReport) {
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].OrderID < reports[j].OrderID
	})
}
