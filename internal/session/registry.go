package session

import (
	"log/slog"
	"sync"

	"github.com/YangLiliang/minivenue/internal/domain"
	"github.com/YangLiliang/minivenue/internal/metrics"
)

// Registry maps an order id to the outbox of the new-order session that
// accepted it, so asynchronously generated events (counterparty fills,
// simulated fills) reach the stream that owns the order. Entries are never
// removed; a session that has finished leaves a closed outbox behind, and
// routing to it degrades to a logged drop.
type Registry struct {
	mu     sync.RWMutex
	owners map[uint64]*Outbox[domain.ExecutionReport]
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		owners: make(map[uint64]*Outbox[domain.ExecutionReport]),
		logger: logger,
	}
}

// Register records the owning outbox for an order id. Called exactly once
// per accepted order, by the accepting session.
func (r *Registry) Register(orderID uint64, out *Outbox[domain.ExecutionReport]) {
	r.mu.Lock()
	r.owners[orderID] = out
	r.mu.Unlock()
}

// Resolve returns the owning outbox, if the order was ever registered.
func (r *Registry) Resolve(orderID uint64) (*Outbox[domain.ExecutionReport], bool) {
	r.mu.RLock()
	out, ok := r.owners[orderID]
	r.mu.RUnlock()
	return out, ok
}

// Route delivers a report to the order's owning session. A missing entry
// or a finished session drops the report with a diagnostic; the matching
// path never fails on delivery.
func (r *Registry) Route(orderID uint64, report domain.ExecutionReport) {
	out, ok := r.Resolve(orderID)
	if ok && out.Push(report) == nil {
		return
	}
	metrics.RoutedDrops.Inc()
	r.logger.Warn("dropped routed report, owning session gone",
		slog.Uint64("order_id", orderID),
		slog.String("status", string(report.Status)),
	)
}
