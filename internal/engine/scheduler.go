package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/YangLiliang/minivenue/internal/domain"
)

// taskKey orders scheduled fills by enqueue time, then order id. Including
// the order id keeps keys unique when two orders are enqueued in the same
// millisecond.
type taskKey struct {
	ts      int64 // milliseconds since the epoch
	orderID uint64
}

func taskLess(a, b taskKey) bool {
	if a.ts != b.ts {
		return a.ts < b.ts
	}
	return a.orderID < b.orderID
}

// Scheduler drips synthetic market activity onto resting orders. Every
// resting order has at most one scheduled task; once a task has sat in the
// queue for the dwell duration, the scheduler fires the fill callback and,
// if the order survived with quantity left, re-enqueues it with a fresh
// timestamp. The queue is an ordered map keyed by (timestamp, orderID)
// with an id-keyed side index so cancels remove tasks in O(log n).
type Scheduler struct {
	interval time.Duration
	dwell    time.Duration
	fill     func(orderID uint64) bool // true = reschedule
	logger   *slog.Logger

	mu      sync.Mutex
	tasks   *btree.BTreeG[taskKey]
	byOrder map[uint64]taskKey
}

// NewScheduler creates a Scheduler that polls every interval and fires
// tasks older than dwell through fill.
func NewScheduler(interval, dwell time.Duration, fill func(uint64) bool, logger *slog.Logger) *Scheduler {
	const degree = 32
	return &Scheduler{
		interval: interval,
		dwell:    dwell,
		fill:     fill,
		logger:   logger,
		tasks:    btree.NewG[taskKey](degree, taskLess),
		byOrder:  make(map[uint64]taskKey),
	}
}

// Add enqueues a scheduled fill for the order, stamped now. If the order
// already has a task the old one is replaced, preserving the at-most-one
// invariant.
func (s *Scheduler) Add(orderID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byOrder[orderID]; ok {
		s.tasks.Delete(old)
	}
	key := taskKey{ts: domain.Stamp(), orderID: orderID}
	s.tasks.ReplaceOrInsert(key)
	s.byOrder[orderID] = key
}

// Remove drops the order's scheduled task, if any.
func (s *Scheduler) Remove(orderID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.byOrder[orderID]; ok {
		s.tasks.Delete(key)
		delete(s.byOrder, orderID)
	}
}

// TaskCount returns the number of outstanding scheduled fills.
func (s *Scheduler) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byOrder)
}

// Start launches the background polling goroutine. It stops when ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(domain.Stamp())
			}
		}
	}()
}

// Tick dequeues every task whose age has reached the dwell threshold and
// fires the fill callback for each, re-enqueueing orders that report
// remaining quantity. Due tasks are collected under the lock and fired
// outside it, since the callback reaches back into the scheduler.
func (s *Scheduler) Tick(now int64) {
	var due []uint64
	s.mu.Lock()
	for {
		head, ok := s.tasks.Min()
		if !ok || now-head.ts < s.dwell.Milliseconds() {
			break
		}
		s.tasks.Delete(head)
		delete(s.byOrder, head.orderID)
		due = append(due, head.orderID)
	}
	s.mu.Unlock()

	for _, orderID := range due {
		if s.fill(orderID) {
			s.Add(orderID)
		} else if s.logger != nil {
			s.logger.Debug("scheduled fill retired order", slog.Uint64("order_id", orderID))
		}
	}
}
