package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/YangLiliang/minivenue/internal/metrics"
)

// Completion pairs a session with the event that resumes it.
type Completion struct {
	Session *Session
	Event   Event
}

// Dispatcher is the shared completion queue and its worker pool. Any
// worker may execute any session's next step; per-session serialization
// comes from the transport posting at most one completion per session at
// a time, so workers only contend on cross-session shared state.
type Dispatcher struct {
	queue   chan Completion
	workers int
	logger  *slog.Logger

	wg sync.WaitGroup
}

func NewDispatcher(workers, capacity int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:   make(chan Completion, capacity),
		workers: workers,
		logger:  logger,
	}
}

// Run starts the worker pool and blocks until ctx is cancelled and every
// worker has drained out.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("dispatcher starting", slog.Int("workers", d.workers))
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(ctx)
	}
	d.wg.Wait()
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-d.queue:
			metrics.QueueDepth.Dec()
			c.Session.Step(c.Event)
		}
	}
}

// Post enqueues a completion. Blocks while the queue is full; fails only
// when ctx ends first.
func (d *Dispatcher) Post(ctx context.Context, c Completion) error {
	select {
	case d.queue <- c:
		metrics.QueueDepth.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
