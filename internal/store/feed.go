package store

import (
	"sync"

	"github.com/YangLiliang/minivenue/internal/domain"
)

// FeedBuffer accumulates execution reports produced by the simulated-fill
// scheduler. They sit here until the next broadcast-feed activation drains
// them; nothing else ever reads the buffer.
type FeedBuffer struct {
	mu      sync.Mutex
	reports []domain.ExecutionReport
}

// NewFeedBuffer creates an empty FeedBuffer.
func NewFeedBuffer() *FeedBuffer {
	return &FeedBuffer{}
}

// Append queues one report for the next feed drain.
func (f *FeedBuffer) Append(r domain.ExecutionReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
}

// Drain removes and returns everything buffered so far, oldest first.
func (f *FeedBuffer) Drain() []domain.ExecutionReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.reports
	f.reports = nil
	return out
}

// Len returns the number of buffered reports.
func (f *FeedBuffer) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reports)
}
