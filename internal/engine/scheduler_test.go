package engine

import (
	"testing"
	"time"

	"github.com/YangLiliang/minivenue/internal/domain"
)

func TestSchedulerFiresAfterDwell(t *testing.T) {
	var fired []uint64
	s := NewScheduler(100*time.Millisecond, 3*time.Second, func(id uint64) bool {
		fired = append(fired, id)
		return false
	}, nil)

	s.Add(7)
	base := domain.Stamp()

	s.Tick(base + 100)
	if len(fired) != 0 {
		t.Fatalf("task fired before dwell elapsed: %v", fired)
	}

	s.Tick(base + 3001)
	if len(fired) != 1 || fired[0] != 7 {
		t.Fatalf("expected order 7 fired once, got %v", fired)
	}
	if s.TaskCount() != 0 {
		t.Errorf("expected empty queue, got %d tasks", s.TaskCount())
	}
}

func TestSchedulerReschedulesOnPartialFill(t *testing.T) {
	calls := 0
	s := NewScheduler(100*time.Millisecond, 3*time.Second, func(id uint64) bool {
		calls++
		return calls < 3
	}, nil)

	s.Add(1)
	for i := 0; i < 3; i++ {
		s.Tick(domain.Stamp() + 3001)
	}

	if calls != 3 {
		t.Errorf("expected 3 fills, got %d", calls)
	}
	if s.TaskCount() != 0 {
		t.Errorf("expected queue drained after final fill, got %d", s.TaskCount())
	}
}

func TestSchedulerRemoveCancelsTask(t *testing.T) {
	var fired []uint64
	s := NewScheduler(100*time.Millisecond, 3*time.Second, func(id uint64) bool {
		fired = append(fired, id)
		return false
	}, nil)

	s.Add(1)
	s.Add(2)
	s.Remove(1)

	s.Tick(domain.Stamp() + 3001)
	if len(fired) != 1 || fired[0] != 2 {
		t.Errorf("expected only order 2 fired, got %v", fired)
	}
}

func TestSchedulerAddReplacesExistingTask(t *testing.T) {
	s := NewScheduler(100*time.Millisecond, 3*time.Second, func(uint64) bool { return false }, nil)

	s.Add(5)
	s.Add(5)
	if s.TaskCount() != 1 {
		t.Fatalf("expected 1 task after duplicate add, got %d", s.TaskCount())
	}

	fired := 0
	s.fill = func(uint64) bool { fired++; return false }
	s.Tick(domain.Stamp() + 3001)
	if fired != 1 {
		t.Errorf("expected exactly one fire, got %d", fired)
	}
}

func TestSchedulerFiresInEnqueueOrder(t *testing.T) {
	var fired []uint64
	s := NewScheduler(100*time.Millisecond, 3*time.Second, func(id uint64) bool {
		fired = append(fired, id)
		return false
	}, nil)

	for id := uint64(1); id <= 5; id++ {
		s.Add(id)
	}
	s.Tick(domain.Stamp() + 3001)

	if len(fired) != 5 {
		t.Fatalf("expected 5 fires, got %d", len(fired))
	}
	for i, id := range fired {
		if id != uint64(i+1) {
			t.Fatalf("fired out of order: %v", fired)
		}
	}
}
