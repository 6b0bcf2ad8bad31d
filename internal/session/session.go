package session

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/YangLiliang/minivenue/internal/domain"
	"github.com/YangLiliang/minivenue/internal/engine"
	"github.com/YangLiliang/minivenue/internal/metrics"
)

// Kind tags the session variant. The dispatcher switches on it to run the
// right transition logic; each kind carries its own state struct.
type Kind int

const (
	KindNewOrder Kind = iota
	KindQuery
	KindFeed
)

func (k Kind) String() string {
	switch k {
	case KindNewOrder:
		return "new_order"
	case KindQuery:
		return "query_order"
	case KindFeed:
		return "broadcast_feed"
	default:
		return "unknown"
	}
}

// State is the session lifecycle position.
type State int

const (
	StateCreated State = iota
	StateActive
	StateFinished
)

// EventKind discriminates completion events.
type EventKind int

const (
	// EvActivate starts a server-stream session (query, feed).
	EvActivate EventKind = iota
	// EvMessage carries one inbound new-order request.
	EvMessage
	// EvFinish ends the session: client EOF, transport failure, or the
	// natural end of a snapshot stream.
	EvFinish
)

// Event is one completion delivered to a session through the dispatcher.
type Event struct {
	Kind     EventKind
	NewOrder *domain.NewOrderRequest
}

// Session is one live RPC exchange, modeled as a state machine driven
// exclusively by completion events. The transport guarantees at most one
// outstanding completion per session, so Step never runs concurrently
// with itself; mu guards state against observation from other goroutines.
type Session struct {
	ID   uuid.UUID
	Kind Kind

	mu    sync.Mutex
	state State

	eng  *engine.Matcher
	reg  *Registry
	log  *slog.Logger
	gate chan struct{}

	// Exactly one of these is set, per Kind.
	reports  *Outbox[domain.ExecutionReport] // new-order and feed streams
	snapshot *Outbox[domain.OrderReport]     // query streams
}

// NewOrderSession creates a bidi new-order session.
func NewOrderSession(eng *engine.Matcher, reg *Registry, logger *slog.Logger) *Session {
	s := newSession(KindNewOrder, eng, reg, logger)
	s.reports = NewOutbox[domain.ExecutionReport]()
	return s
}

// QuerySession creates a server-stream snapshot session.
func QuerySession(eng *engine.Matcher, logger *slog.Logger) *Session {
	s := newSession(KindQuery, eng, nil, logger)
	s.snapshot = NewOutbox[domain.OrderReport]()
	return s
}

// FeedSession creates a server-stream broadcast-feed session.
func FeedSession(eng *engine.Matcher, reg *Registry, logger *slog.Logger) *Session {
	s := newSession(KindFeed, eng, reg, logger)
	s.reports = NewOutbox[domain.ExecutionReport]()
	return s
}

func newSession(kind Kind, eng *engine.Matcher, reg *Registry, logger *slog.Logger) *Session {
	id := uuid.New()
	metrics.ActiveSessions.Inc()
	return &Session{
		ID:   id,
		Kind: kind,
		eng:  eng,
		reg:  reg,
		log:  logger.With(slog.String("session_id", id.String()), slog.String("kind", kind.String())),
		gate: make(chan struct{}, 1),
	}
}

// Reports exposes the execution-report outbox of a new-order or feed
// session for the transport to drain.
func (s *Session) Reports() *Outbox[domain.ExecutionReport] { return s.reports }

// Snapshot exposes the query session's outbox.
func (s *Session) Snapshot() *Outbox[domain.OrderReport] { return s.snapshot }

// Gate is signalled once per processed completion. The transport waits on
// it before posting the session's next read, keeping at most one
// completion outstanding per session.
func (s *Session) Gate() <-chan struct{} { return s.gate }

// State returns the lifecycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Step runs one state transition. Called only from dispatcher workers.
func (s *Session) Step(ev Event) {
	s.mu.Lock()
	if s.state == StateFinished {
		s.mu.Unlock()
		return
	}
	if s.state == StateCreated {
		s.state = StateActive
	}
	if ev.Kind == EvFinish {
		s.state = StateFinished
	}
	s.mu.Unlock()

	switch ev.Kind {
	case EvFinish:
		s.finish()
	case EvMessage:
		if s.Kind == KindNewOrder && ev.NewOrder != nil {
			s.stepNewOrder(ev.NewOrder)
		}
	case EvActivate:
		switch s.Kind {
		case KindQuery:
			s.stepQuery()
		case KindFeed:
			s.stepFeed()
		}
	}

	select {
	case s.gate <- struct{}{}:
	default:
	}
}

// stepNewOrder validates and creates the order, registers its outbox so
// later asynchronous events can find this stream, then runs the match and
// routes every fill through the registry. The session's own reports land
// back in its outbox via its registration. A failed push means the client
// disconnected mid-step; the accepted order must still match and rest or
// retire, so the match runs regardless and routing absorbs the dead owner.
func (s *Session) stepNewOrder(req *domain.NewOrderRequest) {
	orderID, report := s.eng.Create(req)
	if orderID == 0 {
		if err := s.reports.Push(report); err != nil {
			s.log.Debug("dropped reject report, session gone")
		}
		return
	}

	s.reg.Register(orderID, s.reports)
	if err := s.reports.Push(report); err != nil {
		s.log.Debug("dropped accept report, session gone",
			slog.Uint64("order_id", orderID))
	}
	for _, routed := range s.eng.Match(orderID) {
		s.reg.Route(routed.OrderID, routed.Report)
	}
}

// stepQuery snapshots the resting book once and queues every element; the
// transport streams them out one write at a time and closes.
func (s *Session) stepQuery() {
	for _, rep := range s.eng.Query() {
		if err := s.snapshot.Push(rep); err != nil {
			return
		}
	}
	s.snapshot.Close()
}

// stepFeed drains the buffered simulated-fill reports. Each one is routed
// to the order's owning session and also echoed on this stream.
func (s *Session) stepFeed() {
	for _, rep := range s.eng.DrainFeed() {
		s.reg.Route(rep.OrderID, rep)
		if err := s.reports.Push(rep); err != nil {
			return
		}
	}
	s.reports.Close()
}

func (s *Session) finish() {
	if s.reports != nil {
		s.reports.Close()
	}
	if s.snapshot != nil {
		s.snapshot.Close()
	}
	metrics.ActiveSessions.Dec()
	s.log.Debug("session finished")
}
