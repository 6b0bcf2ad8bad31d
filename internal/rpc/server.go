package rpc

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/YangLiliang/minivenue/internal/domain"
	"github.com/YangLiliang/minivenue/internal/engine"
	"github.com/YangLiliang/minivenue/internal/session"
)

// Server bridges the grpc transport to session state machines: its
// handler goroutines read requests, post completions to the dispatcher,
// and drain session outboxes onto the wire. Streamed order flow is
// stepped by dispatcher workers; cancel alone is synchronous
// process-and-respond on its handler goroutine.
type Server struct {
	eng    *engine.Matcher
	reg    *session.Registry
	disp   *session.Dispatcher
	logger *slog.Logger
}

func NewServer(eng *engine.Matcher, reg *session.Registry, disp *session.Dispatcher, logger *slog.Logger) *Server {
	return &Server{eng: eng, reg: reg, disp: disp, logger: logger}
}

// PushNewOrder runs one bidi order-entry session. The read loop posts one
// completion per inbound request and waits for the session's gate before
// reading again, so at most one completion per session is ever
// outstanding. The write loop drains the session outbox in FIFO order.
func (s *Server) PushNewOrder(stream NewOrderStream) error {
	ctx := stream.Context()
	sess := session.NewOrderSession(s.eng, s.reg, s.logger)

	go func() {
		defer s.finish(ctx, sess)
		for {
			req, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					s.logger.Debug("new-order read ended", slog.String("error", err.Error()))
				}
				return
			}
			ev := session.Event{Kind: session.EvMessage, NewOrder: req}
			if err := s.disp.Post(ctx, session.Completion{Session: sess, Event: ev}); err != nil {
				return
			}
			select {
			case <-sess.Gate():
			case <-ctx.Done():
				return
			}
		}
	}()

	return drainOutbox(ctx, sess.Reports(), func(rep domain.ExecutionReport) error {
		return stream.Send(&rep)
	})
}

// PushCancelOrder is synchronous: process and respond, no registry or
// dispatcher involvement.
func (s *Server) PushCancelOrder(_ context.Context, req *domain.CancelOrderRequest) (*domain.ExecutionReport, error) {
	rep := s.eng.Cancel(req)
	return &rep, nil
}

// PushQueryOrder streams one book snapshot and closes.
func (s *Server) PushQueryOrder(_ *domain.QueryOrderRequest, stream QueryOrderStream) error {
	ctx := stream.Context()
	sess := session.QuerySession(s.eng, s.logger)
	defer s.finish(ctx, sess)

	ev := session.Event{Kind: session.EvActivate}
	if err := s.disp.Post(ctx, session.Completion{Session: sess, Event: ev}); err != nil {
		return err
	}
	return drainOutbox(ctx, sess.Snapshot(), func(rep domain.OrderReport) error {
		return stream.Send(&rep)
	})
}

// PushSendMessage activates one broadcast-feed session: buffered
// simulated-fill reports are routed to their owners and echoed here.
func (s *Server) PushSendMessage(_ *domain.SendMessageRequest, stream SendMessageStream) error {
	ctx := stream.Context()
	sess := session.FeedSession(s.eng, s.reg, s.logger)
	defer s.finish(ctx, sess)

	ev := session.Event{Kind: session.EvActivate}
	if err := s.disp.Post(ctx, session.Completion{Session: sess, Event: ev}); err != nil {
		return err
	}
	return drainOutbox(ctx, sess.Reports(), func(rep domain.ExecutionReport) error {
		return stream.Send(&rep)
	})
}

// finish delivers EvFinish through the dispatcher, falling back to a
// direct step when the dispatcher is already gone, so the session always
// reaches FINISHED and its outbox always closes.
func (s *Server) finish(ctx context.Context, sess *session.Session) {
	ev := session.Event{Kind: session.EvFinish}
	if err := s.disp.Post(ctx, session.Completion{Session: sess, Event: ev}); err != nil {
		sess.Step(ev)
	}
}

// drainOutbox writes queued elements one at a time until the outbox is
// closed and empty, or the stream dies.
func drainOutbox[T any](ctx context.Context, out *session.Outbox[T], send func(T) error) error {
	for {
		if v, ok := out.Pop(); ok {
			if err := send(v); err != nil {
				return err
			}
			continue
		}
		if out.Drained() {
			return nil
		}
		select {
		case <-out.Notify():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
