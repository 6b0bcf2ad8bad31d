package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/YangLiliang/minivenue/internal/domain"
)

// ServiceName is the venue's RPC service as seen on the wire.
const ServiceName = "minivenue.OrderService"

const (
	methodNewOrder    = "/" + ServiceName + "/PushNewOrder"
	methodCancelOrder = "/" + ServiceName + "/PushCancelOrder"
	methodQueryOrder  = "/" + ServiceName + "/PushQueryOrder"
	methodSendMessage = "/" + ServiceName + "/PushSendMessage"
)

// OrderServiceServer is the server-side contract for the four venue
// operations.
type OrderServiceServer interface {
	PushNewOrder(NewOrderStream) error
	PushCancelOrder(context.Context, *domain.CancelOrderRequest) (*domain.ExecutionReport, error)
	PushQueryOrder(*domain.QueryOrderRequest, QueryOrderStream) error
	PushSendMessage(*domain.SendMessageRequest, SendMessageStream) error
}

// NewOrderStream is the bidi stream of PushNewOrder.
type NewOrderStream interface {
	Send(*domain.ExecutionReport) error
	Recv() (*domain.NewOrderRequest, error)
	grpc.ServerStream
}

// QueryOrderStream is the server stream of PushQueryOrder.
type QueryOrderStream interface {
	Send(*domain.OrderReport) error
	grpc.ServerStream
}

// SendMessageStream is the server stream of PushSendMessage.
type SendMessageStream interface {
	Send(*domain.ExecutionReport) error
	grpc.ServerStream
}

type newOrderStream struct{ grpc.ServerStream }

func (s *newOrderStream) Send(rep *domain.ExecutionReport) error { return s.SendMsg(rep) }

func (s *newOrderStream) Recv() (*domain.NewOrderRequest, error) {
	req := new(domain.NewOrderRequest)
	if err := s.RecvMsg(req); err != nil {
		return nil, err
	}
	return req, nil
}

type queryOrderStream struct{ grpc.ServerStream }

func (s *queryOrderStream) Send(rep *domain.OrderReport) error { return s.SendMsg(rep) }

type sendMessageStream struct{ grpc.ServerStream }

func (s *sendMessageStream) Send(rep *domain.ExecutionReport) error { return s.SendMsg(rep) }

func newOrderHandler(srv any, stream grpc.ServerStream) error {
	return srv.(OrderServiceServer).PushNewOrder(&newOrderStream{stream})
}

func cancelOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(domain.CancelOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServiceServer).PushCancelOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodCancelOrder}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderServiceServer).PushCancelOrder(ctx, req.(*domain.CancelOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func queryOrderHandler(srv any, stream grpc.ServerStream) error {
	in := new(domain.QueryOrderRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(OrderServiceServer).PushQueryOrder(in, &queryOrderStream{stream})
}

func sendMessageHandler(srv any, stream grpc.ServerStream) error {
	in := new(domain.SendMessageRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(OrderServiceServer).PushSendMessage(in, &sendMessageStream{stream})
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PushCancelOrder", Handler: cancelOrderHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "PushNewOrder", Handler: newOrderHandler, ServerStreams: true, ClientStreams: true},
		{StreamName: "PushQueryOrder", Handler: queryOrderHandler, ServerStreams: true},
		{StreamName: "PushSendMessage", Handler: sendMessageHandler, ServerStreams: true},
	},
}

// RegisterOrderService attaches the venue service to a grpc server.
func RegisterOrderService(r grpc.ServiceRegistrar, srv OrderServiceServer) {
	r.RegisterService(&serviceDesc, srv)
}
