package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/YangLiliang/minivenue/internal/domain"
)

var sendMessageStreamDesc = &grpc.StreamDesc{
	StreamName:    "PushSendMessage",
	ServerStreams: true,
}

// FeedClient opens broadcast-feed streams against the venue, used by the
// loopback pump to flush buffered simulated-fill reports.
type FeedClient struct {
	conn *grpc.ClientConn
}

func NewFeedClient(conn *grpc.ClientConn) *FeedClient {
	return &FeedClient{conn: conn}
}

// OpenFeed issues one PushSendMessage request and returns the report
// stream to read until EOF.
func (c *FeedClient) OpenFeed(ctx context.Context) (*FeedStream, error) {
	cs, err := c.conn.NewStream(ctx, sendMessageStreamDesc, methodSendMessage,
		grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, err
	}
	if err := cs.SendMsg(&domain.SendMessageRequest{Time: domain.Now()}); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return &FeedStream{cs}, nil
}

// FeedStream is the client side of one broadcast-feed exchange.
type FeedStream struct {
	grpc.ClientStream
}

func (s *FeedStream) Recv() (*domain.ExecutionReport, error) {
	rep := new(domain.ExecutionReport)
	if err := s.RecvMsg(rep); err != nil {
		return nil, err
	}
	return rep, nil
}
