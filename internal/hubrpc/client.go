// Package hubrpc is the gRPC transport for the hub RPC surface consumed by
// the shuttle core: a resumable Subscribe stream and the five
// GetAll<Type>MessagesByFid paging calls. The hub RPC server itself is an
// external collaborator — this package only implements the client side,
// behind the shuttle.HubClient interface so the rest of the core never
// imports grpc directly.
package hubrpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/encoding"

	"github.com/comunifi/shuttle/pkg/shuttle"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

const (
	serviceName    = "/HubService"
	subscribeMethod = serviceName + "/Subscribe"
)

// inventoryMethods maps each reconcilable message type to the hub RPC it is
// paged through.
var inventoryMethods = map[shuttle.MessageType]string{
	shuttle.MessageTypeCastAdd:               serviceName + "/GetAllCastMessagesByFid",
	shuttle.MessageTypeReactionAdd:           serviceName + "/GetAllReactionMessagesByFid",
	shuttle.MessageTypeLinkAdd:               serviceName + "/GetAllLinkMessagesByFid",
	shuttle.MessageTypeVerificationAddAddress: serviceName + "/GetAllVerificationMessagesByFid",
	shuttle.MessageTypeUserDataAdd:           serviceName + "/GetAllUserDataMessagesByFid",
}

// Client implements shuttle.HubClient over a single grpc.ClientConn.
type Client struct {
	conn *grpc.ClientConn
}

// Dial opens a (lazily-connecting) gRPC connection to the hub.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodec{}.Name())))
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing hub: %v", shuttle.ErrTransportUnavailable, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Ready waits up to `timeout` for the transport to reach connectivity.Ready,
// driving the connection's state machine the way any grpc client does.
func (c *Client) Ready(ctx context.Context, timeout time.Duration) bool {
	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c.conn.Connect()

	for {
		state := c.conn.GetState()
		if state == connectivity.Ready {
			return true
		}
		if !c.conn.WaitForStateChange(deadline, state) {
			return c.conn.GetState() == connectivity.Ready
		}
	}
}

// Subscribe opens the resumable server-streaming subscription.
func (c *Client) Subscribe(ctx context.Context, req shuttle.SubscribeRequest) (shuttle.EventStream, error) {
	stream, err := c.conn.NewStream(ctx, &grpc.StreamDesc{ServerStreams: true}, subscribeMethod)
	if err != nil {
		return nil, fmt.Errorf("%w: opening subscribe stream: %v", shuttle.ErrTransportUnavailable, err)
	}

	if err := stream.SendMsg(&req); err != nil {
		return nil, fmt.Errorf("%w: sending subscribe request: %v", shuttle.ErrTransportUnavailable, err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("%w: closing subscribe send side: %v", shuttle.ErrTransportUnavailable, err)
	}

	return &eventStream{stream: stream}, nil
}

// GetAllMessagesByFid pages through one message type's inventory for one
// fid, dispatching to the RPC method registered for that type.
func (c *Client) GetAllMessagesByFid(ctx context.Context, req shuttle.FidPageRequest) (*shuttle.MessagesPage, error) {
	method, ok := inventoryMethods[req.Type]
	if !ok {
		return nil, fmt.Errorf("%w: message type %s is not reconcilable", shuttle.ErrInvalidMessage, req.Type)
	}

	var page shuttle.MessagesPage
	if err := c.conn.Invoke(ctx, method, &req, &page); err != nil {
		return nil, fmt.Errorf("%w: %v", shuttle.ErrTransportUnavailable, err)
	}
	return &page, nil
}

// eventStream adapts a *grpc.ClientStream to shuttle.EventStream.
type eventStream struct {
	stream grpc.ClientStream
}

func (s *eventStream) Recv(ctx context.Context) (*shuttle.HubEvent, error) {
	var ev shuttle.HubEvent
	if err := s.stream.RecvMsg(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *eventStream) Close() error {
	return s.stream.CloseSend()
}
