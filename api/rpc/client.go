package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// BuildliServiceClient is the client API for the buildli service
type BuildliServiceClient interface {
	Query(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[QueryResponse], error)
	BugSolve(ctx context.Context, in *BugSolveRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[BugSolveResponse], error)
	IndexStatus(ctx context.Context, in *IndexStatusRequest, opts ...grpc.CallOption) (*IndexStatusResponse, error)
}

type buildliServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewBuildliServiceClient creates a client on an existing connection. All
// calls are made with the JSON content-subtype.
func NewBuildliServiceClient(cc grpc.ClientConnInterface) BuildliServiceClient {
	return &buildliServiceClient{cc: cc}
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func (c *buildliServiceClient) Query(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[QueryResponse], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], queryFullMethod, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[QueryRequest, QueryResponse]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *buildliServiceClient) BugSolve(ctx context.Context, in *BugSolveRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[BugSolveResponse], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[1], bugSolveFullMethod, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[BugSolveRequest, BugSolveResponse]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *buildliServiceClient) IndexStatus(ctx context.Context, in *IndexStatusRequest, opts ...grpc.CallOption) (*IndexStatusResponse, error) {
	out := new(IndexStatusResponse)
	if err := c.cc.Invoke(ctx, indexStatusFullMethod, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}
