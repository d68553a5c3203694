package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "buildli.BuildliService"

const (
	queryFullMethod       = "/" + ServiceName + "/Query"
	bugSolveFullMethod    = "/" + ServiceName + "/BugSolve"
	indexStatusFullMethod = "/" + ServiceName + "/IndexStatus"
)

// BuildliServiceServer is the server API for the buildli service
type BuildliServiceServer interface {
	// Query answers a question about the indexed code, streaming answer
	// chunks and finishing with a frame carrying references.
	Query(*QueryRequest, grpc.ServerStreamingServer[QueryResponse]) error

	// BugSolve analyzes a bug description against the index, streaming
	// analysis text and finishing with patch and affected files.
	BugSolve(*BugSolveRequest, grpc.ServerStreamingServer[BugSolveResponse]) error

	// IndexStatus reports index statistics
	IndexStatus(context.Context, *IndexStatusRequest) (*IndexStatusResponse, error)
}

// RegisterBuildliServiceServer registers the service implementation
func RegisterBuildliServiceServer(s grpc.ServiceRegistrar, srv BuildliServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func queryHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(QueryRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	out := &grpc.GenericServerStream[QueryRequest, QueryResponse]{ServerStream: stream}
	return srv.(BuildliServiceServer).Query(in, out)
}

func bugSolveHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(BugSolveRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	out := &grpc.GenericServerStream[BugSolveRequest, BugSolveResponse]{ServerStream: stream}
	return srv.(BuildliServiceServer).BugSolve(in, out)
}

func indexStatusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(IndexStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BuildliServiceServer).IndexStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: indexStatusFullMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(BuildliServiceServer).IndexStatus(ctx, req.(*IndexStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes the buildli gRPC service
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BuildliServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "IndexStatus",
			Handler:    indexStatusHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Query",
			Handler:       queryHandler,
			ServerStreams: true,
		},
		{
			StreamName:    "BugSolve",
			Handler:       bugSolveHandler,
			ServerStreams: true,
		},
	},
	Metadata: "buildli service (JSON codec)",
}
