package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "srxmerge.v1.MergeService"

// MergeServiceServer is the server API. Requests and responses are
// google.protobuf.Struct values whose fields mirror the HTTP API bodies.
type MergeServiceServer interface {
	Merge(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Check(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetConfig(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EnterConfigure(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExitConfigure(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LoadConfig(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Commit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Rollback(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Compare(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchMerges(*structpb.Struct, grpc.ServerStream) error
}

type unaryFn func(MergeServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, fn unaryFn) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(MergeServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(srv.(MergeServiceServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(MergeServiceServer).WatchMerges(in, stream)
}

// ServiceDesc describes MergeService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MergeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Merge", MergeServiceServer.Merge),
		unary("Check", MergeServiceServer.Check),
		unary("GetConfig", MergeServiceServer.GetConfig),
		unary("EnterConfigure", MergeServiceServer.EnterConfigure),
		unary("ExitConfigure", MergeServiceServer.ExitConfigure),
		unary("LoadConfig", MergeServiceServer.LoadConfig),
		unary("Commit", MergeServiceServer.Commit),
		unary("Rollback", MergeServiceServer.Rollback),
		unary("Compare", MergeServiceServer.Compare),
	},
	Streams: []grpc.StreamDesc{{
		StreamName:    "WatchMerges",
		Handler:       watchHandler,
		ServerStreams: true,
	}},
	Metadata: "srxmerge/v1/merge.proto",
}

// Client calls MergeService over a connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes a unary method by name.
func (c *Client) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Merge merges document into base (or the active tree with use_active).
func (c *Client) Merge(ctx context.Context, base, document string, useActive bool) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{
		"base":       base,
		"document":   document,
		"use_active": useActive,
	})
	if err != nil {
		return nil, err
	}
	return c.Call(ctx, "Merge", in)
}

// WatchStream receives merge events.
type WatchStream struct {
	grpc.ClientStream
}

// Recv blocks for the next event.
func (w *WatchStream) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := w.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// WatchMerges subscribes to merge events. in may carry a "result" filter.
func (c *Client) WatchMerges(ctx context.Context, in *structpb.Struct) (*WatchStream, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], "/"+ServiceName+"/WatchMerges")
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &WatchStream{ClientStream: stream}, nil
}
