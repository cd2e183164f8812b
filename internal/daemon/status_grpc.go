package daemon

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The status service only exchanges well-known protobuf types, so its
// descriptor is declared here instead of being generated.

const (
	StatusServiceName = "goattach.v1.Status"

	pingMethod     = "/goattach.v1.Status/Ping"
	outcomesMethod = "/goattach.v1.Status/Outcomes"
	countsMethod   = "/goattach.v1.Status/Counts"
)

// StatusServer is the server side of goattach.v1.Status.
type StatusServer interface {
	Ping(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	// Outcomes takes a filter struct and returns journal entries as structs.
	Outcomes(context.Context, *structpb.Struct) (*structpb.ListValue, error)
	// Counts returns the lifetime outcome counters.
	Counts(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// StatusClient is the client side of goattach.v1.Status.
type StatusClient interface {
	Ping(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Outcomes(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.ListValue, error)
	Counts(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type statusClient struct {
	cc grpc.ClientConnInterface
}

// NewStatusClient wraps a connection.
func NewStatusClient(cc grpc.ClientConnInterface) StatusClient {
	return &statusClient{cc: cc}
}

func (c *statusClient) Ping(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, pingMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *statusClient) Outcomes(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, outcomesMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *statusClient) Counts(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, countsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RegisterStatusServer registers srv on s.
func RegisterStatusServer(s grpc.ServiceRegistrar, srv StatusServer) {
	s.RegisterService(&statusServiceDesc, srv)
}

func pingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatusServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: pingMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StatusServer).Ping(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func outcomesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatusServer).Outcomes(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: outcomesMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StatusServer).Outcomes(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func countsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatusServer).Counts(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: countsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StatusServer).Counts(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var statusServiceDesc = grpc.ServiceDesc{
	ServiceName: StatusServiceName,
	HandlerType: (*StatusServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: pingHandler},
		{MethodName: "Outcomes", Handler: outcomesHandler},
		{MethodName: "Counts", Handler: countsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "goattach/v1/status.proto",
}
