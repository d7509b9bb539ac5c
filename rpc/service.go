// Package rpc exposes the guard service over gRPC.
//
// Messages are protobuf well-known wrapper types; requests that need more
// than one field travel as canonical CBOR inside a BytesValue and structured
// replies as JSON model types inside a StringValue:
//
//	service Guard {
//	  rpc Install(google.protobuf.BytesValue) returns (google.protobuf.StringValue);
//	  rpc Submit(google.protobuf.BytesValue) returns (google.protobuf.StringValue);
//	  rpc Status(google.protobuf.StringValue) returns (google.protobuf.StringValue);
//	  rpc Counter(google.protobuf.StringValue) returns (google.protobuf.UInt64Value);
//	  rpc EstimateFee(google.protobuf.StringValue) returns (google.protobuf.StringValue);
//	  rpc History(google.protobuf.StringValue) returns (google.protobuf.StringValue);
//	  rpc Export(google.protobuf.StringValue) returns (google.protobuf.BytesValue);
//	}
//
// Rejections carry a google.rpc.ErrorInfo detail whose Reason is the guard
// rejection code.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "tfaguard.v1.Guard"

// GuardServer is the server API of the guard service.
type GuardServer interface {
	Install(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
	Submit(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
	Status(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	Counter(context.Context, *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error)
	EstimateFee(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	History(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	Export(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
}

// UnimplementedGuardServer can be embedded for forward compatibility.
type UnimplementedGuardServer struct{}

func (UnimplementedGuardServer) Install(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Install not implemented")
}
func (UnimplementedGuardServer) Submit(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Submit not implemented")
}
func (UnimplementedGuardServer) Status(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Status not implemented")
}
func (UnimplementedGuardServer) Counter(context.Context, *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error) {
	return nil, status.Error(codes.Unimplemented, "method Counter not implemented")
}
func (UnimplementedGuardServer) EstimateFee(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method EstimateFee not implemented")
}
func (UnimplementedGuardServer) History(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method History not implemented")
}
func (UnimplementedGuardServer) Export(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Export not implemented")
}

// RegisterGuardServer registers srv on s.
func RegisterGuardServer(s grpc.ServiceRegistrar, srv GuardServer) {
	s.RegisterService(&Guard_ServiceDesc, srv)
}

// GuardClient is the client API of the guard service.
type GuardClient interface {
	Install(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Submit(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Status(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Counter(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.UInt64Value, error)
	EstimateFee(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	History(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Export(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
}

type guardClient struct{ cc grpc.ClientConnInterface }

func NewGuardClient(cc grpc.ClientConnInterface) GuardClient { return &guardClient{cc: cc} }

func invoke[Out any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Out, error) {
	out := new(Out)
	if err := cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *guardClient) Install(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return invoke[wrapperspb.StringValue](ctx, c.cc, "Install", in, opts)
}

func (c *guardClient) Submit(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return invoke[wrapperspb.StringValue](ctx, c.cc, "Submit", in, opts)
}

func (c *guardClient) Status(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return invoke[wrapperspb.StringValue](ctx, c.cc, "Status", in, opts)
}

func (c *guardClient) Counter(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.UInt64Value, error) {
	return invoke[wrapperspb.UInt64Value](ctx, c.cc, "Counter", in, opts)
}

func (c *guardClient) EstimateFee(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return invoke[wrapperspb.StringValue](ctx, c.cc, "EstimateFee", in, opts)
}

func (c *guardClient) History(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return invoke[wrapperspb.StringValue](ctx, c.cc, "History", in, opts)
}

func (c *guardClient) Export(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return invoke[wrapperspb.BytesValue](ctx, c.cc, "Export", in, opts)
}

func unary[In any](name string, call func(GuardServer, context.Context, *In) (any, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(In)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(GuardServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(GuardServer), ctx, req.(*In))
			})
		},
	}
}

// Guard_ServiceDesc is the grpc.ServiceDesc of the guard service.
var Guard_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*GuardServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Install", func(s GuardServer, ctx context.Context, in *wrapperspb.BytesValue) (any, error) {
			return s.Install(ctx, in)
		}),
		unary("Submit", func(s GuardServer, ctx context.Context, in *wrapperspb.BytesValue) (any, error) {
			return s.Submit(ctx, in)
		}),
		unary("Status", func(s GuardServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return s.Status(ctx, in)
		}),
		unary("Counter", func(s GuardServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return s.Counter(ctx, in)
		}),
		unary("EstimateFee", func(s GuardServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return s.EstimateFee(ctx, in)
		}),
		unary("History", func(s GuardServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return s.History(ctx, in)
		}),
		unary("Export", func(s GuardServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return s.Export(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "guard.proto",
}
