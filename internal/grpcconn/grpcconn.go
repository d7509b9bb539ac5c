// Package grpcconn dials the plaintext gRPC connections shared by the guard
// and archive clients.
package grpcconn

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type Options struct {
	// Timeout bounds the initial dial when non-zero.
	Timeout time.Duration
	// MaxMsgBytes sets both send and receive limits when non-zero.
	MaxMsgBytes int
	// Extra dial options, e.g. a bufconn dialer in tests.
	Extra []grpc.DialOption
}

// DialOptions returns the grpc options for o.
func (o Options) DialOptions() []grpc.DialOption {
	out := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if o.MaxMsgBytes > 0 {
		out = append(out, grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(o.MaxMsgBytes),
			grpc.MaxCallSendMsgSize(o.MaxMsgBytes),
		))
	}
	return append(out, o.Extra...)
}

// Dial connects to target.
func Dial(target string, o Options) (*grpc.ClientConn, error) {
	ctx := context.Background()
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}
	return grpc.DialContext(ctx, target, o.DialOptions()...)
}

// CallContext derives a per-call context from parent, bounded by timeout
// when non-zero.
func CallContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if timeout > 0 {
		return context.WithTimeout(parent, timeout)
	}
	return context.WithCancel(parent)
}
