package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/tonkeeper/2fa-extension/internal/grpcconn"
	"github.com/tonkeeper/2fa-extension/model"
	"github.com/tonkeeper/2fa-extension/wallet"
)

// Client talks to a remote guard service.
type Client struct {
	cc     *grpc.ClientConn
	client GuardClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

// DialOptions configures Dial.
type DialOptions = grpcconn.Options

// Dial connects to a guard service at target.
func Dial(target string, opts DialOptions) (*Client, error) {
	cc, err := grpcconn.Dial(target, opts)
	if err != nil {
		return nil, err
	}
	return NewClient(cc), nil
}

// NewClient wraps an existing connection.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc, client: NewGuardClient(cc)}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	return grpcconn.CallContext(parent, c.Timeout)
}

// Install submits owner's install message; origin is the account's proof
// that it sent payload (see wallet.SignOrigin).
func (c *Client) Install(ctx context.Context, owner string, payload []byte, origin wallet.Origin) (*model.InstallResult, error) {
	b, err := encodeWire(InstallRequest{Owner: owner, Payload: payload, Origin: origin})
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	reply, err := c.client.Install(ctx, wrapperspb.Bytes(b))
	if err != nil {
		return nil, fromStatus(err)
	}
	return decodeReply[model.InstallResult](reply)
}

// Submit sends a signed envelope for owner.
func (c *Client) Submit(ctx context.Context, owner string, raw []byte) (*model.SubmitResult, error) {
	return c.submit(ctx, SubmitRequest{Owner: owner, Envelope: raw})
}

// SubmitRelayed sends an envelope relayed through the protected account.
func (c *Client) SubmitRelayed(ctx context.Context, owner string, raw []byte, origin wallet.Origin) (*model.SubmitResult, error) {
	return c.submit(ctx, SubmitRequest{Owner: owner, Envelope: raw, Origin: &origin})
}

func (c *Client) submit(ctx context.Context, req SubmitRequest) (*model.SubmitResult, error) {
	b, err := encodeWire(req)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	reply, err := c.client.Submit(ctx, wrapperspb.Bytes(b))
	if err != nil {
		return nil, fromStatus(err)
	}
	return decodeReply[model.SubmitResult](reply)
}

func (c *Client) Status(ctx context.Context, owner string) (*model.GuardStatus, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	reply, err := c.client.Status(ctx, wrapperspb.String(owner))
	if err != nil {
		return nil, fromStatus(err)
	}
	return decodeReply[model.GuardStatus](reply)
}

func (c *Client) Counter(ctx context.Context, owner string) (uint64, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	reply, err := c.client.Counter(ctx, wrapperspb.String(owner))
	if err != nil {
		return 0, fromStatus(err)
	}
	return reply.GetValue(), nil
}

func (c *Client) EstimateFee(ctx context.Context, q model.FeeQuery) (*model.FeeEstimate, error) {
	b, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	reply, err := c.client.EstimateFee(ctx, wrapperspb.String(string(b)))
	if err != nil {
		return nil, fromStatus(err)
	}
	return decodeReply[model.FeeEstimate](reply)
}

func (c *Client) History(ctx context.Context, owner string) ([]model.HistoryEntry, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	reply, err := c.client.History(ctx, wrapperspb.String(owner))
	if err != nil {
		return nil, fromStatus(err)
	}
	out, err := decodeReply[[]model.HistoryEntry](reply)
	if err != nil {
		return nil, err
	}
	return *out, nil
}

// Export returns owner's history bundle.
func (c *Client) Export(ctx context.Context, owner string) ([]byte, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	reply, err := c.client.Export(ctx, wrapperspb.String(owner))
	if err != nil {
		return nil, fromStatus(err)
	}
	return reply.GetValue(), nil
}

func decodeReply[T any](reply *wrapperspb.StringValue) (*T, error) {
	out := new(T)
	if err := json.Unmarshal([]byte(reply.GetValue()), out); err != nil {
		return nil, fmt.Errorf("rpc: decode reply: %w", err)
	}
	return out, nil
}
