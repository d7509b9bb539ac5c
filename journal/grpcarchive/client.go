package grpcarchive

import (
	"context"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/tonkeeper/2fa-extension/internal/grpcconn"
	"github.com/tonkeeper/2fa-extension/journal"
)

// Client implements journal.Archive against a remote archive service.
type Client struct {
	cc     *grpc.ClientConn
	client ArchiveClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

var _ journal.Archive = (*Client)(nil)

// DialOptions configures Dial.
type DialOptions = grpcconn.Options

// Dial connects to an archive service at target.
func Dial(target string, opts DialOptions) (*Client, error) {
	cc, err := grpcconn.Dial(target, opts)
	if err != nil {
		return nil, err
	}
	return NewClient(cc), nil
}

// NewClient wraps an existing connection.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc, client: NewArchiveClient(cc)}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) Put(b []byte) (cid.Cid, error) { return c.PutContext(context.Background(), b) }

func (c *Client) Get(id cid.Cid) ([]byte, error) { return c.GetContext(context.Background(), id) }

func (c *Client) Has(id cid.Cid) bool {
	ok, err := c.HasContext(context.Background(), id)
	return err == nil && ok
}

// PutContext stores b remotely and checks that the service addressed it
// the way journal.CIDOf does.
func (c *Client) PutContext(ctx context.Context, b []byte) (cid.Cid, error) {
	want, err := journal.CIDOf(b)
	if err != nil {
		return cid.Undef, err
	}
	ctx, cancel := grpcconn.CallContext(ctx, c.Timeout)
	defer cancel()
	reply, err := c.client.Put(ctx, wrapperspb.Bytes(b))
	if err != nil {
		return cid.Undef, fromStatus(err)
	}
	id, err := cid.Decode(reply.GetValue())
	if err != nil || !id.Defined() {
		return cid.Undef, journal.ErrInvalidCID
	}
	if !id.Equals(want) {
		return cid.Undef, journal.ErrCIDMismatch
	}
	return id, nil
}

// GetContext fetches id and verifies the bytes against it.
func (c *Client) GetContext(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, journal.ErrInvalidCID
	}
	ctx, cancel := grpcconn.CallContext(ctx, c.Timeout)
	defer cancel()
	reply, err := c.client.Get(ctx, wrapperspb.String(id.String()))
	if err != nil {
		return nil, fromStatus(err)
	}
	b := reply.GetValue()
	if err := journal.Verify(id, b); err != nil {
		return nil, err
	}
	return b, nil
}

// HasContext reports whether the service holds id. Unlike Has it surfaces
// transport errors.
func (c *Client) HasContext(ctx context.Context, id cid.Cid) (bool, error) {
	if !id.Defined() {
		return false, nil
	}
	ctx, cancel := grpcconn.CallContext(ctx, c.Timeout)
	defer cancel()
	reply, err := c.client.Has(ctx, wrapperspb.String(id.String()))
	if err != nil {
		return false, fromStatus(err)
	}
	return reply.GetValue(), nil
}

// Entry fetches every record of e, keyed by kind.
func (c *Client) Entry(e journal.Entry) (map[journal.Kind][]byte, error) {
	return journal.New(c).LoadEntry(e)
}
