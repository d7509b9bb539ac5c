package grpcarchive

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/tonkeeper/2fa-extension/journal"
	"github.com/tonkeeper/2fa-extension/journal/archivetest"
	"github.com/tonkeeper/2fa-extension/journal/localfs"
)

func serve(t *testing.T, a journal.Archive) *Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterArchiveServer(srv, &Server{Archive: a})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close() })
	c := NewClient(cc)
	c.Timeout = 2 * time.Second
	return c
}

func TestGRPCArchiveConformance(t *testing.T) {
	archivetest.Run(t, func(t *testing.T) journal.Archive {
		return serve(t, journal.NewMemory())
	})
}

func TestGRPCArchiveOverLocalFS(t *testing.T) {
	fs, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	c := serve(t, fs)

	payload := []byte("receipt over grpc")
	id, err := c.Put(payload)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !fs.Has(id) {
		t.Fatalf("expected record in backing archive")
	}
	got, err := c.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestGRPCBackendRequiresTarget(t *testing.T) {
	if _, _, err := journal.Open("grpc", journal.UsageCLI, map[string]string{}); err == nil {
		t.Fatalf("expected missing target error")
	}
}

func TestGRPCEntryByKind(t *testing.T) {
	backing := journal.NewMemory()
	c := serve(t, backing)

	e, err := journal.New(backing).Record([]byte("req"), []byte("snap"), []byte("rcpt"))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := c.Entry(e)
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	if string(got[journal.KindSnapshot]) != "snap" || len(got) != 3 {
		t.Fatalf("unexpected entry records: %q", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.HasContext(ctx, e.Request); err == nil {
		t.Fatalf("expected cancelled HasContext to fail")
	}
	if ok, err := c.HasContext(context.Background(), e.Request); err != nil || !ok {
		t.Fatalf("HasContext = %v, %v", ok, err)
	}
	if _, err := c.PutContext(ctx, []byte("late")); err == nil {
		t.Fatalf("expected cancelled PutContext to fail")
	}
}
