package localfs

import (
	"os"
	"testing"

	"github.com/tonkeeper/2fa-extension/journal"
	"github.com/tonkeeper/2fa-extension/journal/archivetest"
)

func TestLocalFSConformance(t *testing.T) {
	archivetest.Run(t, func(t *testing.T) journal.Archive {
		t.Helper()
		a, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		return a
	})
}

func TestLocalFSRejectsMutation(t *testing.T) {
	a, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	orig := []byte("snapshot v1")
	id, err := a.Put(orig)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	path := a.pathFor(id)
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("tampered"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := a.Get(id); err != journal.ErrCIDMismatch {
		t.Fatalf("Get after tamper: got %v want %v", err, journal.ErrCIDMismatch)
	}
	if _, err := a.Put(orig); err != journal.ErrImmutable {
		t.Fatalf("Put after tamper: got %v want %v", err, journal.ErrImmutable)
	}
}

func TestLocalFSRegistry(t *testing.T) {
	dir := t.TempDir()
	a, closeFn, err := journal.Open("localfs", journal.UsageDaemon, map[string]string{"dir": dir})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if closeFn != nil {
		t.Fatalf("expected no close function")
	}
	if _, err := a.Put([]byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, _, err := journal.Open("localfs", journal.UsageDaemon, nil); err == nil {
		t.Fatalf("expected missing dir error")
	}
}
