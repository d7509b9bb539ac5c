// Package archivetest is a conformance suite for journal.Archive backends.
package archivetest

import (
	"bytes"
	"testing"

	"github.com/ipfs/go-cid"

	"github.com/tonkeeper/2fa-extension/journal"
)

// NewArchive returns a fresh, empty archive isolated from other tests.
type NewArchive func(t *testing.T) journal.Archive

// Run exercises the Archive contract against archives built by newArchive.
func Run(t *testing.T, newArchive NewArchive) {
	t.Helper()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		a := newArchive(t)
		want := []byte("guard snapshot bytes")

		id, err := a.Put(want)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		wantID, err := journal.CIDOf(want)
		if err != nil {
			t.Fatalf("CIDOf failed: %v", err)
		}
		if !id.Equals(wantID) {
			t.Fatalf("Put CID mismatch: got %s want %s", id, wantID)
		}
		got, err := a.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		a := newArchive(t)
		b := []byte("same receipt")
		id1, err := a.Put(b)
		if err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		id2, err := a.Put(b)
		if err != nil {
			t.Fatalf("Put(2) failed: %v", err)
		}
		if !id1.Equals(id2) {
			t.Fatalf("Put not idempotent: %s vs %s", id1, id2)
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		a := newArchive(t)
		b := []byte("missing")
		id, err := journal.CIDOf(b)
		if err != nil {
			t.Fatalf("CIDOf failed: %v", err)
		}
		if a.Has(id) {
			t.Fatalf("Has returned true for missing CID")
		}
		if _, err := a.Get(id); !journal.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}
		if _, err := a.Put(b); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if !a.Has(id) {
			t.Fatalf("Has returned false after Put")
		}
	})

	t.Run("RejectUndefCID", func(t *testing.T) {
		a := newArchive(t)
		var undef cid.Cid
		if a.Has(undef) {
			t.Fatalf("Has should be false for undefined CID")
		}
		if _, err := a.Get(undef); err == nil {
			t.Fatalf("Get should fail for undefined CID")
		}
	})

	t.Run("EmptyRecord", func(t *testing.T) {
		a := newArchive(t)
		id, err := a.Put([]byte{})
		if err != nil {
			t.Fatalf("Put(empty) failed: %v", err)
		}
		got, err := a.Get(id)
		if err != nil {
			t.Fatalf("Get(empty) failed: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected empty record, got %d bytes", len(got))
		}
	})
}
