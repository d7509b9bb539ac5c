// Package journal stores guard records (state snapshots and receipts) in a
// content-addressed archive.
//
// Records are immutable and keyed by a CIDv1 (raw codec, sha2-256 multihash)
// of their exact bytes, so any copy of the archive can be checked offline.
// Backends register in a process-wide registry and are selected by Config.
package journal

import (
	"errors"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

var (
	ErrNotFound    = errors.New("journal: not found")
	ErrInvalidCID  = errors.New("journal: invalid cid")
	ErrCIDMismatch = errors.New("journal: cid mismatch")
	ErrImmutable   = errors.New("journal: immutable record mismatch")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Archive is a content-addressed record store.
//
// Contract:
//   - Put is idempotent and returns CIDOf(bytes).
//   - Stored records never change.
//   - Get returns ErrNotFound when the CID is absent.
type Archive interface {
	Put(bytes []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}

// CIDOf returns the CIDv1 (raw, sha2-256) of data.
func CIDOf(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// verify checks that b hashes to id.
func verify(id cid.Cid, b []byte) error {
	got, err := CIDOf(b)
	if err != nil {
		return err
	}
	if !got.Equals(id) {
		return ErrCIDMismatch
	}
	return nil
}

// Verify reports ErrCIDMismatch when b does not hash to id.
func Verify(id cid.Cid, b []byte) error {
	if !id.Defined() {
		return ErrInvalidCID
	}
	return verify(id, b)
}
