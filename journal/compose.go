package journal

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
)

// Fallback writes to its first archive and reads from each archive in order.
// The order is the slice order; callers must supply a fixed order.
type Fallback []Archive

var _ Archive = Fallback(nil)

func (f Fallback) Put(b []byte) (cid.Cid, error) {
	if len(f) == 0 {
		return cid.Undef, errors.New("journal: fallback has no archives")
	}
	return f[0].Put(b)
}

func (f Fallback) Get(id cid.Cid) ([]byte, error) {
	return readInOrder(id, []Archive(f))
}

func (f Fallback) Has(id cid.Cid) bool {
	for _, a := range f {
		if a.Has(id) {
			return true
		}
	}
	return false
}

// Named pairs an archive with a stable backend name.
type Named struct {
	Name    string
	Archive Archive
}

// Replicated writes every record to all backends and requires each to report
// the same CID. Reads fall back in order.
type Replicated struct {
	Backends []Named
}

var _ Archive = (*Replicated)(nil)

// PutAll writes b to every backend and returns the per-backend CIDs.
func (r Replicated) PutAll(b []byte) (cid.Cid, map[string]cid.Cid, error) {
	want, err := CIDOf(b)
	if err != nil {
		return cid.Undef, nil, err
	}
	if len(r.Backends) == 0 {
		return cid.Undef, nil, errors.New("journal: replicated archive has no backends")
	}
	got := make(map[string]cid.Cid, len(r.Backends))
	for _, n := range r.Backends {
		if n.Archive == nil {
			return cid.Undef, nil, fmt.Errorf("journal: nil archive for backend %q", n.Name)
		}
		id, err := n.Archive.Put(b)
		if err != nil {
			return cid.Undef, got, fmt.Errorf("journal: backend %q: %w", n.Name, err)
		}
		got[n.Name] = id
		if !id.Equals(want) {
			return cid.Undef, got, ErrCIDMismatch
		}
	}
	return want, got, nil
}

func (r Replicated) Put(b []byte) (cid.Cid, error) {
	id, _, err := r.PutAll(b)
	return id, err
}

func (r Replicated) Get(id cid.Cid) ([]byte, error) {
	as := make([]Archive, 0, len(r.Backends))
	for _, n := range r.Backends {
		if n.Archive != nil {
			as = append(as, n.Archive)
		}
	}
	return readInOrder(id, as)
}

func (r Replicated) Has(id cid.Cid) bool {
	for _, n := range r.Backends {
		if n.Archive != nil && n.Archive.Has(id) {
			return true
		}
	}
	return false
}

// readInOrder returns the first hit. Not-found falls through; any other
// error stops the scan.
func readInOrder(id cid.Cid, as []Archive) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	for _, a := range as {
		b, err := a.Get(id)
		if err == nil {
			return b, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}
