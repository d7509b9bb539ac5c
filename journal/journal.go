package journal

import (
	"fmt"

	"github.com/ipfs/go-cid"
)

// Kind names one record of an Entry.
type Kind string

const (
	KindRequest  Kind = "request"
	KindSnapshot Kind = "snapshot"
	KindReceipt  Kind = "receipt"
)

// Ref is one record of an Entry.
type Ref struct {
	Kind Kind
	ID   cid.Cid
}

// Entry links the records written for one accepted request.
type Entry struct {
	Request  cid.Cid
	Snapshot cid.Cid
	Receipt  cid.Cid
}

// Journal writes request records to an archive.
type Journal struct {
	Archive Archive
}

// New returns a journal over a.
func New(a Archive) *Journal {
	return &Journal{Archive: a}
}

// Record stores the encoded request, the resulting state snapshot and the
// receipt. Any of them may be nil, in which case its CID is undefined.
func (j *Journal) Record(request, snapshot, receipt []byte) (Entry, error) {
	var (
		e   Entry
		err error
	)
	if e.Request, err = j.put(KindRequest, request); err != nil {
		return Entry{}, err
	}
	if e.Snapshot, err = j.put(KindSnapshot, snapshot); err != nil {
		return Entry{}, err
	}
	if e.Receipt, err = j.put(KindReceipt, receipt); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (j *Journal) put(kind Kind, b []byte) (cid.Cid, error) {
	if b == nil {
		return cid.Undef, nil
	}
	id, err := j.Archive.Put(b)
	if err != nil {
		return cid.Undef, fmt.Errorf("journal: put %s: %w", kind, err)
	}
	return id, nil
}

// PutReceipt stores a receipt rendered after its entry was recorded.
func (j *Journal) PutReceipt(receipt []byte) (cid.Cid, error) {
	return j.put(KindReceipt, receipt)
}

// Load fetches and verifies a record.
func (j *Journal) Load(id cid.Cid) ([]byte, error) {
	b, err := j.Archive.Get(id)
	if err != nil {
		return nil, err
	}
	if err := verify(id, b); err != nil {
		return nil, err
	}
	return b, nil
}

// LoadEntry fetches and verifies every defined record of e.
func (j *Journal) LoadEntry(e Entry) (map[Kind][]byte, error) {
	out := make(map[Kind][]byte, 3)
	for _, r := range e.Refs() {
		b, err := j.Load(r.ID)
		if err != nil {
			return nil, fmt.Errorf("journal: load %s %s: %w", r.Kind, r.ID, err)
		}
		out[r.Kind] = b
	}
	return out, nil
}

// Refs returns the defined records of e in request, snapshot, receipt order.
func (e Entry) Refs() []Ref {
	var out []Ref
	for _, r := range []Ref{{KindRequest, e.Request}, {KindSnapshot, e.Snapshot}, {KindReceipt, e.Receipt}} {
		if r.ID.Defined() {
			out = append(out, r)
		}
	}
	return out
}

// CIDs returns the defined CIDs of e.
func (e Entry) CIDs() []cid.Cid {
	refs := e.Refs()
	out := make([]cid.Cid, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.ID)
	}
	return out
}

// ParseEntry decodes the textual CIDs of an entry. Empty strings leave the
// record undefined.
func ParseEntry(request, snapshot, receipt string) (Entry, error) {
	var (
		e   Entry
		err error
	)
	if e.Request, err = ParseCID(request); err != nil {
		return Entry{}, fmt.Errorf("journal: %s: %w", KindRequest, err)
	}
	if e.Snapshot, err = ParseCID(snapshot); err != nil {
		return Entry{}, fmt.Errorf("journal: %s: %w", KindSnapshot, err)
	}
	if e.Receipt, err = ParseCID(receipt); err != nil {
		return Entry{}, fmt.Errorf("journal: %s: %w", KindReceipt, err)
	}
	return e, nil
}

// ParseCID decodes a textual CID.
func ParseCID(s string) (cid.Cid, error) {
	if s == "" {
		return cid.Undef, nil
	}
	id, err := cid.Decode(s)
	if err != nil || !id.Defined() {
		return cid.Undef, ErrInvalidCID
	}
	return id, nil
}
