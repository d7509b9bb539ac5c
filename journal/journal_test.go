package journal

import (
	"errors"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"
)

type failing struct{ err error }

func (f failing) Put([]byte) (cid.Cid, error) { return cid.Undef, f.err }
func (f failing) Get(cid.Cid) ([]byte, error) { return nil, f.err }
func (f failing) Has(cid.Cid) bool            { return false }

// lying returns a fixed CID for every Put.
type lying struct {
	*Memory
	id cid.Cid
}

func (l lying) Put(b []byte) (cid.Cid, error) {
	if _, err := l.Memory.Put(b); err != nil {
		return cid.Undef, err
	}
	return l.id, nil
}

func TestMemoryImmutable(t *testing.T) {
	m := NewMemory()
	id, err := m.Put([]byte("a"))
	require.NoError(t, err)
	m.records[id.KeyString()] = []byte("b")
	_, err = m.Put([]byte("a"))
	require.ErrorIs(t, err, ErrImmutable)
}

func TestFallbackReadsInOrder(t *testing.T) {
	first, second := NewMemory(), NewMemory()
	id, err := second.Put([]byte("only in second"))
	require.NoError(t, err)

	fb := Fallback{first, second}
	got, err := fb.Get(id)
	require.NoError(t, err)
	require.Equal(t, []byte("only in second"), got)
	require.True(t, fb.Has(id))

	wid, err := fb.Put([]byte("new"))
	require.NoError(t, err)
	require.True(t, first.Has(wid))
	require.False(t, second.Has(wid))

	boom := errors.New("boom")
	_, err = Fallback{failing{boom}, second}.Get(id)
	require.ErrorIs(t, err, boom)

	_, err = Fallback{first}.Get(cid.Undef)
	require.ErrorIs(t, err, ErrInvalidCID)

	_, err = Fallback{}.Put([]byte("x"))
	require.Error(t, err)
}

func TestReplicatedWritesAll(t *testing.T) {
	a, b := NewMemory(), NewMemory()
	r := Replicated{Backends: []Named{{Name: "a", Archive: a}, {Name: "b", Archive: b}}}
	id, per, err := r.PutAll([]byte("record"))
	require.NoError(t, err)
	require.True(t, a.Has(id))
	require.True(t, b.Has(id))
	require.Len(t, per, 2)

	other, err := CIDOf([]byte("other"))
	require.NoError(t, err)
	bad := Replicated{Backends: []Named{{Name: "a", Archive: a}, {Name: "liar", Archive: lying{Memory: NewMemory(), id: other}}}}
	_, err = bad.Put([]byte("record 2"))
	require.ErrorIs(t, err, ErrCIDMismatch)

	_, err = Replicated{}.Put([]byte("x"))
	require.Error(t, err)
}

func TestConfigOpen(t *testing.T) {
	require.Error(t, Config{}.Validate())
	require.Error(t, Config{Backends: []BackendConfig{{Name: "memory"}, {Name: "memory"}}}.Validate())
	require.Error(t, Config{WritePolicy: "some", Backends: []BackendConfig{{Name: "memory"}}}.Validate())

	a, closeFn, err := Config{Backends: []BackendConfig{{Name: "memory"}}}.Open(UsageDaemon)
	require.NoError(t, err)
	require.NoError(t, closeFn())
	_, ok := a.(*Memory)
	require.True(t, ok)

	a, _, err = Config{
		WritePolicy: WriteAll,
		Backends:    []BackendConfig{{Name: "memory", ID: "one"}, {Name: "memory", ID: "two"}},
	}.Open(UsageDaemon)
	require.NoError(t, err)
	rep, ok := a.(Replicated)
	require.True(t, ok)
	require.Equal(t, "one", rep.Backends[0].Name)

	a, _, err = Config{Backends: []BackendConfig{{Name: "memory", ID: "one"}, {Name: "memory", ID: "two"}}}.Open(UsageCLI)
	require.NoError(t, err)
	_, ok = a.(Fallback)
	require.True(t, ok)

	_, _, err = Config{Backends: []BackendConfig{{Name: "nope"}}}.Open(UsageDaemon)
	require.Error(t, err)
}

func TestRegistry(t *testing.T) {
	require.Contains(t, Names(UsageDaemon), "memory")
	require.Error(t, Register(Backend{Name: "memory", Usage: UsageCLI, Open: func(map[string]string) (Archive, func() error, error) { return nil, nil, nil }}))
	require.Error(t, Register(Backend{Name: "x"}))
	require.Error(t, Register(Backend{Name: "x", Open: func(map[string]string) (Archive, func() error, error) { return nil, nil, nil }}))
}

func TestJournalRecord(t *testing.T) {
	j := New(NewMemory())
	e, err := j.Record([]byte("req"), []byte("snap"), nil)
	require.NoError(t, err)
	require.True(t, e.Request.Defined())
	require.True(t, e.Snapshot.Defined())
	require.False(t, e.Receipt.Defined())
	require.Len(t, e.CIDs(), 2)

	b, err := j.Load(e.Snapshot)
	require.NoError(t, err)
	require.Equal(t, []byte("snap"), b)

	parsed, err := ParseCID(e.Request.String())
	require.NoError(t, err)
	require.True(t, parsed.Equals(e.Request))
	_, err = ParseCID("bogus")
	require.ErrorIs(t, err, ErrInvalidCID)

	_, err = New(failing{errors.New("down")}).Record([]byte("x"), nil, nil)
	require.Error(t, err)
}

func TestEntryRefsAndLoad(t *testing.T) {
	m := NewMemory()
	j := New(m)
	e, err := j.Record([]byte("req"), nil, []byte("rcpt"))
	require.NoError(t, err)

	refs := e.Refs()
	require.Len(t, refs, 2)
	require.Equal(t, KindRequest, refs[0].Kind)
	require.Equal(t, KindReceipt, refs[1].Kind)

	got, err := j.LoadEntry(e)
	require.NoError(t, err)
	require.Equal(t, map[Kind][]byte{KindRequest: []byte("req"), KindReceipt: []byte("rcpt")}, got)

	parsed, err := ParseEntry(e.Request.String(), "", e.Receipt.String())
	require.NoError(t, err)
	require.Equal(t, e, parsed)

	_, err = ParseEntry(e.Request.String(), "bogus", "")
	require.ErrorIs(t, err, ErrInvalidCID)
	require.ErrorContains(t, err, "snapshot")

	missing, err := NewMemory().Put([]byte("elsewhere"))
	require.NoError(t, err)
	_, err = j.LoadEntry(Entry{Request: e.Request, Snapshot: missing})
	require.ErrorContains(t, err, "load snapshot")
}
