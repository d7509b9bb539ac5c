package statedb

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tonkeeper/2fa-extension/credential"
	"github.com/tonkeeper/2fa-extension/envelope"
	"github.com/tonkeeper/2fa-extension/guard"
	"github.com/tonkeeper/2fa-extension/keys"
)

func testState(t *testing.T, owner string) guard.State {
	t.Helper()
	key := func(b byte) credential.PublicKey {
		s, err := keys.SignerFromSeed(credential.AlgEd25519, bytes.Repeat([]byte{b}, keys.SeedSize))
		require.NoError(t, err)
		return s.Public()
	}
	st, err := credential.NewDeviceStore(key(1), key(2), map[uint32]credential.PublicKey{0: key(3)})
	require.NoError(t, err)
	g, err := guard.Install(owner, owner, &envelope.Install{Store: st}, guard.Options{})
	require.NoError(t, err)
	return g.State()
}

func openDB(t *testing.T) (*DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := Open(path)
	require.NoError(t, err)
	return db, path
}

func TestInstallLoad(t *testing.T) {
	db, path := openDB(t)
	st := testState(t, "0:aa")

	_, err := db.Load("0:aa")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Install(st, Record{Op: envelope.OpInstall, At: 1}))
	require.ErrorIs(t, db.Install(st, Record{Op: envelope.OpInstall}), ErrExists)

	got, err := db.Load("0:aa")
	require.NoError(t, err)
	want, err := st.MarshalBinary()
	require.NoError(t, err)
	raw, err := got.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, want, raw)

	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	all, err := db.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "0:aa", all[0].Owner)
}

func TestCommitChecksCounter(t *testing.T) {
	db, _ := openDB(t)
	defer db.Close()

	st := testState(t, "0:aa")
	require.NoError(t, db.Install(st, Record{Op: envelope.OpInstall}))

	next := st.Clone()
	next.Counter = 1
	require.NoError(t, db.Commit("0:aa", &next, Record{Op: envelope.OpSendActions, Counter: 0, Outcome: "forwarded"}))

	// Replaying the same commit must fail.
	require.ErrorIs(t, db.Commit("0:aa", &next, Record{Op: envelope.OpSendActions, Counter: 0}), ErrConflict)
	require.ErrorContains(t, db.Commit("0:bb", &next, Record{Counter: 0}), "does not match")
	other := testState(t, "0:bb")
	require.ErrorIs(t, db.Commit("0:bb", &other, Record{Counter: 0}), ErrNotFound)
	require.Error(t, db.Commit("0:aa", &st, Record{Counter: 1}))

	got, err := db.Load("0:aa")
	require.NoError(t, err)
	require.Equal(t, uint64(1), got.Counter)

	hist, err := db.History("0:aa")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.Equal(t, envelope.OpInstall, hist[0].Op)
	require.Equal(t, "forwarded", hist[1].Outcome)
}

func TestPendingMachinesSurviveReopen(t *testing.T) {
	db, path := openDB(t)

	recovering := testState(t, "0:aa")
	newKey, err := keys.SignerFromSeed(credential.AlgEd25519, bytes.Repeat([]byte{9}, keys.SeedSize))
	require.NoError(t, err)
	recovering.Recovery = guard.Recovery{
		Path:      guard.RecoveryFast,
		DeviceID:  7,
		Key:       newKey.Public(),
		UnblockAt: 1_700_086_400,
	}
	delegating := testState(t, "0:bb")
	delegating.Delegation = guard.Delegation{
		Pending:      true,
		Template:     []byte{0xb5, 0xee, 0x9c, 0x72},
		ForwardValue: 50_000_000,
		UnblockAt:    1_701_209_600,
	}

	require.NoError(t, db.Install(testState(t, "0:aa"), Record{Op: envelope.OpInstall}))
	require.NoError(t, db.Install(testState(t, "0:bb"), Record{Op: envelope.OpInstall}))
	recovering.Counter = 1
	delegating.Counter = 1
	require.NoError(t, db.Commit("0:aa", &recovering, Record{Op: envelope.OpFastRecover, Outcome: "recovery-armed"}))
	require.NoError(t, db.Commit("0:bb", &delegating, Record{Op: envelope.OpDelegate, Outcome: "delegation-armed"}))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.Load("0:aa")
	require.NoError(t, err)
	require.Equal(t, uint64(1), got.Counter)
	require.Equal(t, guard.RecoveryFast, got.Recovery.Path)
	require.Equal(t, uint32(7), got.Recovery.DeviceID)
	require.True(t, got.Recovery.Key.Equal(newKey.Public()))
	require.Equal(t, uint64(1_700_086_400), got.Recovery.UnblockAt)
	require.False(t, got.Delegation.Pending)

	got, err = db.Load("0:bb")
	require.NoError(t, err)
	require.True(t, got.Delegation.Pending)
	require.Equal(t, []byte{0xb5, 0xee, 0x9c, 0x72}, got.Delegation.Template)
	require.Equal(t, uint64(50_000_000), got.Delegation.ForwardValue)
	require.Equal(t, uint64(1_701_209_600), got.Delegation.UnblockAt)
	require.False(t, got.Recovery.Pending())

	want, err := delegating.MarshalBinary()
	require.NoError(t, err)
	raw, err := got.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, want, raw)
}

func TestCommitRemovalKeepsHistory(t *testing.T) {
	db, _ := openDB(t)
	defer db.Close()

	st := testState(t, "0:aa")
	require.NoError(t, db.Install(st, Record{Op: envelope.OpInstall}))
	require.NoError(t, db.Commit("0:aa", nil, Record{Op: envelope.OpRemoveExtension, Counter: 0, Outcome: "removed", Receipt: "bafk"}))

	_, err := db.Load("0:aa")
	require.ErrorIs(t, err, ErrNotFound)

	hist, err := db.History("0:aa")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.Equal(t, "bafk", hist[1].Receipt)

	// A fresh instance may be installed after removal.
	require.NoError(t, db.Install(st, Record{Op: envelope.OpInstall}))

	none, err := db.History("0:zz")
	require.NoError(t, err)
	require.Empty(t, none)
}
