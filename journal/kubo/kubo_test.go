package kubo

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tonkeeper/2fa-extension/journal"
)

// fakeIPFS writes a shell script that serves "block get/stat" from dir and
// answers "block put" with the contents of dir/next-cid.
func fakeIPFS(t *testing.T) (string, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "ipfs")
	script := `#!/bin/sh
case "$2" in
put) cat >/dev/null; cat "$FAKE_DIR/next-cid" ;;
get) if [ -f "$FAKE_DIR/$3" ]; then cat "$FAKE_DIR/$3"; else echo "Error: block was not found locally (offline): ipld: could not find $3" >&2; exit 1; fi ;;
stat) [ -f "$FAKE_DIR/$3" ] ;;
*) exit 2 ;;
esac
`
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return bin, dir
}

func TestArchiveAgainstFakeCLI(t *testing.T) {
	bin, dir := fakeIPFS(t)
	a := New(Options{Bin: bin, Env: append(os.Environ(), "FAKE_DIR="+dir)})

	data := []byte("snapshot bytes")
	id, err := journal.CIDOf(data)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "next-cid"), []byte(id.String()+"\n"), 0o600))
	got, err := a.Put(data)
	require.NoError(t, err)
	require.True(t, got.Equals(id))

	require.False(t, a.Has(id))
	_, err = a.Get(id)
	require.ErrorIs(t, err, journal.ErrNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(dir, id.String()), data, 0o600))
	require.True(t, a.Has(id))
	b, err := a.Get(id)
	require.NoError(t, err)
	require.Equal(t, data, b)

	// A node returning other bytes is caught.
	require.NoError(t, os.WriteFile(filepath.Join(dir, id.String()), []byte("tampered"), 0o600))
	_, err = a.Get(id)
	require.ErrorIs(t, err, journal.ErrCIDMismatch)

	// So is a put acknowledged under the wrong CID.
	other, err := journal.CIDOf([]byte("other"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "next-cid"), []byte(other.String()), 0o600))
	_, err = a.Put(data)
	require.ErrorIs(t, err, journal.ErrCIDMismatch)
}

func TestRegistered(t *testing.T) {
	require.Contains(t, journal.Names(journal.UsageDaemon), "ipfs")
	a, closeFn, err := journal.Open("ipfs", journal.UsageCLI, map[string]string{"bin": "/nonexistent/ipfs"})
	require.NoError(t, err)
	require.Nil(t, closeFn)
	id, err := journal.CIDOf([]byte("x"))
	require.NoError(t, err)
	require.False(t, a.Has(id))
}
