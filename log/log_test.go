package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/op/go-logging.v1"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]logging.Level{
		"error": logging.ERROR, "WARNING": logging.WARNING, "": logging.NOTICE,
		"Info": logging.INFO, "DEBUG": logging.DEBUG,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		require.Equal(t, want, got, in)
	}
	_, err := ParseLevel("LOUD")
	require.Error(t, err)

	_, err = New("", "LOUD", false)
	require.Error(t, err)
}

func TestFileBackendAndRotate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guard.log")
	b, err := New(path, "INFO", false)
	require.NoError(t, err)

	l := b.GetLogger("service")
	l.Info("accepted request")
	l.Debug("hidden")

	require.NoError(t, os.Rename(path, path+".1"))
	require.NoError(t, b.Rotate())
	l.Notice("after rotate")

	old, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	require.Contains(t, string(old), "INFO service: accepted request")
	require.NotContains(t, string(old), "hidden")

	cur, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(cur), "NOTI service: after rotate"))
}

func TestDiscard(t *testing.T) {
	b := Discard()
	require.False(t, b.IsEnabledFor(logging.INFO, "x"))
	b.GetLogger("x").Error("dropped")
	require.NoError(t, b.Rotate())
}
