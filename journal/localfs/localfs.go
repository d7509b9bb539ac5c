// Package localfs is a filesystem journal archive.
//
// Records are written once, read-only, under <root>/<cid[:2]>/<cid>. Reads
// re-hash the file so out-of-band corruption is reported, not served.
package localfs

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"

	"github.com/tonkeeper/2fa-extension/journal"
)

// Archive is a directory-backed journal.Archive.
type Archive struct {
	root string
}

var _ journal.Archive = (*Archive)(nil)

// New opens (creating if needed) an archive rooted at root.
func New(root string) (*Archive, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, err
	}
	return &Archive{root: root}, nil
}

func (a *Archive) Put(b []byte) (cid.Cid, error) {
	id, err := journal.CIDOf(b)
	if err != nil {
		return cid.Undef, err
	}
	path := a.pathFor(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return cid.Undef, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if os.IsExist(err) {
		// An unreadable or different existing file is an immutability violation.
		existing, rerr := a.Get(id)
		if rerr != nil || !bytes.Equal(existing, b) {
			return cid.Undef, journal.ErrImmutable
		}
		return id, nil
	}
	if err != nil {
		return cid.Undef, err
	}
	if err := writeSync(f, b); err != nil {
		_ = os.Remove(path)
		return cid.Undef, fmt.Errorf("localfs: write %s: %w", id, err)
	}
	return id, nil
}

func writeSync(f *os.File, b []byte) error {
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (a *Archive) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, journal.ErrInvalidCID
	}
	b, err := os.ReadFile(a.pathFor(id))
	if os.IsNotExist(err) {
		return nil, journal.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := journal.Verify(id, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (a *Archive) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := os.Stat(a.pathFor(id))
	return err == nil
}

func (a *Archive) pathFor(id cid.Cid) string {
	s := id.String()
	return filepath.Join(a.root, s[:2], s)
}

func init() {
	journal.MustRegister(journal.Backend{
		Name:        "localfs",
		Description: "Local filesystem archive (directory)",
		Usage:       journal.UsageCLI | journal.UsageDaemon,
		Keys:        []string{"dir"},
		Open: func(cfg map[string]string) (journal.Archive, func() error, error) {
			dir := cfg["dir"]
			if dir == "" {
				return nil, nil, errors.New("localfs: missing \"dir\"")
			}
			a, err := New(dir)
			return a, nil, err
		},
	})
}
