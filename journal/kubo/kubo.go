// Package kubo is a journal archive backed by the local Kubo "ipfs" CLI.
//
// It stores each record as a raw IPFS block (CIDv1, sha2-256) in the local
// repository, so journal CIDs are directly resolvable by an IPFS node. No
// daemon is needed. Bytes read back are re-hashed against the requested CID.
package kubo

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ipfs/go-cid"

	"github.com/tonkeeper/2fa-extension/journal"
)

// Archive shells out to an ipfs binary.
type Archive struct {
	bin string
	env []string
}

var _ journal.Archive = (*Archive)(nil)

type Options struct {
	// Bin is the ipfs binary; "ipfs" when empty.
	Bin string
	// Env replaces the command environment when non-nil (e.g. to set
	// IPFS_PATH).
	Env []string
}

func New(opts Options) *Archive {
	bin := opts.Bin
	if bin == "" {
		bin = "ipfs"
	}
	return &Archive{bin: bin, env: opts.Env}
}

func (a *Archive) Put(data []byte) (cid.Cid, error) {
	id, err := journal.CIDOf(data)
	if err != nil {
		return cid.Undef, err
	}
	out, err := a.run(data,
		"block", "put",
		"--quiet",
		"--format=raw",
		"--mhtype=sha2-256",
		"--mhlen=32",
		"--cid-version=1",
		"/dev/stdin",
	)
	if err != nil {
		return cid.Undef, err
	}
	got, err := cid.Decode(strings.TrimSpace(string(out)))
	if err != nil {
		return cid.Undef, fmt.Errorf("kubo: unexpected block put output: %w", err)
	}
	if !got.Equals(id) {
		return cid.Undef, journal.ErrCIDMismatch
	}
	return id, nil
}

func (a *Archive) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, journal.ErrInvalidCID
	}
	out, err := a.run(nil, "block", "get", id.String())
	if err != nil {
		if isNotFound(err) {
			return nil, journal.ErrNotFound
		}
		return nil, err
	}
	if err := journal.Verify(id, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Archive) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := a.run(nil, "block", "stat", id.String())
	return err == nil
}

func (a *Archive) run(stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.Command(a.bin, args...)
	if a.env != nil {
		cmd.Env = a.env
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if s := strings.TrimSpace(string(ee.Stderr)); s != "" {
			return nil, fmt.Errorf("kubo: %s", s)
		}
	}
	return nil, fmt.Errorf("kubo: %w", err)
}

func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found")
}

func init() {
	journal.MustRegister(journal.Backend{
		Name:        "ipfs",
		Description: "Local IPFS repository via the Kubo CLI",
		Usage:       journal.UsageCLI | journal.UsageDaemon,
		Keys:        []string{"bin", "repo"},
		Open: func(cfg map[string]string) (journal.Archive, func() error, error) {
			opts := Options{Bin: cfg["bin"]}
			if repo := cfg["repo"]; repo != "" {
				opts.Env = append(os.Environ(), "IPFS_PATH="+repo)
			}
			return New(opts), nil, nil
		},
	})
}
