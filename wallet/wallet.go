// Package wallet is the guard's view of the protected account.
//
// The guard never executes actions itself; it hands authorized effects to an
// Account. Memory is a reference Account used by the daemon's demo mode and
// by tests.
package wallet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrUnknownAccount = errors.New("wallet: unknown account")
	ErrNotExtension   = errors.New("wallet: guard is not an installed extension")
)

// ActionKind tags an Action.
type ActionKind string

const (
	ActionForward ActionKind = "forward"
	ActionDeploy  ActionKind = "deploy"
)

// Action is a message the account must emit.
type Action struct {
	Kind ActionKind
	// Seqno is the account sequence number the action was built against.
	Seqno   uint32
	Message []byte
	Mode    uint8
	// Target and Value describe a deploy.
	Target   string
	Template []byte
	Value    uint64
}

// Detachment removes the guard from the account.
type Detachment struct {
	Guard string
	// Successor, when set, becomes the only extension of the account.
	Successor            string
	RestoreSignatureAuth bool
}

// Account is the protected account collaborator.
type Account interface {
	Address() string
	// Authenticate reports ErrUnauthenticated unless o proves that the
	// account itself sent body.
	Authenticate(ctx context.Context, body []byte, o Origin) error
	Seqno(ctx context.Context) (uint32, error)
	Submit(ctx context.Context, a Action) error
	DetachExtension(ctx context.Context, d Detachment) error
}

// Directory resolves protected accounts by address.
type Directory interface {
	Account(ctx context.Context, address string) (Account, error)
}

// TemplateAddress returns the address a successor template deploys to.
func TemplateAddress(template []byte) string {
	sum := sha256.Sum256(template)
	return "0:" + hex.EncodeToString(sum[:])
}

// CheckAddress validates that s is a raw "<workchain>:<64 hex>" address.
func CheckAddress(s string) error {
	var wc int32
	var rest string
	if _, err := fmt.Sscanf(s, "%d:%s", &wc, &rest); err != nil {
		return fmt.Errorf("wallet: invalid address %q", s)
	}
	if len(rest) != 64 {
		return fmt.Errorf("wallet: invalid address %q", s)
	}
	if _, err := hex.DecodeString(rest); err != nil {
		return fmt.Errorf("wallet: invalid address %q", s)
	}
	return nil
}

// ExtensionAddress returns the address of the guard installed on owner.
func ExtensionAddress(owner string) string {
	sum := sha256.Sum256([]byte("tfa-extension\x00" + owner))
	return "0:" + hex.EncodeToString(sum[:])
}
