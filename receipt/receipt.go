// Package receipt renders, parses and verifies guard receipts.
//
// A receipt is a canonical, sectioned text document binding an accepted
// request (by CID) to the outcome it produced and the state snapshot that
// followed. Receipts may be signed by the operator; the signature covers the
// document bytes with the Signature: line removed.
package receipt

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tonkeeper/2fa-extension/envelope"
	"github.com/tonkeeper/2fa-extension/guard"
	"github.com/tonkeeper/2fa-extension/journal"
	"github.com/tonkeeper/2fa-extension/wallet"
)

const (
	Preamble  = "-----BEGIN TFAGUARD RECEIPT-----"
	Postamble = "-----END TFAGUARD RECEIPT-----"

	SpecName = "tfaguard-receipt-1"
	Version  = 1
)

var sections = []string{"META", "REQUEST", "RESULT", "EFFECTS", "CRYPTO"}

// Receipt is the parsed form of a receipt document.
type Receipt struct {
	Guard      string
	IssuedAt   uint64
	Op         envelope.OpCode
	Counter    uint64
	ValidUntil uint64
	RequestCID string

	Outcome      guard.Outcome
	CounterAfter uint64
	Removed      bool
	SnapshotCID  string

	// Effects are canonical effect descriptions in dispatch order.
	Effects []string
}

// FromTransition builds the receipt for an accepted request.
func FromTransition(owner string, env *envelope.Envelope, t *guard.Transition, now uint64, entry journal.Entry) Receipt {
	r := Receipt{
		Guard:        owner,
		IssuedAt:     now,
		Op:           t.Op,
		Counter:      t.CounterBefore,
		Outcome:      t.Outcome,
		CounterAfter: t.Next.Counter,
		Removed:      t.Removed,
	}
	if env != nil {
		r.ValidUntil = env.ValidUntil
	}
	if entry.Request.Defined() {
		r.RequestCID = entry.Request.String()
	}
	if entry.Snapshot.Defined() {
		r.SnapshotCID = entry.Snapshot.String()
	}
	for _, e := range t.Effects {
		r.Effects = append(r.Effects, DescribeEffect(e))
	}
	return r
}

// DescribeEffect returns the canonical one-line description of e.
func DescribeEffect(e guard.Effect) string {
	switch v := e.(type) {
	case guard.Forward:
		sum := sha256.Sum256(v.Message)
		return fmt.Sprintf("forward mode=%d message-sha256=%s", v.Mode, hex.EncodeToString(sum[:]))
	case guard.Deploy:
		return fmt.Sprintf("deploy target=%s value=%d", wallet.TemplateAddress(v.Template), v.Value)
	case guard.Detach:
		successor := "-"
		if len(v.Successor) > 0 {
			successor = wallet.TemplateAddress(v.Successor)
		}
		return fmt.Sprintf("detach successor=%s restore-signature-auth=%t", successor, v.RestoreSignatureAuth)
	default:
		return "unknown"
	}
}

func (r Receipt) validate() error {
	if r.Guard == "" || strings.ContainsAny(r.Guard, "\r\n") {
		return errors.New("receipt: invalid guard address")
	}
	if !r.Op.Known() {
		return fmt.Errorf("receipt: unknown op %d", uint32(r.Op))
	}
	if r.Outcome == "" || strings.ContainsAny(string(r.Outcome), "\r\n") {
		return errors.New("receipt: missing outcome")
	}
	for _, s := range []string{r.RequestCID, r.SnapshotCID} {
		if strings.ContainsAny(s, " \r\n") {
			return errors.New("receipt: invalid CID field")
		}
	}
	for _, e := range r.Effects {
		if e == "" || strings.ContainsAny(e, "\r\n") {
			return errors.New("receipt: invalid effect line")
		}
	}
	return nil
}

func render(r Receipt, crypto []string) []byte {
	var sb strings.Builder
	writeSection := func(name string, lines []string) {
		sb.WriteString(name)
		sb.WriteString("\n")
		for _, l := range lines {
			sb.WriteString(l)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	u := func(v uint64) string { return strconv.FormatUint(v, 10) }

	sb.WriteString(Preamble)
	sb.WriteString("\n")

	writeSection("META", sorted(
		"Guard: "+r.Guard,
		"Issued-At: "+u(r.IssuedAt),
		"Spec: "+SpecName,
		"Version: "+strconv.Itoa(Version),
	))

	req := []string{
		"Counter: " + u(r.Counter),
		"Op: " + r.Op.String(),
		"Valid-Until: " + u(r.ValidUntil),
	}
	if r.RequestCID != "" {
		req = append(req, "Request-CID: "+r.RequestCID)
	}
	writeSection("REQUEST", sorted(req...))

	res := []string{
		"Counter-After: " + u(r.CounterAfter),
		"Outcome: " + string(r.Outcome),
		"Removed: " + strconv.FormatBool(r.Removed),
	}
	if r.SnapshotCID != "" {
		res = append(res, "Snapshot-CID: "+r.SnapshotCID)
	}
	writeSection("RESULT", sorted(res...))

	effects := make([]string, 0, len(r.Effects))
	for _, e := range r.Effects {
		effects = append(effects, "Effect: "+e)
	}
	writeSection("EFFECTS", effects)

	writeSection("CRYPTO", sorted(crypto...))

	sb.WriteString(Postamble)
	sb.WriteString("\n")
	return []byte(sb.String())
}

func sorted(lines ...string) []string {
	out := append([]string(nil), lines...)
	sort.Strings(out)
	return out
}

// CID returns the content identifier of receipt bytes.
func CID(b []byte) (string, error) {
	id, err := journal.CIDOf(b)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
