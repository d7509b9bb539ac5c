// Command vectorgen prints deterministic request and receipt vectors for the
// replay-protection walk-through: install, accept counter 0, refuse its
// replay, refuse an expired counter 1.
package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tonkeeper/2fa-extension/credential"
	"github.com/tonkeeper/2fa-extension/envelope"
	"github.com/tonkeeper/2fa-extension/guard"
	"github.com/tonkeeper/2fa-extension/journal"
	"github.com/tonkeeper/2fa-extension/keys"
	"github.com/tonkeeper/2fa-extension/receipt"
)

const (
	owner = "0:a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1"
	now   = 1_700_000_000
)

type step struct {
	Name       string `json:"name"`
	Envelope   string `json:"envelope"`
	Outcome    string `json:"outcome,omitempty"`
	Rejection  string `json:"rejection,omitempty"`
	Counter    uint64 `json:"counterAfter"`
	Receipt    string `json:"receipt,omitempty"`
	ReceiptCID string `json:"receiptCID,omitempty"`
}

func mustSigner(seedByte byte) credential.Signer {
	s, err := keys.SignerFromSeed(credential.AlgEd25519, bytes.Repeat([]byte{seedByte}, keys.SeedSize))
	if err != nil {
		panic(err)
	}
	return s
}

func main() {
	service, seed, device, issuer := mustSigner(0xA1), mustSigner(0xA2), mustSigner(0xA3), mustSigner(0xA4)

	st, err := credential.NewDeviceStore(service.Public(), seed.Public(), map[uint32]credential.PublicKey{0: device.Public()})
	if err != nil {
		panic(err)
	}
	g, err := guard.Install(owner, owner, &envelope.Install{Store: st}, guard.Options{})
	if err != nil {
		panic(err)
	}
	creds := envelope.Credentials{Primary: service, Secondary: device}

	submit := func(name string, counter, validUntil uint64, msg string) step {
		env, err := envelope.Build(envelope.OpSendActions, counter, validUntil,
			envelope.SendActions{Message: []byte(msg), Mode: 3}, credential.DefaultHashAlg, creds)
		if err != nil {
			panic(err)
		}
		raw, err := env.Marshal()
		if err != nil {
			panic(err)
		}
		s := step{Name: name, Envelope: hex.EncodeToString(raw)}
		t, err := g.Evaluate(env, now)
		if err != nil {
			s.Rejection = string(guard.CodeOf(err))
			s.Counter = g.Counter()
			return s
		}
		if err := g.Commit(t); err != nil {
			panic(err)
		}
		reqCID, err := journal.CIDOf(raw)
		if err != nil {
			panic(err)
		}
		r := receipt.FromTransition(owner, env, t, now, journal.Entry{Request: reqCID})
		b, err := receipt.Render(r, receipt.RenderOptions{Signer: issuer})
		if err != nil {
			panic(err)
		}
		id, err := receipt.CID(b)
		if err != nil {
			panic(err)
		}
		s.Outcome, s.Counter, s.Receipt, s.ReceiptCID = string(t.Outcome), g.Counter(), string(b), id
		return s
	}

	first := submit("accept-counter-0", 0, now+600, "transfer-1")
	replay := first
	replay.Name = "replay-counter-0"
	env, _ := hex.DecodeString(first.Envelope)
	parsed, err := envelope.Unmarshal(env)
	if err != nil {
		panic(err)
	}
	replay.Outcome, replay.Receipt, replay.ReceiptCID = "", "", ""
	if _, err := g.Evaluate(parsed, now); err != nil {
		replay.Rejection = string(guard.CodeOf(err))
	}
	replay.Counter = g.Counter()
	expired := submit("expired-counter-1", 1, now-1, "transfer-2")

	out := map[string]any{
		"owner":      owner,
		"now":        now,
		"service":    service.Public().String(),
		"seed":       seed.Public().String(),
		"device0":    device.Public().String(),
		"receiptKey": issuer.Public().String(),
		"steps":      []step{first, replay, expired},
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
