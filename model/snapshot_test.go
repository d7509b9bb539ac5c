package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tonkeeper/2fa-extension/credential"
	"github.com/tonkeeper/2fa-extension/envelope"
	"github.com/tonkeeper/2fa-extension/guard"
	"github.com/tonkeeper/2fa-extension/keys"
)

func TestSnapshot_GuardStatus_JSONShape(t *testing.T) {
	st := GuardStatus{
		Owner:     "0:aa",
		Extension: "0:bb",
		Counter:   4,
		Shape:     "devices",
		HashAlg:   "sha256",
		Service:   "ed25519:svc",
		Devices:   []Device{{ID: 0, Key: "ed25519:dev0"}},
		Seed:      "ed25519:seed",
		Recovery:  RecoveryStatus{Path: "idle"},
		Delays:    DelaySeconds{Fast: 86400, Slow: 1209600, Delegation: 1209600},
	}

	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		t.Fatalf("MarshalIndent failed: %v", err)
	}

	const want = "{\n" +
		"  \"owner\": \"0:aa\",\n" +
		"  \"extension\": \"0:bb\",\n" +
		"  \"counter\": 4,\n" +
		"  \"shape\": \"devices\",\n" +
		"  \"hashAlg\": \"sha256\",\n" +
		"  \"service\": \"ed25519:svc\",\n" +
		"  \"devices\": [\n" +
		"    {\n" +
		"      \"id\": 0,\n" +
		"      \"key\": \"ed25519:dev0\"\n" +
		"    }\n" +
		"  ],\n" +
		"  \"seed\": \"ed25519:seed\",\n" +
		"  \"recovery\": {\n" +
		"    \"path\": \"idle\"\n" +
		"  },\n" +
		"  \"delegation\": {\n" +
		"    \"pending\": false\n" +
		"  },\n" +
		"  \"delays\": {\n" +
		"    \"fast\": 86400,\n" +
		"    \"slow\": 1209600,\n" +
		"    \"delegation\": 1209600\n" +
		"  }\n" +
		"}"

	if string(b) != want {
		t.Fatalf("snapshot mismatch:\n%s", string(b))
	}
}

func TestSnapshot_SubmitResult_JSONShape(t *testing.T) {
	res := SubmitResult{
		Op:         "send-actions",
		Outcome:    "forwarded",
		Counter:    1,
		Effects:    []string{"forward mode=3 message-sha256=00"},
		RequestCID: "bafk-req",
		Receipt:    []byte("r"),
	}
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	const want = `{"op":"send-actions","outcome":"forwarded","counter":1,"removed":false,"effects":["forward mode=3 message-sha256=00"],"requestCID":"bafk-req","receipt":"cg=="}`
	if string(b) != want {
		t.Fatalf("snapshot mismatch:\n%s", string(b))
	}
}

func signer(t *testing.T, b byte) credential.Signer {
	t.Helper()
	s, err := keys.SignerFromSeed(credential.AlgEd25519, bytes.Repeat([]byte{b}, keys.SeedSize))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStatusFromState(t *testing.T) {
	service, seed, dev := signer(t, 1), signer(t, 2), signer(t, 3)
	store, err := credential.NewDeviceStore(service.Public(), seed.Public(), map[uint32]credential.PublicKey{7: dev.Public()})
	if err != nil {
		t.Fatal(err)
	}
	g, err := guard.Install("0:aa", "0:aa", &envelope.Install{Store: store}, guard.Options{})
	if err != nil {
		t.Fatal(err)
	}

	st := g.State()
	st.Delegation = guard.Delegation{Pending: true, Template: []byte("w"), ForwardValue: 9, UnblockAt: 100}
	got := StatusFromState(st, g.Delays())

	if got.Shape != "devices" || got.Service != service.Public().String() || got.Seed != seed.Public().String() {
		t.Fatalf("unexpected credential view: %+v", got)
	}
	if len(got.Devices) != 1 || got.Devices[0].ID != 7 || got.Devices[0].Key != dev.Public().String() {
		t.Fatalf("unexpected devices: %+v", got.Devices)
	}
	if !got.Delegation.Pending || got.Delegation.ForwardValue != 9 || got.Delegation.Target == "" {
		t.Fatalf("unexpected delegation: %+v", got.Delegation)
	}
	if got.Delays.Fast != uint64((24 * time.Hour).Seconds()) {
		t.Fatalf("unexpected delays: %+v", got.Delays)
	}
	if got.Recovery.Path != "idle" || got.Recovery.Key != "" {
		t.Fatalf("unexpected recovery: %+v", got.Recovery)
	}
}

func TestErrorFrom(t *testing.T) {
	if ErrorFrom(nil) != nil {
		t.Fatalf("nil error must project to nil")
	}

	rej := fmt.Errorf("submit: %w", guard.Reject(guard.CodeExpired, envelope.OpSendActions, "request expired"))
	ce := ErrorFrom(rej)
	if ce.Code != ErrorCode(guard.CodeExpired) {
		t.Fatalf("got code %s", ce.Code)
	}
	if c, ok := ce.Rejection(); !ok || c != guard.CodeExpired {
		t.Fatalf("Rejection() = %s, %v", c, ok)
	}

	ce = ErrorFrom(errors.New("disk full"))
	if ce.Code != ErrInternal {
		t.Fatalf("got code %s", ce.Code)
	}
	if _, ok := ce.Rejection(); ok {
		t.Fatalf("INTERNAL is not a rejection")
	}

	wrapped := fmt.Errorf("x: %w", NewError(ErrNotFound, "no guard"))
	if ErrorFrom(wrapped).Code != ErrNotFound {
		t.Fatalf("coded errors must pass through")
	}
}
