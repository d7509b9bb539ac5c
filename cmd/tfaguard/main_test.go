package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/tonkeeper/2fa-extension/credential"
	"github.com/tonkeeper/2fa-extension/envelope"
	"github.com/tonkeeper/2fa-extension/journal"
	"github.com/tonkeeper/2fa-extension/keys"
	"github.com/tonkeeper/2fa-extension/model"
	"github.com/tonkeeper/2fa-extension/rpc"
	"github.com/tonkeeper/2fa-extension/service"
	"github.com/tonkeeper/2fa-extension/statedb"
	"github.com/tonkeeper/2fa-extension/wallet"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func seedText(b byte) string {
	return "ed25519:" + hex.EncodeToString(bytes.Repeat([]byte{b}, keys.SeedSize))
}

func pubOf(t *testing.T, b byte) string {
	t.Helper()
	pub, err := keys.PublicKeyFromSeed(credential.AlgEd25519, bytes.Repeat([]byte{b}, keys.SeedSize))
	require.NoError(t, err)
	return pub
}

// accountOf returns the address controlled by the ed25519 key from seed byte b.
func accountOf(t *testing.T, b byte) string {
	t.Helper()
	pub, err := credential.ParsePublicKey(pubOf(t, b))
	require.NoError(t, err)
	return wallet.AccountAddress(pub)
}

func startServer(t *testing.T) string {
	t.Helper()
	accounts := wallet.NewMemoryDirectory()
	accounts.AutoCreate = true
	accounts.GuardAddress = wallet.ExtensionAddress
	db, err := statedb.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	svc, err := service.New(service.Options{
		Accounts: accounts,
		DB:       db,
		Journal:  journal.New(journal.NewMemory()),
	})
	require.NoError(t, err)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	rpc.RegisterGuardServer(srv, &rpc.Server{Backend: svc})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return lis.Addr().String()
}

func TestKeyCommands(t *testing.T) {
	ks := t.TempDir()
	seed := hex.EncodeToString(bytes.Repeat([]byte{4}, keys.SeedSize))

	out, err := runCLI(t, "--keystore", ks, "key", "init", "--name", "alice", "--seed-hex", seed)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, pubOf(t, 4)+"\n"), out)

	_, err = runCLI(t, "--keystore", ks, "key", "init", "--name", "alice", "--seed-hex", seed)
	require.Error(t, err)

	_, err = runCLI(t, "--keystore", ks, "key", "derive", "--from", "alice", "--role", "service")
	require.NoError(t, err)
	_, err = runCLI(t, "--keystore", ks, "key", "derive", "--from", "alice", "--device", "0")
	require.NoError(t, err)
	_, err = runCLI(t, "--keystore", ks, "key", "derive", "--from", "alice")
	require.Error(t, err)

	out, err = runCLI(t, "--keystore", ks, "key", "list")
	require.NoError(t, err)
	require.Equal(t, "alice\tdevice-0,service\n", out)

	out, err = runCLI(t, "--keystore", ks, "key", "export", "--name", "alice", "--role", "service")
	require.NoError(t, err)
	_, err = credential.ParsePublicKey(strings.TrimSpace(out))
	require.NoError(t, err)
}

func TestRequestWithCertificate(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.cbor")
	_, err := runCLI(t, "cert", "issue", "--root", seedText(1), "--key", pubOf(t, 2), "--valid-until", "4000000000", "--out", certFile)
	require.NoError(t, err)

	out, err := runCLI(t, "request", "remove-extension", "--counter", "5",
		"--primary", seedText(2), "--secondary", seedText(3), "--cert", certFile)
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(out))
	require.NoError(t, err)
	env, err := envelope.Unmarshal(raw)
	require.NoError(t, err)
	require.Equal(t, envelope.OpRemoveExtension, env.Op)
	require.Equal(t, uint64(5), env.Counter)
	require.NotNil(t, env.Certificate)
	require.Equal(t, uint64(4000000000), env.Certificate.ValidUntil)
	root, err := credential.ParsePublicKey(pubOf(t, 1))
	require.NoError(t, err)
	require.NoError(t, env.Certificate.Verify(root, 1))
}

func TestRequestRejectsBadInput(t *testing.T) {
	_, err := runCLI(t, "request", "install", "--counter", "0", "--primary", seedText(1))
	require.Error(t, err)
	_, err = runCLI(t, "request", "teleport", "--counter", "0")
	require.ErrorIs(t, err, envelope.ErrUnknownOp)
	_, err = runCLI(t, "request", "send-actions", "--counter", "0", "--primary", seedText(1))
	require.ErrorContains(t, err, "--message-hex")
}

func TestEndToEnd(t *testing.T) {
	addr := startServer(t)
	dir := t.TempDir()
	srv := []string{"--server", addr}
	owner := accountOf(t, 5)

	out, err := runCLI(t, append(srv, "install", "--account-key", seedText(5),
		"--service", pubOf(t, 1), "--seed", pubOf(t, 2), "--device", "0="+pubOf(t, 3))...)
	require.NoError(t, err)
	var inst model.InstallResult
	require.NoError(t, json.Unmarshal([]byte(out), &inst))
	require.Equal(t, owner, inst.Owner)
	require.Equal(t, wallet.ExtensionAddress(owner), inst.Extension)

	reqFile := filepath.Join(dir, "req.cbor")
	_, err = runCLI(t, "request", "send-actions", "--counter", "0", "--message-hex", "6869",
		"--primary", seedText(1), "--secondary", seedText(3), "--device-id", "0", "--out", reqFile)
	require.NoError(t, err)

	out, err = runCLI(t, append(srv, "submit", "--owner", owner, "--in", reqFile)...)
	require.NoError(t, err)
	var res model.SubmitResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, "forwarded", res.Outcome)

	_, err = runCLI(t, append(srv, "submit", "--owner", owner, "--in", reqFile)...)
	require.ErrorContains(t, err, "InvalidCounter")

	out, err = runCLI(t, append(srv, "counter", "--owner", owner)...)
	require.NoError(t, err)
	require.Equal(t, "1\n", out)

	out, err = runCLI(t, append(srv, "status", "--owner", owner)...)
	require.NoError(t, err)
	require.Contains(t, out, owner)

	receiptFile := filepath.Join(dir, "receipt.txt")
	require.NoError(t, os.WriteFile(receiptFile, res.Receipt, 0o600))
	out, err = runCLI(t, "receipt", "verify", receiptFile)
	require.NoError(t, err)
	require.Equal(t, "OK "+res.ReceiptCID+" send-actions counter=0 outcome=forwarded\nunsigned\n", out)

	bundleFile := filepath.Join(dir, "history.tar")
	_, err = runCLI(t, append(srv, "export", "--owner", owner, "--out", bundleFile)...)
	require.NoError(t, err)
	out, err = runCLI(t, "bundle", "verify", bundleFile)
	require.NoError(t, err)
	require.Contains(t, out, "0001-send-actions/receipt\t"+res.ReceiptCID)

	archDir := filepath.Join(dir, "archive")
	out, err = runCLI(t, "journal", "import", bundleFile, "--opt", "dir="+archDir)
	require.NoError(t, err)
	require.Equal(t, "imported 5 record(s)\n", out)
	out, err = runCLI(t, "journal", "get", res.ReceiptCID, "--backend", "localfs", "--opt", "dir="+archDir)
	require.NoError(t, err)
	require.Equal(t, string(res.Receipt), out)
	out, err = runCLI(t, "journal", "entry", res.RequestCID, res.SnapshotCID, res.ReceiptCID, "--opt", "dir="+archDir)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "request\t"+res.RequestCID+"\t"), out)
	require.Contains(t, out, fmt.Sprintf("receipt\t%s\t%d\n", res.ReceiptCID, len(res.Receipt)))
	_, err = runCLI(t, "journal", "entry", res.RequestCID, "bogus", "", "--opt", "dir="+archDir)
	require.ErrorContains(t, err, "snapshot")

	out, err = runCLI(t, append(srv, "history", "--owner", owner)...)
	require.NoError(t, err)
	var hist []model.HistoryEntry
	require.NoError(t, json.Unmarshal([]byte(out), &hist))
	require.Len(t, hist, 2)

	out, err = runCLI(t, "fee", "--local", "--bits", "1023")
	require.NoError(t, err)
	var est model.FeeEstimate
	require.NoError(t, json.Unmarshal([]byte(out), &est))
	require.NotZero(t, est.Total)
}

func TestInstallAndRelayNeedAccountKey(t *testing.T) {
	addr := startServer(t)
	dir := t.TempDir()
	srv := []string{"--server", addr}
	owner := accountOf(t, 5)
	install := []string{"install", "--service", pubOf(t, 1), "--seed", pubOf(t, 2), "--device", "0=" + pubOf(t, 3)}

	_, err := runCLI(t, append(srv, install...)...)
	require.ErrorContains(t, err, "account-key")
	_, err = runCLI(t, append(append(srv, install...), "--owner", owner, "--account-key", seedText(6))...)
	require.ErrorContains(t, err, "NotOwner")
	_, err = runCLI(t, append(srv, "counter", "--owner", owner)...)
	require.ErrorContains(t, err, "NotInstalled")

	_, err = runCLI(t, append(append(srv, install...), "--owner", owner, "--account-key", seedText(5))...)
	require.NoError(t, err)

	reqFile := filepath.Join(dir, "req.cbor")
	_, err = runCLI(t, "request", "send-actions", "--counter", "0", "--message-hex", "6869",
		"--primary", seedText(1), "--secondary", seedText(3), "--device-id", "0", "--out", reqFile)
	require.NoError(t, err)
	_, err = runCLI(t, append(srv, "submit", "--owner", owner, "--relay-key", seedText(6), "--in", reqFile)...)
	require.ErrorContains(t, err, "NotOwner")
	out, err := runCLI(t, append(srv, "submit", "--owner", owner, "--relay-key", seedText(5), "--in", reqFile)...)
	require.NoError(t, err)
	var res model.SubmitResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, "forwarded", res.Outcome)
}
