package keys

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tonkeeper/2fa-extension/credential"
)

func TestKeyStoreRoundTrip(t *testing.T) {
	ks, err := CreateKeyStore(t.TempDir())
	if err != nil {
		t.Fatalf("CreateKeyStore: %v", err)
	}
	seed := make([]byte, SeedSize)
	for i := range seed {
		seed[i] = byte(3 * i)
	}

	rootPub, path, err := ks.InitializeRootKey("operator", "", seed, false)
	if err != nil {
		t.Fatalf("InitializeRootKey: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read key file: %v", err)
	}
	if !strings.HasPrefix(string(data), "ed25519:") {
		t.Fatalf("expected algorithm prefix in key file, got %q", data)
	}
	if _, _, err := ks.InitializeRootKey("operator", "", seed, false); err == nil {
		t.Fatalf("expected existing root key to be preserved without overwrite")
	}

	servicePub, _, err := ks.DeriveKeyFromRole("operator", RoleService, credential.AlgDilithium3, false)
	if err != nil {
		t.Fatalf("DeriveKeyFromRole: %v", err)
	}
	if !strings.HasPrefix(servicePub, "dilithium3:") {
		t.Fatalf("expected dilithium3 role key, got %q", servicePub[:20])
	}

	exported, err := ks.ExportKey("operator", "")
	if err != nil {
		t.Fatalf("ExportKey: %v", err)
	}
	if exported != rootPub {
		t.Fatalf("root export mismatch")
	}
	exported, err = ks.ExportKey("operator", RoleService)
	if err != nil {
		t.Fatalf("ExportKey role: %v", err)
	}
	if exported != servicePub {
		t.Fatalf("role export mismatch")
	}

	signer, err := ks.LoadSigner("", "operator", RoleService, "")
	if err != nil {
		t.Fatalf("LoadSigner: %v", err)
	}
	if signer.Public().String() != servicePub {
		t.Fatalf("loaded signer does not match exported key")
	}

	entries, err := ks.ListKeys()
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(entries) != 1 || entries[0].Identifier != "operator" || len(entries[0].Roles) != 1 || entries[0].Roles[0] != RoleService {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestKeyStoreIssueCertificate(t *testing.T) {
	dir := t.TempDir()
	ks := &KeyStore{Directory: dir}
	seed := make([]byte, SeedSize)
	seed[5] = 1
	rootPub, _, err := ks.InitializeRootKey("root", credential.AlgEd25519, seed, false)
	if err != nil {
		t.Fatalf("InitializeRootKey: %v", err)
	}
	leaf, err := GenerateSigner(credential.AlgECDSAP256, nil)
	if err != nil {
		t.Fatalf("GenerateSigner: %v", err)
	}
	cert, err := ks.IssueCertificate("root", leaf.Public(), 500)
	if err != nil {
		t.Fatalf("IssueCertificate: %v", err)
	}
	root, err := credential.ParsePublicKey(rootPub)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	if err := cert.Verify(root, 100); err != nil {
		t.Fatalf("certificate did not verify: %v", err)
	}
}

func TestLoadSignerSources(t *testing.T) {
	ks := &KeyStore{Directory: t.TempDir()}
	if _, err := ks.LoadSigner("", "", "", ""); err == nil {
		t.Fatalf("expected error with no signer")
	}
	hexSeed := strings.Repeat("ab", SeedSize)
	inline, err := ks.LoadSigner("ed448:"+hexSeed, "", "", "")
	if err != nil {
		t.Fatalf("inline seed: %v", err)
	}
	if inline.Public().Alg != credential.AlgEd448 {
		t.Fatalf("expected ed448 signer")
	}

	path := filepath.Join(t.TempDir(), "k.key")
	if err := os.WriteFile(path, []byte(hexSeed+"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	fromFile, err := ks.LoadSigner("", "", "", path)
	if err != nil {
		t.Fatalf("file seed: %v", err)
	}
	if fromFile.Public().Alg != credential.AlgEd25519 {
		t.Fatalf("expected bare hex to load as ed25519")
	}
}
