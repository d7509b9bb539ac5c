package keys

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tonkeeper/2fa-extension/credential"
)

// KeyStore keeps hex-encoded seeds on the local filesystem.
//
// Layout: <dir>/<identifier>/root.key and <dir>/<identifier>/roles/<role>.key.
// A key file holds "<alg>:<hex seed>"; a bare hex seed is read as ed25519.
//
// EXPERIMENTAL: this storage surface may change in minor releases.
type KeyStore struct {
	Directory string
}

type KeyEntry struct {
	Identifier string
	Roles      []string
}

func GetDefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".tfaguard", "keys"), nil
}

func CreateKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = GetDefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) getRootKeyFilePath(identifier string) string {
	return filepath.Join(ks.Directory, identifier, "root.key")
}

func (ks *KeyStore) getRoleKeyFilePath(identifier, role string) string {
	return filepath.Join(ks.Directory, identifier, "roles", role+".key")
}

func CheckKeyName(identifier string) error {
	if identifier == "" {
		return errors.New("identifier cannot be empty")
	}
	for _, char := range identifier {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in identifier", char)
	}
	return nil
}

func CheckRole(role string) error {
	if role == "" {
		return errors.New("role cannot be empty")
	}
	for _, char := range role {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in role", char)
	}
	return nil
}

func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimSpace(seedHex)
	seedHex = strings.TrimPrefix(seedHex, "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", SeedSize, len(data))
	}
	return data, nil
}

// Seed is a stored seed and the algorithm it is expanded for.
type Seed struct {
	Alg  credential.Alg
	Seed []byte
}

// Signer expands the seed into a signer.
func (s Seed) Signer() (credential.Signer, error) {
	return SignerFromSeed(s.Alg, s.Seed)
}

// ParseSeed parses "<alg>:<hex>" or a bare hex seed (ed25519).
func ParseSeed(text string) (Seed, error) {
	text = strings.TrimSpace(text)
	alg := credential.AlgEd25519
	if a, rest, ok := strings.Cut(text, ":"); ok {
		alg, text = credential.Alg(a), rest
	}
	seed, err := ParseSeedHex(text)
	if err != nil {
		return Seed{}, err
	}
	return Seed{Alg: alg, Seed: seed}, nil
}

func (ks *KeyStore) saveSeedToFile(filePath string, seed Seed, overwrite bool) error {
	if len(seed.Seed) != SeedSize {
		return fmt.Errorf("expected seed length of %d bytes", SeedSize)
	}
	if _, err := seed.Signer(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(filePath, flags, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.WriteString(string(seed.Alg) + ":" + hex.EncodeToString(seed.Seed) + "\n"); err != nil {
		return err
	}
	return file.Close()
}

func (ks *KeyStore) loadSeedFromFile(filePath string) (Seed, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Seed{}, err
	}
	return ParseSeed(string(data))
}

// InitializeRootKey stores seed as the root of identifier and returns its public key.
func (ks *KeyStore) InitializeRootKey(identifier string, alg credential.Alg, seed []byte, overwrite bool) (publicKey string, filePath string, err error) {
	if err := CheckKeyName(identifier); err != nil {
		return "", "", err
	}
	if alg == "" {
		alg = credential.AlgEd25519
	}
	st := Seed{Alg: alg, Seed: seed}
	filePath = ks.getRootKeyFilePath(identifier)
	if err := ks.saveSeedToFile(filePath, st, overwrite); err != nil {
		return "", "", err
	}
	pub, err := PublicKeyFromSeed(alg, seed)
	return pub, filePath, err
}

// DeriveKeyFromRole derives and stores the role seed of from. The role key
// uses alg, or the root's algorithm when alg is empty.
func (ks *KeyStore) DeriveKeyFromRole(from, role string, alg credential.Alg, overwrite bool) (publicKey string, filePath string, err error) {
	if err := CheckKeyName(from); err != nil {
		return "", "", err
	}
	if err := CheckRole(role); err != nil {
		return "", "", err
	}
	root, err := ks.loadSeedFromFile(ks.getRootKeyFilePath(from))
	if err != nil {
		return "", "", err
	}
	roleSeed, err := DeriveRoleSeed(root.Seed, role)
	if err != nil {
		return "", "", err
	}
	if alg == "" {
		alg = root.Alg
	}
	filePath = ks.getRoleKeyFilePath(from, role)
	if err := ks.saveSeedToFile(filePath, Seed{Alg: alg, Seed: roleSeed}, overwrite); err != nil {
		return "", "", err
	}
	pub, err := PublicKeyFromSeed(alg, roleSeed)
	return pub, filePath, err
}

// ExportKey returns the public key of identifier's root (role == "") or role key.
func (ks *KeyStore) ExportKey(identifier string, role string) (string, error) {
	seed, err := ks.loadNamed(identifier, role)
	if err != nil {
		return "", err
	}
	return PublicKeyFromSeed(seed.Alg, seed.Seed)
}

func (ks *KeyStore) loadNamed(identifier, role string) (Seed, error) {
	if err := CheckKeyName(identifier); err != nil {
		return Seed{}, err
	}
	if role == "" {
		return ks.loadSeedFromFile(ks.getRootKeyFilePath(identifier))
	}
	if err := CheckRole(role); err != nil {
		return Seed{}, err
	}
	return ks.loadSeedFromFile(ks.getRoleKeyFilePath(identifier, role))
}

// LoadSigner resolves a signer from, in order: an inline "<alg>:<hex>" seed,
// a key file, or a stored identifier and role.
func (ks *KeyStore) LoadSigner(seedText, signerName, signerRole, keyFile string) (credential.Signer, error) {
	var (
		seed Seed
		err  error
	)
	switch {
	case seedText != "":
		seed, err = ParseSeed(seedText)
	case keyFile != "":
		seed, err = ks.loadSeedFromFile(keyFile)
	case signerName != "":
		seed, err = ks.loadNamed(signerName, signerRole)
	default:
		return nil, errors.New("no signer provided")
	}
	if err != nil {
		return nil, err
	}
	return seed.Signer()
}

// IssueCertificate signs a certificate for key with the root seed of identifier.
func (ks *KeyStore) IssueCertificate(identifier string, key credential.PublicKey, validUntil uint64) (*credential.Certificate, error) {
	root, err := ks.LoadSigner("", identifier, "", "")
	if err != nil {
		return nil, err
	}
	return credential.IssueCertificate(root, key, validUntil)
}

func (ks *KeyStore) ListKeys() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var identifiers []string
	for _, entry := range entries {
		if entry.IsDir() {
			identifiers = append(identifiers, entry.Name())
		}
	}
	sort.Strings(identifiers)

	var result []KeyEntry
	for _, identifier := range identifiers {
		rolesDir := filepath.Join(ks.Directory, identifier, "roles")
		roleEntries, rerr := os.ReadDir(rolesDir)
		var roles []string
		if rerr == nil {
			for _, roleEntry := range roleEntries {
				if roleEntry.IsDir() {
					continue
				}
				if strings.HasSuffix(roleEntry.Name(), ".key") {
					roles = append(roles, strings.TrimSuffix(roleEntry.Name(), ".key"))
				}
			}
			sort.Strings(roles)
		}
		result = append(result, KeyEntry{Identifier: identifier, Roles: roles})
	}
	return result, nil
}
