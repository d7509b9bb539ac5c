package keys

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/cloudflare/circl/sign/ed448"
	"golang.org/x/crypto/sha3"

	"github.com/tonkeeper/2fa-extension/credential"
)

// Ed25519Signer signs with an ed25519 private key.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
}

func (s *Ed25519Signer) Public() credential.PublicKey {
	return credential.Ed25519Key(s.priv.Public().(ed25519.PublicKey))
}

func (s *Ed25519Signer) Sign(digest []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, digest), nil
}

// Ed448Signer signs with an ed448 private key and an empty context.
type Ed448Signer struct {
	priv ed448.PrivateKey
}

func (s *Ed448Signer) Public() credential.PublicKey {
	pub := s.priv.Public().(ed448.PublicKey)
	return credential.PublicKey{Alg: credential.AlgEd448, Key: append([]byte(nil), pub...)}
}

func (s *Ed448Signer) Sign(digest []byte) ([]byte, error) {
	return ed448.Sign(s.priv, digest, ""), nil
}

// Dilithium3Signer signs with a dilithium mode3 private key.
type Dilithium3Signer struct {
	pub  *mode3.PublicKey
	priv *mode3.PrivateKey
}

func (s *Dilithium3Signer) Public() credential.PublicKey {
	return credential.PublicKey{Alg: credential.AlgDilithium3, Key: s.pub.Bytes()}
}

func (s *Dilithium3Signer) Sign(digest []byte) ([]byte, error) {
	if s.priv == nil {
		return nil, errors.New("missing private key")
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(s.priv, digest, sig)
	return sig, nil
}

// ECDSAP256Signer signs with an ecdsa P-256 key, producing ASN.1 signatures.
type ECDSAP256Signer struct {
	priv *ecdsa.PrivateKey
}

func (s *ECDSAP256Signer) Public() credential.PublicKey {
	ek, err := s.priv.PublicKey.ECDH()
	if err != nil {
		return credential.PublicKey{Alg: credential.AlgECDSAP256}
	}
	return credential.PublicKey{Alg: credential.AlgECDSAP256, Key: ek.Bytes()}
}

func (s *ECDSAP256Signer) Sign(digest []byte) ([]byte, error) {
	return ecdsa.SignASN1(rand.Reader, s.priv, digest)
}

// NewEd25519Signer returns the ed25519 signer for a 32-byte seed.
func NewEd25519Signer(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Ed25519Signer{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// SignerFromSeed derives a signer of the given algorithm from a 32-byte seed.
//
// Algorithms with larger native seeds expand it with SHAKE256.
func SignerFromSeed(alg credential.Alg, seed []byte) (credential.Signer, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	switch alg {
	case credential.AlgEd25519, "":
		return NewEd25519Signer(seed)
	case credential.AlgEd448:
		wide := expand(seed, string(alg), ed448.SeedSize)
		return &Ed448Signer{priv: ed448.NewKeyFromSeed(wide)}, nil
	case credential.AlgDilithium3:
		var s [mode3.SeedSize]byte
		copy(s[:], expand(seed, string(alg), mode3.SeedSize))
		pub, priv := mode3.NewKeyFromSeed(&s)
		return &Dilithium3Signer{pub: pub, priv: priv}, nil
	case credential.AlgECDSAP256:
		return ecdsaFromSeed(seed), nil
	default:
		return nil, fmt.Errorf("%w: %q", credential.ErrUnsupportedAlg, string(alg))
	}
}

// GenerateSigner returns a fresh signer of the given algorithm.
func GenerateSigner(alg credential.Alg, r io.Reader) (credential.Signer, error) {
	if r == nil {
		r = rand.Reader
	}
	seed := make([]byte, SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, err
	}
	return SignerFromSeed(alg, seed)
}

func expand(seed []byte, label string, n int) []byte {
	out := make([]byte, n)
	in := make([]byte, 0, len(seed)+len(label)+1)
	in = append(in, label...)
	in = append(in, 0)
	in = append(in, seed...)
	sha3.ShakeSum256(out, in)
	return out
}

// ecdsaFromSeed maps the expanded seed onto a scalar in [1, n-1].
func ecdsaFromSeed(seed []byte) *ECDSAP256Signer {
	curve := elliptic.P256()
	n := curve.Params().N
	k := new(big.Int).SetBytes(expand(seed, string(credential.AlgECDSAP256), 48))
	nMinus1 := new(big.Int).Sub(n, big.NewInt(1))
	k.Mod(k, nMinus1)
	k.Add(k, big.NewInt(1))
	priv := &ecdsa.PrivateKey{PublicKey: ecdsa.PublicKey{Curve: curve}, D: k}
	priv.PublicKey.X, priv.PublicKey.Y = curve.ScalarBaseMult(k.FillBytes(make([]byte, 32)))
	return &ECDSAP256Signer{priv: priv}
}
