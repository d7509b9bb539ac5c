package credential

import (
	"bytes"
	"crypto/ed25519"
	"crypto/elliptic"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/cloudflare/circl/sign/ed448"
)

// Alg names a signature algorithm.
type Alg string

const (
	AlgEd25519    Alg = "ed25519"
	AlgEd448      Alg = "ed448"
	AlgDilithium3 Alg = "dilithium3"
	AlgECDSAP256  Alg = "ecdsa-p256"
)

// p256PointSize is the length of an uncompressed SEC1 P-256 point.
const p256PointSize = 65

// PublicKey is an algorithm-tagged public key.
//
// Its textual form is "<alg>:<base64>", e.g. "ed25519:3q2+7w...".
type PublicKey struct {
	Alg Alg    `cbor:"1,keyasint"`
	Key []byte `cbor:"2,keyasint"`
}

// Ed25519Key wraps a raw ed25519 public key.
func Ed25519Key(pub ed25519.PublicKey) PublicKey {
	return PublicKey{Alg: AlgEd25519, Key: append([]byte(nil), pub...)}
}

// ParsePublicKey parses the "<alg>:<base64>" encoding and validates the key.
func ParsePublicKey(s string) (PublicKey, error) {
	alg, enc, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return PublicKey{}, fmt.Errorf("%w: expected <alg>:<base64>", ErrInvalidKey)
	}
	raw, err := decodeBase64(enc)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	k := PublicKey{Alg: Alg(alg), Key: raw}
	if err := k.Validate(); err != nil {
		return PublicKey{}, err
	}
	return k, nil
}

func (k PublicKey) String() string {
	if k.IsZero() {
		return ""
	}
	return string(k.Alg) + ":" + base64.StdEncoding.EncodeToString(k.Key)
}

// IsZero reports whether k carries no key material.
func (k PublicKey) IsZero() bool {
	return k.Alg == "" && len(k.Key) == 0
}

// Equal reports whether both keys use the same algorithm and bytes.
func (k PublicKey) Equal(o PublicKey) bool {
	return k.Alg == o.Alg && bytes.Equal(k.Key, o.Key)
}

// Clone returns a deep copy of k.
func (k PublicKey) Clone() PublicKey {
	if k.Key == nil {
		return PublicKey{Alg: k.Alg}
	}
	return PublicKey{Alg: k.Alg, Key: append([]byte(nil), k.Key...)}
}

// Validate checks the key length (and curve membership where applicable).
func (k PublicKey) Validate() error {
	switch k.Alg {
	case AlgEd25519:
		if len(k.Key) != ed25519.PublicKeySize {
			return fmt.Errorf("%w: ed25519 key must be %d bytes, got %d", ErrInvalidKey, ed25519.PublicKeySize, len(k.Key))
		}
	case AlgEd448:
		if len(k.Key) != ed448.PublicKeySize {
			return fmt.Errorf("%w: ed448 key must be %d bytes, got %d", ErrInvalidKey, ed448.PublicKeySize, len(k.Key))
		}
	case AlgDilithium3:
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(k.Key); err != nil {
			return fmt.Errorf("%w: dilithium3: %v", ErrInvalidKey, err)
		}
	case AlgECDSAP256:
		if len(k.Key) != p256PointSize {
			return fmt.Errorf("%w: ecdsa-p256 key must be an uncompressed %d byte point", ErrInvalidKey, p256PointSize)
		}
		if x, _ := elliptic.Unmarshal(elliptic.P256(), k.Key); x == nil {
			return fmt.Errorf("%w: ecdsa-p256 point not on curve", ErrInvalidKey)
		}
	case "":
		return fmt.Errorf("%w: missing algorithm", ErrInvalidKey)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedAlg, string(k.Alg))
	}
	return nil
}

func decodeBase64(s string) ([]byte, error) {
	// Prefer standard padded encoding, but accept raw encoding too.
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
