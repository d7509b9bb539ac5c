package credential

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// HashAlg names the digest applied to a request before it is signed.
type HashAlg string

const (
	HashSHA256  HashAlg = "sha256"
	HashSHA512  HashAlg = "sha512"
	HashSHA3256 HashAlg = "sha3-256"
)

// DefaultHashAlg is used when a store does not name one.
const DefaultHashAlg = HashSHA256

// Digest hashes message with alg. The empty alg selects DefaultHashAlg.
func Digest(alg HashAlg, message []byte) ([]byte, error) {
	switch alg {
	case "", HashSHA256:
		s := sha256.Sum256(message)
		return s[:], nil
	case HashSHA512:
		s := sha512.Sum512(message)
		return s[:], nil
	case HashSHA3256:
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedHash, string(alg))
	}
}
