package credential

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/cloudflare/circl/sign/ed448"
)

// Signer produces signatures over request digests.
type Signer interface {
	Public() PublicKey
	Sign(digest []byte) ([]byte, error)
}

// Verify reports whether sig is a valid signature of digest under pub.
//
// Malformed keys and signatures verify as false.
func Verify(pub PublicKey, digest, sig []byte) bool {
	if len(sig) == 0 {
		return false
	}
	switch pub.Alg {
	case AlgEd25519:
		if len(pub.Key) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
			return false
		}
		return ed25519.Verify(ed25519.PublicKey(pub.Key), digest, sig)
	case AlgEd448:
		if len(pub.Key) != ed448.PublicKeySize || len(sig) != ed448.SignatureSize {
			return false
		}
		return ed448.Verify(ed448.PublicKey(pub.Key), digest, sig, "")
	case AlgDilithium3:
		if len(sig) != mode3.SignatureSize {
			return false
		}
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub.Key); err != nil {
			return false
		}
		return mode3.Verify(&pk, digest, sig)
	case AlgECDSAP256:
		if len(pub.Key) != p256PointSize {
			return false
		}
		x, y := elliptic.Unmarshal(elliptic.P256(), pub.Key)
		if x == nil {
			return false
		}
		return ecdsa.VerifyASN1(&ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}, digest, sig)
	default:
		return false
	}
}
