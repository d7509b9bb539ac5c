package credential

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Certificate authorizes Key to act as the primary credential until ValidUntil
// (unix seconds). Signature is produced by the root trust anchor over Digest().
type Certificate struct {
	ValidUntil uint64    `cbor:"1,keyasint"`
	Key        PublicKey `cbor:"2,keyasint"`
	Signature  []byte    `cbor:"3,keyasint"`
}

// SignedMessage returns the bytes the root signs.
//
// For ed25519 keys this is be64(ValidUntil) || key, which keeps certificates
// minted by external root signers verifiable. Other algorithms insert the
// algorithm name and a zero byte before the key.
func (c *Certificate) SignedMessage() []byte {
	var head [8]byte
	binary.BigEndian.PutUint64(head[:], c.ValidUntil)
	out := make([]byte, 0, len(head)+len(c.Key.Alg)+1+len(c.Key.Key))
	out = append(out, head[:]...)
	if c.Key.Alg != AlgEd25519 {
		out = append(out, c.Key.Alg...)
		out = append(out, 0)
	}
	return append(out, c.Key.Key...)
}

// Digest is sha256(SignedMessage()).
func (c *Certificate) Digest() []byte {
	s := sha256.Sum256(c.SignedMessage())
	return s[:]
}

// Verify checks expiry against now and the root signature.
// A certificate is valid only while ValidUntil > now.
func (c *Certificate) Verify(root PublicKey, now uint64) error {
	if c == nil {
		return ErrMissingCertificate
	}
	if c.ValidUntil <= now {
		return ErrCertificateExpired
	}
	if err := c.Key.Validate(); err != nil {
		return err
	}
	if !Verify(root, c.Digest(), c.Signature) {
		return ErrCertificateInvalid
	}
	return nil
}

// Clone returns a deep copy of c.
func (c *Certificate) Clone() *Certificate {
	if c == nil {
		return nil
	}
	return &Certificate{
		ValidUntil: c.ValidUntil,
		Key:        c.Key.Clone(),
		Signature:  append([]byte(nil), c.Signature...),
	}
}

// IssueCertificate signs a certificate for key with the root signer.
func IssueCertificate(root Signer, key PublicKey, validUntil uint64) (*Certificate, error) {
	if root == nil {
		return nil, fmt.Errorf("credential: missing root signer")
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	c := &Certificate{ValidUntil: validUntil, Key: key.Clone()}
	sig, err := root.Sign(c.Digest())
	if err != nil {
		return nil, fmt.Errorf("credential: sign certificate: %w", err)
	}
	c.Signature = sig
	return c, nil
}
