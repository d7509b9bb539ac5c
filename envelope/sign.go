package envelope

import (
	"fmt"

	"github.com/tonkeeper/2fa-extension/credential"
)

// Credentials are the signers applied to an envelope.
//
// Primary is the service key (device shape) or the certificate key, in which
// case Certificate must be set. Secondary is the device key or the seed key.
// Seed-only operations set only Secondary.
type Credentials struct {
	Primary     credential.Signer
	Certificate *credential.Certificate
	Secondary   credential.Signer
	DeviceID    uint32
}

// Sign fills the signature fields of e using the digest algorithm alg.
func (e *Envelope) Sign(alg credential.HashAlg, c Credentials) error {
	if c.Primary == nil && c.Secondary == nil {
		return ErrMissingSigner
	}
	digest, err := e.Digest(alg)
	if err != nil {
		return err
	}
	e.Primary, e.Secondary, e.Certificate, e.DeviceID = nil, nil, nil, c.DeviceID
	if c.Primary != nil {
		if e.Primary, err = c.Primary.Sign(digest); err != nil {
			return fmt.Errorf("envelope: primary signature: %w", err)
		}
		e.Certificate = c.Certificate.Clone()
	}
	if c.Secondary != nil {
		if e.Secondary, err = c.Secondary.Sign(digest); err != nil {
			return fmt.Errorf("envelope: secondary signature: %w", err)
		}
	}
	return nil
}

// Build encodes payload for op and returns a signed envelope.
func Build(op OpCode, counter, validUntil uint64, payload any, alg credential.HashAlg, c Credentials) (*Envelope, error) {
	raw, err := EncodeFor(op, payload)
	if err != nil {
		return nil, err
	}
	e := New(op, counter, validUntil, raw)
	if err := e.Sign(alg, c); err != nil {
		return nil, err
	}
	return e, nil
}
