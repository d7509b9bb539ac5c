package wallet

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/tonkeeper/2fa-extension/credential"
)

// ErrUnauthenticated is returned when an Origin does not prove that the
// account sent a message.
var ErrUnauthenticated = errors.New("wallet: message not authenticated by the account")

// Origin proves that an internal message was sent by Sender: Signature is
// made with Sender's account key over OriginDigest(Sender, body).
type Origin struct {
	Sender    string               `cbor:"1,keyasint"`
	Key       credential.PublicKey `cbor:"2,keyasint"`
	Signature []byte               `cbor:"3,keyasint"`
}

// OriginDigest is the digest an account key signs to vouch for body.
func OriginDigest(sender string, body []byte) []byte {
	h := sha256.New()
	h.Write([]byte("tfa-origin\x00"))
	h.Write([]byte(sender))
	h.Write([]byte{0})
	h.Write(body)
	return h.Sum(nil)
}

// SignOrigin vouches for body as sent by sender using the account signer s.
func SignOrigin(s credential.Signer, sender string, body []byte) (Origin, error) {
	sig, err := s.Sign(OriginDigest(sender, body))
	if err != nil {
		return Origin{}, err
	}
	return Origin{Sender: sender, Key: s.Public(), Signature: sig}, nil
}

// AccountAddress returns the address of an account controlled by key.
func AccountAddress(key credential.PublicKey) string {
	sum := sha256.Sum256([]byte("tfa-wallet\x00" + key.String()))
	return "0:" + hex.EncodeToString(sum[:])
}
