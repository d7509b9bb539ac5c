package rpc

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/tonkeeper/2fa-extension/wallet"
)

var (
	wireEnc cbor.EncMode
	wireDec cbor.DecMode
)

func init() {
	var err error
	if wireEnc, err = cbor.CanonicalEncOptions().EncMode(); err != nil {
		panic(err)
	}
	wireDec, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		IndefLength:       cbor.IndefLengthForbidden,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// InstallRequest carries the owner's install message and the account's
// proof that it sent it.
type InstallRequest struct {
	Owner   string        `cbor:"1,keyasint"`
	Payload []byte        `cbor:"2,keyasint"`
	Origin  wallet.Origin `cbor:"3,keyasint"`
}

// SubmitRequest carries a signed envelope. Origin is set for requests relayed
// through the protected account.
type SubmitRequest struct {
	Owner    string         `cbor:"1,keyasint"`
	Envelope []byte         `cbor:"2,keyasint"`
	Origin   *wallet.Origin `cbor:"3,keyasint,omitempty"`
}

func encodeWire(v any) ([]byte, error) {
	return wireEnc.Marshal(v)
}

func decodeWire(b []byte, v any) error {
	if err := wireDec.Unmarshal(b, v); err != nil {
		return fmt.Errorf("rpc: decode request: %w", err)
	}
	return nil
}
