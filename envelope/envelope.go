package envelope

import (
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/tonkeeper/2fa-extension/credential"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		IndefLength:       cbor.IndefLengthForbidden,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
		MaxNestedLevels:   16,
		MaxArrayElements:  4096,
		MaxMapPairs:       4096,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Envelope is a signed guard request.
type Envelope struct {
	Op         OpCode `cbor:"1,keyasint"`
	Counter    uint64 `cbor:"2,keyasint"`
	ValidUntil uint64 `cbor:"3,keyasint"`
	Payload    []byte `cbor:"4,keyasint,omitempty"`

	// Primary is the service-key or certificate-key signature.
	Primary     []byte                  `cbor:"5,keyasint,omitempty"`
	Certificate *credential.Certificate `cbor:"6,keyasint,omitempty"`
	// Secondary is the device-key or seed-key signature.
	Secondary []byte `cbor:"7,keyasint,omitempty"`
	DeviceID  uint32 `cbor:"8,keyasint,omitempty"`
}

// New returns an unsigned envelope.
func New(op OpCode, counter, validUntil uint64, payload []byte) *Envelope {
	return &Envelope{
		Op:         op,
		Counter:    counter,
		ValidUntil: validUntil,
		Payload:    append([]byte(nil), payload...),
	}
}

// SigningMessage returns be32(op) || be64(counter) || be64(valid_until) || payload.
func (e *Envelope) SigningMessage() []byte {
	out := make([]byte, 4+8+8, 4+8+8+len(e.Payload))
	binary.BigEndian.PutUint32(out[0:4], uint32(e.Op))
	binary.BigEndian.PutUint64(out[4:12], e.Counter)
	binary.BigEndian.PutUint64(out[12:20], e.ValidUntil)
	return append(out, e.Payload...)
}

// Digest hashes the signing message with alg.
func (e *Envelope) Digest(alg credential.HashAlg) ([]byte, error) {
	return credential.Digest(alg, e.SigningMessage())
}

// Marshal encodes e as canonical CBOR.
func (e *Envelope) Marshal() ([]byte, error) {
	return encMode.Marshal(e)
}

// Unmarshal decodes a canonical CBOR envelope.
func Unmarshal(b []byte) (*Envelope, error) {
	e := new(Envelope)
	if err := decMode.Unmarshal(b, e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return e, nil
}

// Clone returns a deep copy of e.
func (e *Envelope) Clone() *Envelope {
	if e == nil {
		return nil
	}
	out := *e
	out.Payload = cloneBytes(e.Payload)
	out.Primary = cloneBytes(e.Primary)
	out.Secondary = cloneBytes(e.Secondary)
	out.Certificate = e.Certificate.Clone()
	return &out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
