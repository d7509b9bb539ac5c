package envelope

import (
	"fmt"

	"github.com/tonkeeper/2fa-extension/credential"
)

// SendActions forwards an opaque action list to the protected account.
type SendActions struct {
	Message []byte `cbor:"1,keyasint"`
	Mode    uint8  `cbor:"2,keyasint"`
}

// AddDevice registers Key under ID.
type AddDevice struct {
	ID  uint32               `cbor:"1,keyasint"`
	Key credential.PublicKey `cbor:"2,keyasint"`
}

// RemoveDevice unregisters ID.
type RemoveDevice struct {
	ID uint32 `cbor:"1,keyasint"`
}

// Recover names the device slot and key installed when a recovery completes.
// It is the payload of both fast-recover and slow-recover.
type Recover struct {
	ID  uint32               `cbor:"1,keyasint"`
	Key credential.PublicKey `cbor:"2,keyasint"`
}

// Delegate names the successor deployed when a delegation completes.
type Delegate struct {
	Template     []byte `cbor:"1,keyasint"`
	ForwardValue uint64 `cbor:"2,keyasint"`
}

// Install is the owner's internal message that creates a guard.
type Install struct {
	Store *credential.Store `cbor:"1,keyasint"`
}

// EncodePayload encodes v as canonical CBOR.
func EncodePayload(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// DecodePayload strictly decodes b into v.
func DecodePayload(b []byte, v any) error {
	if err := decMode.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// PayloadFor returns a zero value of the payload type op carries, or nil for
// operations that take no payload.
func PayloadFor(op OpCode) (any, error) {
	switch op {
	case OpInstall:
		return new(Install), nil
	case OpSendActions:
		return new(SendActions), nil
	case OpAddDevice:
		return new(AddDevice), nil
	case OpRemoveDevice:
		return new(RemoveDevice), nil
	case OpFastRecover, OpSlowRecover:
		return new(Recover), nil
	case OpDelegate:
		return new(Delegate), nil
	case OpCancelRecovery, OpCancelDelegation, OpRemoveExtension:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownOp, uint32(op))
	}
}

// DecodeFor decodes the payload of an op. Operations without parameters must
// carry an empty payload.
func DecodeFor(op OpCode, b []byte) (any, error) {
	v, err := PayloadFor(op)
	if err != nil {
		return nil, err
	}
	if v == nil {
		if len(b) != 0 {
			return nil, ErrUnexpectedData
		}
		return nil, nil
	}
	if err := DecodePayload(b, v); err != nil {
		return nil, err
	}
	return v, nil
}

// EncodeFor encodes v after checking it is the payload type op carries.
// v may be a payload value or a pointer to one.
func EncodeFor(op OpCode, v any) ([]byte, error) {
	want, err := PayloadFor(op)
	if err != nil {
		return nil, err
	}
	if want == nil {
		if v != nil {
			return nil, ErrUnexpectedData
		}
		return nil, nil
	}
	if !sameType(want, v) {
		return nil, fmt.Errorf("%w: %s wants %T, got %T", ErrPayloadMismatch, op, want, v)
	}
	return EncodePayload(v)
}

func sameType(want, v any) bool {
	switch want.(type) {
	case *Install:
		switch v.(type) {
		case Install, *Install:
			return true
		}
	case *SendActions:
		switch v.(type) {
		case SendActions, *SendActions:
			return true
		}
	case *AddDevice:
		switch v.(type) {
		case AddDevice, *AddDevice:
			return true
		}
	case *RemoveDevice:
		switch v.(type) {
		case RemoveDevice, *RemoveDevice:
			return true
		}
	case *Recover:
		switch v.(type) {
		case Recover, *Recover:
			return true
		}
	case *Delegate:
		switch v.(type) {
		case Delegate, *Delegate:
			return true
		}
	}
	return false
}
