package envelope

import "errors"

var (
	ErrUnknownOp       = errors.New("envelope: unknown operation")
	ErrMalformed       = errors.New("envelope: malformed encoding")
	ErrUnexpectedData  = errors.New("envelope: operation takes no payload")
	ErrMissingSigner   = errors.New("envelope: missing signer")
	ErrPayloadMismatch = errors.New("envelope: payload type does not match operation")
)
