package guard

import (
	"errors"

	"github.com/tonkeeper/2fa-extension/envelope"
)

// Code is a stable rejection category.
//
// Callers should branch on Code rather than matching error strings.
type Code string

const (
	CodeInvalidCounter    Code = "InvalidCounter"
	CodeExpired           Code = "Expired"
	CodeBadSignature      Code = "BadSignature"
	CodeBlockedByRecovery Code = "BlockedByRecovery"
	CodeDuplicateID       Code = "DuplicateId"
	CodeUnknownID         Code = "UnknownId"
	CodeParameterMismatch Code = "ParameterMismatch"
	CodeNotPending        Code = "NotPending"
	CodeDelayNotElapsed   Code = "DelayNotElapsed"
	CodeMalformed         Code = "Malformed"
	CodeUnsupported       Code = "Unsupported"
	CodeNotInstalled      Code = "NotInstalled"
	CodeAlreadyInstalled  Code = "AlreadyInstalled"
	CodeNotOwner          Code = "NotOwner"
)

// Codes lists every rejection code.
var Codes = []Code{
	CodeInvalidCounter,
	CodeExpired,
	CodeBadSignature,
	CodeBlockedByRecovery,
	CodeDuplicateID,
	CodeUnknownID,
	CodeParameterMismatch,
	CodeNotPending,
	CodeDelayNotElapsed,
	CodeMalformed,
	CodeUnsupported,
	CodeNotInstalled,
	CodeAlreadyInstalled,
	CodeNotOwner,
}

// Rejection is returned for every refused request. A rejected request leaves
// the guard state untouched.
//
// Message is intended for humans; do not match on it.
type Rejection struct {
	Code    Code
	Op      envelope.OpCode
	Message string
	Cause   error
}

func (r *Rejection) Error() string {
	if r == nil {
		return "<nil>"
	}
	if r.Op == 0 {
		return string(r.Code) + ": " + r.Message
	}
	return r.Op.String() + ": " + string(r.Code) + ": " + r.Message
}

func (r *Rejection) Unwrap() error {
	if r == nil {
		return nil
	}
	return r.Cause
}

// Reject builds a rejection without a cause.
func Reject(code Code, op envelope.OpCode, msg string) error {
	return &Rejection{Code: code, Op: op, Message: msg}
}

func wrap(code Code, op envelope.OpCode, msg string, cause error) error {
	return &Rejection{Code: code, Op: op, Message: msg, Cause: cause}
}

// CodeOf returns the rejection code carried by err, or "" if err is not a
// rejection.
func CodeOf(err error) Code {
	var r *Rejection
	if !errors.As(err, &r) {
		return ""
	}
	return r.Code
}

// IsCode reports whether err is (or wraps) a rejection with the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
