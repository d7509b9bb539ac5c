package model

import (
	"errors"
	"fmt"

	"github.com/tonkeeper/2fa-extension/guard"
)

type ErrorCode string

// Boundary codes that are not guard rejections. Rejections use the guard
// code verbatim (e.g. "InvalidCounter").
const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrInternal       ErrorCode = "INTERNAL"
)

// CodedError is a stable error with a machine-readable code and a human message.
type CodedError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

// Rejection reports whether e carries a guard rejection code.
func (e *CodedError) Rejection() (guard.Code, bool) {
	if e == nil {
		return "", false
	}
	for _, c := range guard.Codes {
		if string(c) == string(e.Code) {
			return c, true
		}
	}
	return "", false
}

// ErrorFrom projects err onto a CodedError. Guard rejections keep their
// code; anything else is INTERNAL.
func ErrorFrom(err error) *CodedError {
	if err == nil {
		return nil
	}
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce
	}
	var r *guard.Rejection
	if errors.As(err, &r) {
		return &CodedError{Code: ErrorCode(r.Code), Message: r.Error()}
	}
	return &CodedError{Code: ErrInternal, Message: err.Error()}
}
