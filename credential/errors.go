package credential

import "errors"

var (
	ErrDuplicateID        = errors.New("credential: device id already registered")
	ErrUnknownID          = errors.New("credential: device id not registered")
	ErrInvalidKey         = errors.New("credential: invalid public key")
	ErrUnsupportedAlg     = errors.New("credential: unsupported key algorithm")
	ErrUnsupportedHash    = errors.New("credential: unsupported hash algorithm")
	ErrCertificateExpired = errors.New("credential: certificate expired")
	ErrCertificateInvalid = errors.New("credential: certificate signature invalid")
	ErrMissingCertificate = errors.New("credential: missing certificate")
	ErrInvalidShape       = errors.New("credential: store must hold exactly one shape")
)
