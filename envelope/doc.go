// Package envelope defines the signed request format accepted by a guard.
//
// An Envelope names an operation, pins the guard counter and an expiry, and
// carries an operation-specific payload plus the signatures that authorize it.
// Every signature covers Hash(be32(op) || be64(counter) || be64(valid_until) || payload)
// where Hash is the digest algorithm of the guard's credential store.
//
// Envelopes and payloads travel as canonical CBOR. Decoding is strict:
// duplicate map keys, unknown fields, indefinite lengths and trailing bytes are
// rejected.
package envelope
