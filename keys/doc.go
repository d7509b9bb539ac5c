// Package keys provides signers and local key management for guard operators
// and users.
//
// Stable:
//   - Deterministic role-seed derivation and seed-to-signer construction for
//     ed25519, ed448, dilithium3 and ecdsa-p256.
//
// Experimental:
//   - Filesystem-backed key storage (KeyStore). It is a local-first utility and
//     may change in minor releases.
package keys
