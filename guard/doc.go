// Package guard implements the two-factor authorization state machine that
// sits in front of a protected account.
//
// A Guard owns one State: the protected account, a strictly increasing request
// counter, the credential store, and the recovery and delegation machines.
// Every signed request passes the same checks in the same order:
//
//  1. the counter must equal the guard counter (InvalidCounter)
//  2. the request must not have expired (Expired)
//  3. the operation must be allowed by the credential shape and by any pending
//     time-locked flow (Unsupported, BlockedByRecovery, NotPending)
//  4. the required signatures must verify (BadSignature)
//  5. the payload must decode and apply (Malformed, DuplicateId, UnknownId,
//     ParameterMismatch, DelayNotElapsed)
//
// Evaluate computes the resulting Transition without touching the guard;
// Commit installs it; Authorize does both. A rejected request never changes
// state.
package guard
