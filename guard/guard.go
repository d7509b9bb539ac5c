package guard

import (
	"errors"
	"math"

	"github.com/tonkeeper/2fa-extension/credential"
	"github.com/tonkeeper/2fa-extension/envelope"
)

// Guard is a single installed two-factor guard. It is not safe for
// concurrent use; callers serialize requests per guard.
type Guard struct {
	state   State
	delays  Delays
	removed bool
}

// Transition is the result of an accepted request.
type Transition struct {
	Op            envelope.OpCode
	Outcome       Outcome
	CounterBefore uint64
	Next          State
	Effects       []Effect
	// Removed is set when the guard detaches itself from the account.
	Removed bool
}

// Install creates a guard from the owner's install message. sender must be the
// protected account itself.
func Install(owner, sender string, msg *envelope.Install, opts Options) (*Guard, error) {
	if owner == "" {
		return nil, Reject(CodeMalformed, envelope.OpInstall, "missing owner address")
	}
	if sender != owner {
		return nil, Reject(CodeNotOwner, envelope.OpInstall, "install must be sent by the protected account")
	}
	if msg == nil || msg.Store == nil {
		return nil, Reject(CodeMalformed, envelope.OpInstall, "missing credential store")
	}
	if err := msg.Store.Validate(); err != nil {
		return nil, wrap(CodeMalformed, envelope.OpInstall, "invalid credential store", err)
	}
	st := State{Owner: owner, Credentials: msg.Store.Clone()}
	if st.Credentials.HashAlg == "" {
		st.Credentials.HashAlg = credential.DefaultHashAlg
	}
	return &Guard{state: st, delays: opts.Delays.withDefaults()}, nil
}

// InstallPayload decodes an install payload and installs the guard.
func InstallPayload(owner, sender string, payload []byte, opts Options) (*Guard, error) {
	var msg envelope.Install
	if err := envelope.DecodePayload(payload, &msg); err != nil {
		return nil, wrap(CodeMalformed, envelope.OpInstall, "undecodable install payload", err)
	}
	return Install(owner, sender, &msg, opts)
}

// Restore rebuilds a guard from a persisted state.
func Restore(st State, opts Options) (*Guard, error) {
	if err := st.Validate(); err != nil {
		return nil, err
	}
	return &Guard{state: st.Clone(), delays: opts.Delays.withDefaults()}, nil
}

// State returns a copy of the current state.
func (g *Guard) State() State { return g.state.Clone() }

func (g *Guard) Owner() string { return g.state.Owner }

func (g *Guard) Counter() uint64 { return g.state.Counter }

// Removed reports whether the guard has detached itself.
func (g *Guard) Removed() bool { return g.removed }

func (g *Guard) Delays() Delays { return g.delays }

// Authorize evaluates env at now and commits the transition on success.
func (g *Guard) Authorize(env *envelope.Envelope, now uint64) (*Transition, error) {
	t, err := g.Evaluate(env, now)
	if err != nil {
		return nil, err
	}
	if err := g.Commit(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Commit installs a transition produced by Evaluate on the same state.
func (g *Guard) Commit(t *Transition) error {
	if t == nil {
		return errors.New("guard: nil transition")
	}
	if g.removed {
		return Reject(CodeNotInstalled, t.Op, "guard has been removed")
	}
	if t.CounterBefore != g.state.Counter {
		return Reject(CodeInvalidCounter, t.Op, "transition is stale")
	}
	g.state = t.Next.Clone()
	g.removed = t.Removed
	return nil
}

// Evaluate runs every check against env and returns the transition it would
// cause. The guard is not modified.
func (g *Guard) Evaluate(env *envelope.Envelope, now uint64) (*Transition, error) {
	if env == nil {
		return nil, Reject(CodeMalformed, 0, "missing envelope")
	}
	op := env.Op
	if g.removed {
		return nil, Reject(CodeNotInstalled, op, "guard has been removed")
	}

	st := &g.state
	if env.Counter != st.Counter {
		return nil, Reject(CodeInvalidCounter, op, "counter does not match")
	}
	if st.Counter == math.MaxUint64 {
		return nil, Reject(CodeInvalidCounter, op, "counter exhausted")
	}
	if env.ValidUntil < now {
		return nil, Reject(CodeExpired, op, "request expired")
	}
	if err := g.gate(op); err != nil {
		return nil, err
	}
	if err := g.verify(env, now); err != nil {
		return nil, err
	}

	payload, err := envelope.DecodeFor(op, env.Payload)
	if err != nil {
		return nil, wrap(CodeMalformed, op, "undecodable payload", err)
	}
	t := &Transition{Op: op, CounterBefore: st.Counter, Next: st.Clone()}
	if err := g.apply(t, payload, now); err != nil {
		return nil, err
	}
	t.Next.Counter++
	return t, nil
}

// gate enforces shape support and mutual exclusion of the time-locked flows.
func (g *Guard) gate(op envelope.OpCode) error {
	st := &g.state
	shape := st.Credentials.Shape()
	switch op {
	case envelope.OpSendActions, envelope.OpRemoveExtension, envelope.OpDelegate, envelope.OpCancelDelegation:
	case envelope.OpAddDevice, envelope.OpRemoveDevice,
		envelope.OpFastRecover, envelope.OpSlowRecover, envelope.OpCancelRecovery:
		if shape != credential.ShapeDevices {
			return Reject(CodeUnsupported, op, "operation requires a device-set credential store")
		}
	default:
		return Reject(CodeUnsupported, op, "not a signed guard operation")
	}

	recoveryOp := op == envelope.OpFastRecover || op == envelope.OpSlowRecover || op == envelope.OpCancelRecovery
	delegationOp := op == envelope.OpDelegate || op == envelope.OpCancelDelegation
	switch {
	case st.Recovery.Pending() && !recoveryOp:
		return Reject(CodeBlockedByRecovery, op, "device recovery in progress")
	case st.Delegation.Pending && !delegationOp:
		return Reject(CodeBlockedByRecovery, op, "delegation in progress")
	case op == envelope.OpCancelRecovery && !st.Recovery.Pending():
		return Reject(CodeNotPending, op, "no recovery pending")
	case op == envelope.OpCancelDelegation && !st.Delegation.Pending:
		return Reject(CodeNotPending, op, "no delegation pending")
	}
	return nil
}

type secondaryKind uint8

const (
	secondaryNone secondaryKind = iota
	secondaryDevice
	secondarySeed
)

// requirement returns which signatures op needs in the current state.
func (g *Guard) requirement(op envelope.OpCode) (primary bool, secondary secondaryKind) {
	st := &g.state
	switch op {
	case envelope.OpSendActions, envelope.OpAddDevice, envelope.OpRemoveDevice, envelope.OpRemoveExtension:
		if st.Credentials.Shape() == credential.ShapeCertificate {
			return true, secondarySeed
		}
		return true, secondaryDevice
	case envelope.OpFastRecover:
		return true, secondarySeed
	case envelope.OpCancelRecovery:
		if st.Recovery.Path == RecoveryFast {
			return true, secondarySeed
		}
		return false, secondarySeed
	case envelope.OpSlowRecover, envelope.OpDelegate, envelope.OpCancelDelegation:
		return false, secondarySeed
	}
	return false, secondaryNone
}

// verify checks every required signature; all of them are evaluated even
// when an earlier one fails.
func (g *Guard) verify(env *envelope.Envelope, now uint64) error {
	op := env.Op
	digest, err := env.Digest(g.state.Credentials.HashAlg)
	if err != nil {
		return wrap(CodeMalformed, op, "unusable hash algorithm", err)
	}
	anchors := g.state.Credentials.Anchors()
	needPrimary, secondary := g.requirement(op)

	primaryOK := true
	if needPrimary {
		primaryOK = anchors.VerifyPrimary(digest, env.Primary, env.Certificate, now)
	}
	var secondaryOK bool
	switch secondary {
	case secondaryDevice:
		secondaryOK = anchors.VerifySecondary(digest, env.Secondary, env.DeviceID)
	case secondarySeed:
		secondaryOK = anchors.VerifySeed(digest, env.Secondary)
	}
	if !primaryOK || !secondaryOK {
		return Reject(CodeBadSignature, op, "signature verification failed")
	}
	return nil
}
