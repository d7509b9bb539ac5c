package guard

import (
	"errors"

	"github.com/tonkeeper/2fa-extension/credential"
	"github.com/tonkeeper/2fa-extension/envelope"
)

// apply mutates t.Next according to the decoded payload.
func (g *Guard) apply(t *Transition, payload any, now uint64) error {
	switch t.Op {
	case envelope.OpSendActions:
		p := payload.(*envelope.SendActions)
		t.Outcome = OutcomeForwarded
		t.Effects = []Effect{Forward{Message: append([]byte(nil), p.Message...), Mode: p.Mode}}
		return nil
	case envelope.OpAddDevice:
		return g.addDevice(t, payload.(*envelope.AddDevice))
	case envelope.OpRemoveDevice:
		p := payload.(*envelope.RemoveDevice)
		if err := t.Next.Credentials.Devices.RemoveDevice(p.ID); err != nil {
			return wrap(CodeUnknownID, t.Op, "device id not registered", err)
		}
		t.Outcome = OutcomeDeviceRemoved
		return nil
	case envelope.OpFastRecover:
		return g.recover(t, RecoveryFast, payload.(*envelope.Recover), now)
	case envelope.OpSlowRecover:
		return g.recover(t, RecoverySlow, payload.(*envelope.Recover), now)
	case envelope.OpCancelRecovery:
		t.Next.Recovery = Recovery{}
		t.Outcome = OutcomeRecoveryCancelled
		return nil
	case envelope.OpDelegate:
		return g.delegate(t, payload.(*envelope.Delegate), now)
	case envelope.OpCancelDelegation:
		t.Next.Delegation = Delegation{}
		t.Outcome = OutcomeDelegationCancelled
		return nil
	case envelope.OpRemoveExtension:
		t.Outcome = OutcomeRemoved
		t.Effects = []Effect{Detach{RestoreSignatureAuth: true}}
		t.Removed = true
		return nil
	}
	return Reject(CodeUnsupported, t.Op, "not a signed guard operation")
}

func (g *Guard) addDevice(t *Transition, p *envelope.AddDevice) error {
	err := t.Next.Credentials.Devices.AddDevice(p.ID, p.Key)
	switch {
	case err == nil:
		t.Outcome = OutcomeDeviceAdded
		return nil
	case errors.Is(err, credential.ErrDuplicateID):
		return wrap(CodeDuplicateID, t.Op, "device id already registered", err)
	default:
		return wrap(CodeMalformed, t.Op, "invalid device key", err)
	}
}

// recover drives the recovery machine. A repeated request for the pending
// target completes it once the delay has elapsed; a different target re-arms
// the machine with a fresh delay.
func (g *Guard) recover(t *Transition, path RecoveryPath, p *envelope.Recover, now uint64) error {
	if err := p.Key.Validate(); err != nil {
		return wrap(CodeMalformed, t.Op, "invalid recovery key", err)
	}
	cur := t.Next.Recovery
	switch {
	case cur.Path == RecoveryFast && path == RecoverySlow:
		return Reject(CodeParameterMismatch, t.Op, "fast recovery pending; slow recovery cannot replace it")
	case cur.Path == path && cur.matches(p.ID, p.Key):
		if now < cur.UnblockAt {
			return Reject(CodeDelayNotElapsed, t.Op, "recovery delay has not elapsed")
		}
		if err := t.Next.Credentials.Devices.SetDevice(p.ID, p.Key); err != nil {
			return wrap(CodeMalformed, t.Op, "invalid recovery key", err)
		}
		t.Next.Recovery = Recovery{}
		t.Outcome = OutcomeRecoveryCompleted
		return nil
	}

	delay := g.delays.Slow
	if path == RecoveryFast {
		delay = g.delays.Fast
	}
	t.Next.Recovery = Recovery{
		Path:      path,
		DeviceID:  p.ID,
		Key:       p.Key.Clone(),
		UnblockAt: unblockAt(now, delay),
	}
	t.Outcome = OutcomeRecoveryArmed
	return nil
}

func (g *Guard) delegate(t *Transition, p *envelope.Delegate, now uint64) error {
	if len(p.Template) == 0 {
		return Reject(CodeMalformed, t.Op, "missing successor template")
	}
	cur := t.Next.Delegation
	if !cur.Pending {
		t.Next.Delegation = Delegation{
			Pending:      true,
			Template:     append([]byte(nil), p.Template...),
			ForwardValue: p.ForwardValue,
			UnblockAt:    unblockAt(now, g.delays.Delegation),
		}
		t.Outcome = OutcomeDelegationArmed
		return nil
	}
	if !cur.matches(p.Template, p.ForwardValue) {
		return Reject(CodeParameterMismatch, t.Op, "delegation parameters differ from the pending request")
	}
	if now < cur.UnblockAt {
		return Reject(CodeDelayNotElapsed, t.Op, "delegation delay has not elapsed")
	}
	successor := append([]byte(nil), cur.Template...)
	t.Next.Delegation = Delegation{}
	t.Outcome = OutcomeDelegationCompleted
	t.Effects = []Effect{
		Deploy{Template: successor, Value: cur.ForwardValue},
		Detach{Successor: successor},
	}
	t.Removed = true
	return nil
}
