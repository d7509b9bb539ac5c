package guard

// EffectKind names a wallet-facing effect.
type EffectKind string

const (
	EffectForward EffectKind = "forward"
	EffectDeploy  EffectKind = "deploy"
	EffectDetach  EffectKind = "detach"
)

// Effect is an action the protected account must carry out after a
// transition is committed.
type Effect interface {
	Kind() EffectKind
}

// Forward hands an authorized action list to the account.
type Forward struct {
	Message []byte
	Mode    uint8
}

// Deploy creates the successor described by Template, funded with Value.
type Deploy struct {
	Template []byte
	Value    uint64
}

// Detach removes the guard from the account. When Successor is set it becomes
// the account's only extension; RestoreSignatureAuth re-enables plain
// signature authentication.
type Detach struct {
	Successor            []byte
	RestoreSignatureAuth bool
}

func (Forward) Kind() EffectKind { return EffectForward }
func (Deploy) Kind() EffectKind  { return EffectDeploy }
func (Detach) Kind() EffectKind  { return EffectDetach }

// Outcome summarizes what an accepted request did.
type Outcome string

const (
	OutcomeForwarded           Outcome = "forwarded"
	OutcomeDeviceAdded         Outcome = "device-added"
	OutcomeDeviceRemoved       Outcome = "device-removed"
	OutcomeRecoveryArmed       Outcome = "recovery-armed"
	OutcomeRecoveryCompleted   Outcome = "recovery-completed"
	OutcomeRecoveryCancelled   Outcome = "recovery-cancelled"
	OutcomeDelegationArmed     Outcome = "delegation-armed"
	OutcomeDelegationCompleted Outcome = "delegation-completed"
	OutcomeDelegationCancelled Outcome = "delegation-cancelled"
	OutcomeRemoved             Outcome = "removed"
)
