package guard

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/tonkeeper/2fa-extension/credential"
)

var (
	snapEnc cbor.EncMode
	snapDec cbor.DecMode
)

func init() {
	var err error
	snapEnc, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	snapDec, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// RecoveryPath tags the pending recovery.
type RecoveryPath uint8

const (
	RecoveryIdle RecoveryPath = 0
	RecoveryFast RecoveryPath = 1
	RecoverySlow RecoveryPath = 2
)

func (p RecoveryPath) String() string {
	switch p {
	case RecoveryIdle:
		return "idle"
	case RecoveryFast:
		return "fast"
	case RecoverySlow:
		return "slow"
	default:
		return fmt.Sprintf("path(%d)", uint8(p))
	}
}

// Recovery is the device recovery machine. DeviceID, Key and UnblockAt are
// meaningful only while Path is not idle.
type Recovery struct {
	Path      RecoveryPath         `cbor:"1,keyasint"`
	DeviceID  uint32               `cbor:"2,keyasint,omitempty"`
	Key       credential.PublicKey `cbor:"3,keyasint,omitempty"`
	UnblockAt uint64               `cbor:"4,keyasint,omitempty"`
}

func (r Recovery) Pending() bool { return r.Path != RecoveryIdle }

func (r Recovery) matches(id uint32, key credential.PublicKey) bool {
	return r.DeviceID == id && r.Key.Equal(key)
}

// Delegation is the ownership-transfer machine.
type Delegation struct {
	Pending      bool   `cbor:"1,keyasint"`
	Template     []byte `cbor:"2,keyasint,omitempty"`
	ForwardValue uint64 `cbor:"3,keyasint,omitempty"`
	UnblockAt    uint64 `cbor:"4,keyasint,omitempty"`
}

func (d Delegation) matches(template []byte, value uint64) bool {
	return bytes.Equal(d.Template, template) && d.ForwardValue == value
}

// State is the complete record of one guard.
type State struct {
	Owner       string            `cbor:"1,keyasint"`
	Counter     uint64            `cbor:"2,keyasint"`
	Credentials *credential.Store `cbor:"3,keyasint"`
	Recovery    Recovery          `cbor:"4,keyasint"`
	Delegation  Delegation        `cbor:"5,keyasint"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	out.Credentials = s.Credentials.Clone()
	out.Recovery.Key = s.Recovery.Key.Clone()
	if s.Delegation.Template != nil {
		out.Delegation.Template = append([]byte(nil), s.Delegation.Template...)
	}
	return out
}

// Validate checks structural invariants of a restored state.
func (s State) Validate() error {
	if s.Owner == "" {
		return fmt.Errorf("guard: state has no owner")
	}
	if err := s.Credentials.Validate(); err != nil {
		return fmt.Errorf("guard: credentials: %w", err)
	}
	if s.Recovery.Path > RecoverySlow {
		return fmt.Errorf("guard: unknown recovery path %d", s.Recovery.Path)
	}
	if s.Recovery.Pending() && s.Delegation.Pending {
		return fmt.Errorf("guard: recovery and delegation both pending")
	}
	if s.Recovery.Pending() && s.Credentials.Shape() != credential.ShapeDevices {
		return fmt.Errorf("guard: recovery pending on a %s store", s.Credentials.Shape())
	}
	return nil
}

// plainState has State's fields without its methods, so the CBOR encoder
// does not re-enter MarshalBinary.
type plainState State

// MarshalBinary encodes s as canonical CBOR.
func (s State) MarshalBinary() ([]byte, error) {
	return snapEnc.Marshal(plainState(s))
}

// UnmarshalState decodes and validates a state snapshot.
func UnmarshalState(b []byte) (State, error) {
	var p plainState
	if err := snapDec.Unmarshal(b, &p); err != nil {
		return State{}, fmt.Errorf("guard: decode state: %w", err)
	}
	s := State(p)
	if err := s.Validate(); err != nil {
		return State{}, err
	}
	return s, nil
}
