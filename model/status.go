package model

import (
	"time"

	"github.com/tonkeeper/2fa-extension/fees"
	"github.com/tonkeeper/2fa-extension/guard"
	"github.com/tonkeeper/2fa-extension/wallet"
)

// StatusFromState projects a guard state onto its boundary view.
func StatusFromState(st guard.State, delays guard.Delays) GuardStatus {
	out := GuardStatus{
		Owner:     st.Owner,
		Extension: wallet.ExtensionAddress(st.Owner),
		Counter:   st.Counter,
		Recovery:  RecoveryStatus{Path: st.Recovery.Path.String()},
		Delays: DelaySeconds{
			Fast:       seconds(delays.Fast),
			Slow:       seconds(delays.Slow),
			Delegation: seconds(delays.Delegation),
		},
	}
	if c := st.Credentials; c != nil {
		out.Shape = c.Shape().String()
		out.HashAlg = string(c.HashAlg)
		switch {
		case c.Devices != nil:
			out.Service = c.Devices.Service.String()
			out.Seed = c.Devices.Seed.String()
			out.Devices = []Device{}
			for _, id := range c.Devices.IDs() {
				k, _ := c.Devices.Device(id)
				out.Devices = append(out.Devices, Device{ID: id, Key: k.String()})
			}
		case c.Certificates != nil:
			out.Root = c.Certificates.Root.String()
			out.Seed = c.Certificates.Seed.String()
		}
	}
	if st.Recovery.Pending() {
		out.Recovery.DeviceID = st.Recovery.DeviceID
		out.Recovery.Key = st.Recovery.Key.String()
		out.Recovery.UnblockAt = st.Recovery.UnblockAt
	}
	if d := st.Delegation; d.Pending {
		out.Delegation = DelegationStatus{
			Pending:      true,
			Target:       wallet.TemplateAddress(d.Template),
			ForwardValue: d.ForwardValue,
			UnblockAt:    d.UnblockAt,
		}
	}
	return out
}

// ResultFromTransition projects an accepted transition.
func ResultFromTransition(t *guard.Transition, effects []string) SubmitResult {
	if effects == nil {
		effects = []string{}
	}
	return SubmitResult{
		Op:      t.Op.String(),
		Outcome: string(t.Outcome),
		Counter: t.Next.Counter,
		Removed: t.Removed,
		Effects: effects,
	}
}

func EstimateFrom(e fees.Estimate) FeeEstimate {
	return FeeEstimate{
		GuardCompute:  e.GuardCompute,
		Forward:       e.Forward,
		WalletCompute: e.WalletCompute,
		Total:         e.Total,
	}
}

func seconds(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d / time.Second)
}
