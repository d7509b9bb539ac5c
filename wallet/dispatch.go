package wallet

import (
	"context"
	"fmt"

	"github.com/tonkeeper/2fa-extension/guard"
)

// Dispatch carries out committed guard effects against acct in order.
func Dispatch(ctx context.Context, acct Account, guardAddr string, effects []guard.Effect) error {
	for _, e := range effects {
		var err error
		switch e := e.(type) {
		case guard.Forward:
			var seqno uint32
			if seqno, err = acct.Seqno(ctx); err != nil {
				return fmt.Errorf("wallet: read seqno: %w", err)
			}
			err = acct.Submit(ctx, Action{Kind: ActionForward, Seqno: seqno, Message: e.Message, Mode: e.Mode})
		case guard.Deploy:
			err = acct.Submit(ctx, Action{
				Kind:     ActionDeploy,
				Target:   TemplateAddress(e.Template),
				Template: e.Template,
				Value:    e.Value,
			})
		case guard.Detach:
			d := Detachment{Guard: guardAddr, RestoreSignatureAuth: e.RestoreSignatureAuth}
			if len(e.Successor) > 0 {
				d.Successor = TemplateAddress(e.Successor)
			}
			err = acct.DetachExtension(ctx, d)
		default:
			err = fmt.Errorf("wallet: unknown effect %T", e)
		}
		if err != nil {
			return fmt.Errorf("wallet: dispatch %s: %w", e.Kind(), err)
		}
	}
	return nil
}
