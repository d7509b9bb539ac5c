package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonkeeper/2fa-extension/credential"
	"github.com/tonkeeper/2fa-extension/envelope"
	"github.com/tonkeeper/2fa-extension/fees"
	"github.com/tonkeeper/2fa-extension/model"
	"github.com/tonkeeper/2fa-extension/wallet"
)

func newInstallCommand(g *globalOptions) *cobra.Command {
	var (
		owner, accountKey, hashAlg string
		service, seed, root        string
		devices                    []string
	)
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install a guard on an account",
		Long: `Install a guard on an account. Device-set guards take --service and one
--device id=<key> per device; certificate guards take --root. Both take --seed.
The install message is signed with the account's own key (--account-key);
--owner defaults to the address that key controls.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := buildStore(service, seed, root, devices)
			if err != nil {
				return err
			}
			st.HashAlg = credential.HashAlg(hashAlg)
			if err := st.Validate(); err != nil {
				return err
			}
			payload, err := envelope.EncodePayload(envelope.Install{Store: st})
			if err != nil {
				return err
			}
			origin, err := g.signOrigin(accountKey, &owner, payload)
			if err != nil {
				return err
			}
			c, err := g.dial()
			if err != nil {
				return err
			}
			defer c.Close()
			res, err := c.Install(cmd.Context(), owner, payload, origin)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	f := cmd.Flags()
	f.StringVar(&owner, "owner", "", "protected account address (defaults to the --account-key address)")
	f.StringVar(&accountKey, "account-key", "", "the protected account's own signing key")
	f.StringVar(&hashAlg, "hash-alg", string(credential.DefaultHashAlg), "request digest algorithm")
	f.StringVar(&service, "service", "", "service public key")
	f.StringVar(&seed, "seed", "", "seed public key")
	f.StringVar(&root, "root", "", "root public key for certificate guards")
	f.StringArrayVar(&devices, "device", nil, "device as id=<key>; repeatable")
	_ = cmd.MarkFlagRequired("account-key")
	_ = cmd.MarkFlagRequired("seed")
	return cmd
}

// signOrigin signs body with the account key ref on behalf of *owner,
// filling *owner with the key's address when it is empty.
func (g *globalOptions) signOrigin(ref string, owner *string, body []byte) (wallet.Origin, error) {
	ks, err := g.keyStore()
	if err != nil {
		return wallet.Origin{}, err
	}
	s, err := resolveSigner(ks, ref)
	if err != nil {
		return wallet.Origin{}, fmt.Errorf("account key: %w", err)
	}
	if s == nil {
		return wallet.Origin{}, fmt.Errorf("account key is required")
	}
	if *owner == "" {
		*owner = wallet.AccountAddress(s.Public())
	}
	return wallet.SignOrigin(s, *owner, body)
}

func buildStore(service, seed, root string, devices []string) (*credential.Store, error) {
	seedKey, err := credential.ParsePublicKey(seed)
	if err != nil {
		return nil, fmt.Errorf("--seed: %w", err)
	}
	if root != "" {
		if service != "" || len(devices) > 0 {
			return nil, fmt.Errorf("--root excludes --service and --device")
		}
		rootKey, err := credential.ParsePublicKey(root)
		if err != nil {
			return nil, fmt.Errorf("--root: %w", err)
		}
		return credential.NewCertificateStore(rootKey, seedKey)
	}
	serviceKey, err := credential.ParsePublicKey(service)
	if err != nil {
		return nil, fmt.Errorf("--service: %w", err)
	}
	set := make(map[uint32]credential.PublicKey, len(devices))
	for _, d := range devices {
		idText, keyText, ok := strings.Cut(d, "=")
		if !ok {
			return nil, fmt.Errorf("--device %q: expected id=<key>", d)
		}
		id, err := strconv.ParseUint(idText, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("--device %q: %w", d, err)
		}
		if _, dup := set[uint32(id)]; dup {
			return nil, fmt.Errorf("--device %q: duplicate id", d)
		}
		if set[uint32(id)], err = credential.ParsePublicKey(keyText); err != nil {
			return nil, fmt.Errorf("--device %q: %w", d, err)
		}
	}
	return credential.NewDeviceStore(serviceKey, seedKey, set)
}

func newSubmitCommand(g *globalOptions) *cobra.Command {
	var owner, relayKey, in string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a signed request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := readInput(cmd, in)
			if err != nil {
				return err
			}
			raw, err := decodeInput(b, func(b []byte) bool {
				_, err := envelope.Unmarshal(b)
				return err == nil
			})
			if err != nil {
				return err
			}
			c, err := g.dial()
			if err != nil {
				return err
			}
			defer c.Close()
			var res *model.SubmitResult
			if relayKey != "" {
				var origin wallet.Origin
				if origin, err = g.signOrigin(relayKey, &owner, raw); err != nil {
					return err
				}
				res, err = c.SubmitRelayed(cmd.Context(), owner, raw, origin)
			} else {
				res, err = c.Submit(cmd.Context(), owner, raw)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	f := cmd.Flags()
	f.StringVar(&owner, "owner", "", "protected account address")
	f.StringVar(&relayKey, "relay-key", "", "relay the request through the account, signing with its key")
	f.StringVar(&in, "in", "-", "request file, raw or base64 (- for stdin)")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newStatusCommand(g *globalOptions) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a guard's credentials and pending operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.dial()
			if err != nil {
				return err
			}
			defer c.Close()
			st, err := c.Status(cmd.Context(), owner)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "protected account address")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newCounterCommand(g *globalOptions) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "counter",
		Short: "Print the counter the next request must carry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.dial()
			if err != nil {
				return err
			}
			defer c.Close()
			n, err := c.Counter(cmd.Context(), owner)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "protected account address")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newFeeCommand(g *globalOptions) *cobra.Command {
	var (
		q          model.FeeQuery
		messageHex string
		local      bool
	)
	cmd := &cobra.Command{
		Use:   "fee",
		Short: "Estimate the value to attach to a send-actions request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if messageHex != "" {
				msg, err := hex.DecodeString(messageHex)
				if err != nil {
					return fmt.Errorf("--message-hex: %w", err)
				}
				q.Message = msg
			}
			if local {
				s := fees.Basechain()
				est, err := s.Estimate(q.ForwardBits, q.Outputs, q.Extended)
				if len(q.Message) > 0 {
					est, err = s.EstimateMessage(q.Message, q.Outputs, q.Extended)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), model.EstimateFrom(est))
			}
			c, err := g.dial()
			if err != nil {
				return err
			}
			defer c.Close()
			est, err := c.EstimateFee(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), est)
		},
	}
	f := cmd.Flags()
	f.Uint64Var(&q.ForwardBits, "bits", 0, "forwarded message size in bits")
	f.StringVar(&messageHex, "message-hex", "", "forwarded message as hex (overrides --bits)")
	f.Uint64Var(&q.Outputs, "outputs", 1, "number of actions the account emits")
	f.Uint64Var(&q.Extended, "extended", 0, "number of extended actions")
	f.BoolVar(&local, "local", false, "use the built-in basechain schedule instead of the server's")
	return cmd
}

func newHistoryCommand(g *globalOptions) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List a guard's committed requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.dial()
			if err != nil {
				return err
			}
			defer c.Close()
			hist, err := c.History(cmd.Context(), owner)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), hist)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "protected account address")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newExportCommand(g *globalOptions) *cobra.Command {
	var owner, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download a guard's history as a verifiable tar bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.dial()
			if err != nil {
				return err
			}
			defer c.Close()
			b, err := c.Export(cmd.Context(), owner)
			if err != nil {
				return err
			}
			if out == "-" {
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			return os.WriteFile(out, b, 0o644)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "protected account address")
	cmd.Flags().StringVar(&out, "out", "-", "bundle file (- for stdout)")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
