package main

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonkeeper/2fa-extension/credential"
	"github.com/tonkeeper/2fa-extension/envelope"
	"github.com/tonkeeper/2fa-extension/keys"
)

func newKeyCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage local signing keys",
	}
	cmd.AddCommand(newKeyInitCommand(g), newKeyDeriveCommand(g), newKeyExportCommand(g), newKeyListCommand(g))
	return cmd
}

func newKeyInitCommand(g *globalOptions) *cobra.Command {
	var (
		name, alg, seedHex string
		force              bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a root key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ks, err := g.keyStore()
			if err != nil {
				return err
			}
			var seed []byte
			if seedHex != "" {
				if seed, err = keys.ParseSeedHex(seedHex); err != nil {
					return fmt.Errorf("--seed-hex: %w", err)
				}
			} else {
				seed = make([]byte, keys.SeedSize)
				if _, err := rand.Read(seed); err != nil {
					return err
				}
			}
			pub, path, err := ks.InitializeRootKey(name, credential.Alg(alg), seed, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", pub, path)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "identity name")
	f.StringVar(&alg, "alg", string(credential.AlgEd25519), "signature algorithm (ed25519, ed448, dilithium3, ecdsa-p256)")
	f.StringVar(&seedHex, "seed-hex", "", "32-byte seed as hex (random when omitted)")
	f.BoolVar(&force, "force", false, "overwrite an existing key")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newKeyDeriveCommand(g *globalOptions) *cobra.Command {
	var (
		from, role, alg string
		device          int64
		force           bool
	)
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive a role key from a root key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if device >= 0 {
				if role != "" {
					return fmt.Errorf("--role and --device are exclusive")
				}
				role = keys.DeviceRole(uint32(device))
			}
			if role == "" {
				return fmt.Errorf("one of --role or --device is required")
			}
			ks, err := g.keyStore()
			if err != nil {
				return err
			}
			pub, path, err := ks.DeriveKeyFromRole(from, role, credential.Alg(alg), force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", pub, path)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&from, "from", "", "root identity name")
	f.StringVar(&role, "role", "", "role name (service, seed, root, ...)")
	f.Int64Var(&device, "device", -1, "derive the key of this device id")
	f.StringVar(&alg, "alg", "", "signature algorithm (defaults to the root's)")
	f.BoolVar(&force, "force", false, "overwrite an existing key")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func newKeyExportCommand(g *globalOptions) *cobra.Command {
	var name, role string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print a public key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ks, err := g.keyStore()
			if err != nil {
				return err
			}
			pub, err := ks.ExportKey(name, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pub)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "identity name")
	cmd.Flags().StringVar(&role, "role", "", "role name (root key when omitted)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newKeyListCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored identities and roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ks, err := g.keyStore()
			if err != nil {
				return err
			}
			entries, err := ks.ListKeys()
			if err != nil {
				return err
			}
			for _, e := range entries {
				if len(e.Roles) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), e.Identifier)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", e.Identifier, strings.Join(e.Roles, ","))
			}
			return nil
		},
	}
}

func newCertCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Manage primary-key certificates",
	}
	var (
		root, key, out string
		validUntil     uint64
		validFor       time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign a certificate for a primary key with a root key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ks, err := g.keyStore()
			if err != nil {
				return err
			}
			signer, err := resolveSigner(ks, root)
			if err != nil {
				return fmt.Errorf("--root: %w", err)
			}
			pub, err := credential.ParsePublicKey(key)
			if err != nil {
				return fmt.Errorf("--key: %w", err)
			}
			if validUntil == 0 {
				validUntil = uint64(time.Now().Add(validFor).Unix())
			}
			cert, err := credential.IssueCertificate(signer, pub, validUntil)
			if err != nil {
				return err
			}
			b, err := envelope.EncodePayload(cert)
			if err != nil {
				return err
			}
			return writeOutput(cmd, out, b)
		},
	}
	f := issue.Flags()
	f.StringVar(&root, "root", "", "root signer reference")
	f.StringVar(&key, "key", "", "certified public key (<alg>:<base64>)")
	f.Uint64Var(&validUntil, "valid-until", 0, "expiry as unix seconds")
	f.DurationVar(&validFor, "valid-for", 24*time.Hour, "validity from now when --valid-until is unset")
	f.StringVar(&out, "out", "", "write CBOR to this file instead of base64 to stdout")
	_ = issue.MarkFlagRequired("root")
	_ = issue.MarkFlagRequired("key")
	cmd.AddCommand(issue)
	return cmd
}
