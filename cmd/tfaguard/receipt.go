package main

import (
	"bytes"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/tonkeeper/2fa-extension/journal"
	"github.com/tonkeeper/2fa-extension/journal/bundle"
	"github.com/tonkeeper/2fa-extension/receipt"
)

func newReceiptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receipt",
		Short: "Inspect guard receipts",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "verify <file>",
			Short: "Check a receipt is canonical and its signature, if any, is valid",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				b, err := readInput(cmd, args[0])
				if err != nil {
					return err
				}
				r, err := receipt.Parse(b)
				if err != nil {
					return err
				}
				signed, key, err := receipt.VerifySignature(b)
				if err != nil {
					return err
				}
				id, err := receipt.CID(b)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "OK %s %s counter=%d outcome=%s\n", id, r.Op, r.Counter, r.Outcome)
				if signed {
					fmt.Fprintf(w, "signed-by %s\n", key)
				} else {
					fmt.Fprintln(w, "unsigned")
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "cid <file>",
			Short: "Print the content identifier of a receipt",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				b, err := readInput(cmd, args[0])
				if err != nil {
					return err
				}
				if _, err := receipt.Parse(b); err != nil {
					return err
				}
				id, err := receipt.CID(b)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			},
		},
	)
	return cmd
}

func newBundleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Inspect exported history bundles",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "verify <file>",
		Short: "Verify every record of a bundle and print its labels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			ids, err := bundle.Import(bytes.NewReader(b), journal.NewMemory(), bundle.ImportOptions{})
			if err != nil {
				return err
			}
			labels, err := bundle.ReadIndex(bytes.NewReader(b))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "OK %d record(s)\n", len(ids))
			for _, name := range slices.Sorted(maps.Keys(labels)) {
				fmt.Fprintf(w, "%s\t%s\n", name, labels[name])
			}
			return nil
		},
	})
	return cmd
}
