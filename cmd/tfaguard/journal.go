package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonkeeper/2fa-extension/journal"
	"github.com/tonkeeper/2fa-extension/journal/bundle"

	_ "github.com/tonkeeper/2fa-extension/journal/grpcarchive"
	_ "github.com/tonkeeper/2fa-extension/journal/kubo"
	_ "github.com/tonkeeper/2fa-extension/journal/localfs"
)

type archiveFlags struct {
	backend string
	opts    []string
}

func (a *archiveFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&a.backend, "backend", "localfs", "journal backend (see 'journal backends')")
	cmd.Flags().StringArrayVar(&a.opts, "opt", nil, "backend setting as key=value; repeatable")
}

func (a *archiveFlags) open() (journal.Archive, func() error, error) {
	cfg := make(map[string]string, len(a.opts))
	for _, o := range a.opts {
		k, v, ok := strings.Cut(o, "=")
		if !ok || k == "" {
			return nil, nil, fmt.Errorf("--opt %q: expected key=value", o)
		}
		cfg[k] = v
	}
	arch, closeFn, err := journal.Open(a.backend, journal.UsageCLI, cfg)
	if err != nil {
		return nil, nil, err
	}
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	return arch, closeFn, nil
}

func newJournalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Read and populate journal archives",
	}

	backends := &cobra.Command{
		Use:   "backends",
		Short: "List journal backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, b := range journal.List(journal.UsageCLI) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", b.Name, strings.Join(b.Keys, ","), b.Description)
			}
			return nil
		},
	}

	var getFlags archiveFlags
	get := &cobra.Command{
		Use:   "get <cid>",
		Short: "Print a verified record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := journal.ParseCID(args[0])
			if err != nil {
				return err
			}
			arch, closeFn, err := getFlags.open()
			if err != nil {
				return err
			}
			defer closeFn()
			b, err := journal.New(arch).Load(id)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	getFlags.register(get)

	var entryFlags archiveFlags
	entry := &cobra.Command{
		Use:   "entry <request-cid> <snapshot-cid> <receipt-cid>",
		Short: "Verify the records of one history entry and list them by kind",
		Long:  "Verify the records of one history entry and list them by kind. Pass \"\" for a record the entry lacks.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := journal.ParseEntry(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			arch, closeFn, err := entryFlags.open()
			if err != nil {
				return err
			}
			defer closeFn()
			recs, err := journal.New(arch).LoadEntry(e)
			if err != nil {
				return err
			}
			for _, r := range e.Refs() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\n", r.Kind, r.ID, len(recs[r.Kind]))
			}
			return nil
		},
	}
	entryFlags.register(entry)

	var importFlags archiveFlags
	imp := &cobra.Command{
		Use:   "import <bundle>",
		Short: "Verify a history bundle and store its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			arch, closeFn, err := importFlags.open()
			if err != nil {
				return err
			}
			defer closeFn()
			ids, err := bundle.Import(bytes.NewReader(b), arch, bundle.ImportOptions{})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d record(s)\n", len(ids))
			return nil
		},
	}
	importFlags.register(imp)

	cmd.AddCommand(backends, get, entry, imp)
	return cmd
}
