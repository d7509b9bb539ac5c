// Command tfaguard manages keys, builds signed guard requests and talks to a
// tfaguardd instance.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonkeeper/2fa-extension/credential"
	"github.com/tonkeeper/2fa-extension/keys"
	"github.com/tonkeeper/2fa-extension/rpc"
)

type globalOptions struct {
	Server   string
	Timeout  time.Duration
	KeyStore string
}

func (g *globalOptions) keyStore() (*keys.KeyStore, error) {
	return keys.CreateKeyStore(g.KeyStore)
}

func (g *globalOptions) dial() (*rpc.Client, error) {
	c, err := rpc.Dial(g.Server, rpc.DialOptions{Timeout: g.Timeout})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", g.Server, err)
	}
	c.Timeout = g.Timeout
	return c, nil
}

func newRootCommand() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:   "tfaguard",
		Short: "Two-factor guard client",
		Long: `tfaguard manages local signing keys, builds and signs guard requests and
submits them to a tfaguardd instance.

Signer references accepted by --primary, --secondary and --root:
  name          root key of a stored identity
  name/role     derived role key of a stored identity
  @path         seed file ("<alg>:<hex>")
  <alg>:<hex>   inline seed`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.Server, "server", "127.0.0.1:7450", "tfaguardd gRPC address")
	pf.DurationVar(&g.Timeout, "timeout", 10*time.Second, "per-request timeout")
	pf.StringVar(&g.KeyStore, "keystore", "", "key store directory (default ~/.tfaguard/keys)")

	root.AddCommand(
		newKeyCommand(g),
		newCertCommand(g),
		newRequestCommand(g),
		newInstallCommand(g),
		newSubmitCommand(g),
		newStatusCommand(g),
		newCounterCommand(g),
		newFeeCommand(g),
		newHistoryCommand(g),
		newExportCommand(g),
		newReceiptCommand(),
		newBundleCommand(),
		newJournalCommand(),
	)
	return root
}

func main() {
	root := newRootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "tfaguard:", err)
		os.Exit(1)
	}
}

// resolveSigner loads the signer named by ref; an empty ref yields nil.
func resolveSigner(ks *keys.KeyStore, ref string) (credential.Signer, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return nil, nil
	case strings.HasPrefix(ref, "@"):
		return ks.LoadSigner("", "", "", strings.TrimPrefix(ref, "@"))
	case strings.Contains(ref, "/"):
		name, role, _ := strings.Cut(ref, "/")
		return ks.LoadSigner("", name, role, "")
	}
	if _, err := keys.ParseSeed(ref); err == nil {
		return ks.LoadSigner(ref, "", "", "")
	}
	return ks.LoadSigner("", ref, "", "")
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// readInput reads path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

// writeOutput writes raw bytes to path, or base64 text to stdout when path
// is empty.
func writeOutput(cmd *cobra.Command, path string, b []byte) error {
	if path != "" {
		return os.WriteFile(path, b, 0o644)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(b))
	return err
}

// decodeInput accepts raw bytes that pass check, or their base64 text form.
func decodeInput(b []byte, check func([]byte) bool) ([]byte, error) {
	if check(b) {
		return b, nil
	}
	dec, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(b)))
	if err != nil {
		return nil, fmt.Errorf("input is neither raw nor base64: %w", err)
	}
	return dec, nil
}
