// Command tfaguardd serves the two-factor guard over gRPC.
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/tonkeeper/2fa-extension/config"
	"github.com/tonkeeper/2fa-extension/journal"

	_ "github.com/tonkeeper/2fa-extension/journal/grpcarchive"
	_ "github.com/tonkeeper/2fa-extension/journal/kubo"
	_ "github.com/tonkeeper/2fa-extension/journal/localfs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("tfaguardd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	cfgFile := fs.String("f", "tfaguardd.toml", "path to the TOML configuration file")
	checkOnly := fs.Bool("check", false, "validate the configuration and exit")
	listBackends := fs.Bool("list-backends", false, "list supported journal backends and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *listBackends {
		for _, b := range journal.List(journal.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	cfg, err := config.LoadFile(*cfgFile)
	if err != nil {
		fmt.Fprintf(errOut, "failed to load config file '%v': %v\n", *cfgFile, err)
		return 2
	}
	if *checkOnly {
		_, _ = fmt.Fprintln(out, "OK")
		return 0
	}

	haltCh := make(chan os.Signal, 1)
	signal.Notify(haltCh, os.Interrupt, syscall.SIGTERM)
	rotateCh := make(chan os.Signal, 1)
	signal.Notify(rotateCh, syscall.SIGHUP)

	d, err := newDaemon(cfg)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer d.shutdown()

	lis, err := net.Listen("tcp", cfg.Server.ListenAddress)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	go func() {
		<-haltCh
		d.shutdown()
	}()
	go func() {
		for range rotateCh {
			d.rotateLog()
		}
	}()

	if err := d.serve(lis); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}
