package grpcarchive

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tonkeeper/2fa-extension/journal"
)

func init() {
	journal.MustRegister(journal.Backend{
		Name:        "grpc",
		Description: "Remote archive over gRPC (e.g. another tfaguardd)",
		Usage:       journal.UsageCLI | journal.UsageDaemon,
		Keys:        []string{"target", "dial-timeout", "timeout", "max-msg-bytes"},
		Open:        open,
	})
}

func open(cfg map[string]string) (journal.Archive, func() error, error) {
	target := strings.TrimSpace(cfg["target"])
	if target == "" {
		return nil, nil, errors.New("grpcarchive: missing \"target\"")
	}
	opts := DialOptions{Timeout: 5 * time.Second}
	var err error
	if v := cfg["dial-timeout"]; v != "" {
		if opts.Timeout, err = time.ParseDuration(v); err != nil {
			return nil, nil, fmt.Errorf("grpcarchive: dial-timeout: %w", err)
		}
	}
	if v := cfg["max-msg-bytes"]; v != "" {
		if opts.MaxMsgBytes, err = strconv.Atoi(v); err != nil {
			return nil, nil, fmt.Errorf("grpcarchive: max-msg-bytes: %w", err)
		}
	}
	c, err := Dial(target, opts)
	if err != nil {
		return nil, nil, err
	}
	if v := cfg["timeout"]; v != "" {
		if c.Timeout, err = time.ParseDuration(v); err != nil {
			_ = c.Close()
			return nil, nil, fmt.Errorf("grpcarchive: timeout: %w", err)
		}
	}
	return c, c.Close, nil
}
