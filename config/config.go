// Package config implements the guard daemon configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tonkeeper/2fa-extension/credential"
	"github.com/tonkeeper/2fa-extension/fees"
	"github.com/tonkeeper/2fa-extension/guard"
	"github.com/tonkeeper/2fa-extension/journal"
	"github.com/tonkeeper/2fa-extension/keys"
)

const (
	defaultListenAddress = "127.0.0.1:7450"
	defaultLogLevel      = "NOTICE"
	defaultStateFile     = "state.db"
	defaultJournalDir    = "journal"
	defaultMaxMsgBytes   = 4 << 20
)

// Duration is a time.Duration read from a TOML string such as "24h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Server is the daemon configuration.
type Server struct {
	// Identifier is a human readable name reported in receipts and logs.
	Identifier string

	// ListenAddress is the gRPC listen address.
	ListenAddress string

	// MetricsAddress is the Prometheus HTTP listen address; empty disables it.
	MetricsAddress string

	// DataDir holds the state database and the default journal.
	DataDir string

	// StateFile is the bbolt database path, relative to DataDir.
	StateFile string

	// MaxMsgBytes bounds gRPC request and response sizes.
	MaxMsgBytes int

	// AutoCreateAccounts provisions in-memory protected accounts on first
	// use. Such an account is controlled by the key whose
	// wallet.AccountAddress equals its address. Only meant for local testing.
	AutoCreateAccounts bool
}

func (s *Server) validate() error {
	if s.ListenAddress == "" {
		s.ListenAddress = defaultListenAddress
	}
	if s.DataDir == "" {
		return errors.New("config: Server: DataDir is not set")
	}
	if !filepath.IsAbs(s.DataDir) {
		return fmt.Errorf("config: Server: DataDir '%v' is not an absolute path", s.DataDir)
	}
	if s.StateFile == "" {
		s.StateFile = defaultStateFile
	}
	if s.MaxMsgBytes <= 0 {
		s.MaxMsgBytes = defaultMaxMsgBytes
	}
	return nil
}

// StatePath returns the absolute state database path.
func (s *Server) StatePath() string {
	if filepath.IsAbs(s.StateFile) {
		return s.StateFile
	}
	return filepath.Join(s.DataDir, s.StateFile)
}

// Logging is the logging configuration.
type Logging struct {
	// Disable disables logging entirely.
	Disable bool

	// File specifies the log file, if omitted stdout will be used.
	File string

	// Level specifies the log level.
	Level string
}

func (l *Logging) validate() error {
	lvl := strings.ToUpper(l.Level)
	switch lvl {
	case "ERROR", "WARNING", "NOTICE", "INFO", "DEBUG":
	case "":
		lvl = defaultLogLevel
	default:
		return fmt.Errorf("config: Logging: Level '%v' is invalid", l.Level)
	}
	l.Level = lvl
	return nil
}

// Delays overrides the recovery and delegation time locks.
type Delays struct {
	Fast       Duration
	Slow       Duration
	Delegation Duration
}

func (d *Delays) validate() error {
	def := guard.DefaultDelays()
	for _, f := range []struct {
		name string
		v    *Duration
		def  time.Duration
	}{
		{"Fast", &d.Fast, def.Fast},
		{"Slow", &d.Slow, def.Slow},
		{"Delegation", &d.Delegation, def.Delegation},
	} {
		switch {
		case f.v.Duration < 0:
			return fmt.Errorf("config: Delays: %s must not be negative", f.name)
		case f.v.Duration == 0:
			f.v.Duration = f.def
		case f.v.Duration%time.Second != 0:
			return fmt.Errorf("config: Delays: %s must be a whole number of seconds", f.name)
		}
	}
	return nil
}

// Guard returns the delays as guard options.
func (d *Delays) Guard() guard.Delays {
	return guard.Delays{Fast: d.Fast.Duration, Slow: d.Slow.Duration, Delegation: d.Delegation.Duration}
}

// Receipts configures receipt signing.
type Receipts struct {
	// Sign enables signed receipts.
	Sign bool

	// KeyFile is a seed file ("<alg>:<hex>"). It takes precedence over
	// KeyStore/KeyName.
	KeyFile string

	// KeyStore is the key store directory; empty means the default.
	KeyStore string
	KeyName  string
	KeyRole  string
}

func (r *Receipts) validate() error {
	if !r.Sign {
		return nil
	}
	if r.KeyFile == "" && r.KeyName == "" {
		return errors.New("config: Receipts: Sign requires KeyFile or KeyName")
	}
	if r.KeyName != "" {
		if err := keys.CheckKeyName(r.KeyName); err != nil {
			return fmt.Errorf("config: Receipts: %w", err)
		}
	}
	if r.KeyRole != "" {
		if err := keys.CheckRole(r.KeyRole); err != nil {
			return fmt.Errorf("config: Receipts: %w", err)
		}
	}
	return nil
}

// Signer loads the receipt signer, or returns nil when signing is off.
func (r *Receipts) Signer() (credential.Signer, error) {
	if !r.Sign {
		return nil, nil
	}
	ks, err := keys.CreateKeyStore(r.KeyStore)
	if err != nil {
		return nil, err
	}
	return ks.LoadSigner("", r.KeyName, r.KeyRole, r.KeyFile)
}

// Config is the top level guard daemon configuration.
type Config struct {
	Server   *Server
	Logging  *Logging
	Delays   *Delays
	Fees     *fees.Schedule
	Journal  *journal.Config
	Receipts *Receipts
}

// FixupAndValidate applies defaults to config entries and validates the
// configuration sections.
func (cfg *Config) FixupAndValidate() error {
	if cfg.Server == nil {
		return errors.New("config: No Server block was present")
	}
	if err := cfg.Server.validate(); err != nil {
		return err
	}
	if cfg.Logging == nil {
		cfg.Logging = &Logging{}
	}
	if err := cfg.Logging.validate(); err != nil {
		return err
	}
	if cfg.Delays == nil {
		cfg.Delays = &Delays{}
	}
	if err := cfg.Delays.validate(); err != nil {
		return err
	}
	if cfg.Fees == nil {
		cfg.Fees = &fees.Schedule{}
	}
	fixupFees(cfg.Fees)
	if cfg.Journal == nil {
		cfg.Journal = &journal.Config{
			Backends: []journal.BackendConfig{{
				Name:   "localfs",
				Config: map[string]string{"dir": filepath.Join(cfg.Server.DataDir, defaultJournalDir)},
			}},
		}
	}
	if err := cfg.Journal.Validate(); err != nil {
		return fmt.Errorf("config: Journal: %w", err)
	}
	if cfg.Receipts == nil {
		cfg.Receipts = &Receipts{}
	}
	return cfg.Receipts.validate()
}

// fixupFees fills unset prices from the basechain schedule.
func fixupFees(s *fees.Schedule) {
	def := fees.Basechain()
	for _, f := range []struct{ v, def *uint64 }{
		{&s.GasPrice, &def.GasPrice},
		{&s.LumpPrice, &def.LumpPrice},
		{&s.BitPrice, &def.BitPrice},
		{&s.CellPrice, &def.CellPrice},
		{&s.GuardGas, &def.GuardGas},
		{&s.WalletGas, &def.WalletGas},
		{&s.PerOutputGas, &def.PerOutputGas},
		{&s.PerExtendedGas, &def.PerExtendedGas},
	} {
		if *f.v == 0 {
			*f.v = *f.def
		}
	}
}

// Load parses and validates the provided buffer b as a config file body and
// returns the Config.
func Load(b []byte) (*Config, error) {
	if b == nil {
		return nil, errors.New("config: nil buffer")
	}
	cfg := new(Config)
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("config: Undecoded keys in config file: %v", undecoded)
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses and validates the provided file and returns the
// Config.
func LoadFile(f string) (*Config, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b)
}
