package journal

import (
	"errors"
	"fmt"
)

// Write policies.
const (
	// WriteFirst writes to the first backend; reads fall back in order.
	WriteFirst = "first"
	// WriteAll writes to every backend and requires CID agreement.
	WriteAll = "all"
)

// Config selects and composes archive backends.
//
//	[Journal]
//	  WritePolicy = "all"
//	  [[Journal.Backends]]
//	    Name = "localfs"
//	    [Journal.Backends.Config]
//	      dir = "/var/lib/tfaguard/journal"
//	  [[Journal.Backends]]
//	    Name = "grpc"
//	    ID = "mirror"
//	    [Journal.Backends.Config]
//	      target = "mirror:7777"
type Config struct {
	WritePolicy string          `toml:"WritePolicy"`
	Backends    []BackendConfig `toml:"Backends"`
}

type BackendConfig struct {
	// Name is the registered backend to open.
	Name string `toml:"Name"`
	// ID is an optional alias used in per-backend CID maps; defaults to Name.
	ID     string            `toml:"ID"`
	Config map[string]string `toml:"Config"`
}

func (b BackendConfig) id() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("journal: at least one backend is required")
	}
	seen := make(map[string]struct{}, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return errors.New("journal: backend name is required")
		}
		if _, ok := seen[b.id()]; ok {
			return fmt.Errorf("journal: duplicate backend id %q", b.id())
		}
		seen[b.id()] = struct{}{}
	}
	switch c.WritePolicy {
	case "", WriteFirst, WriteAll:
		return nil
	default:
		return fmt.Errorf("journal: invalid write policy %q", c.WritePolicy)
	}
}

// Open opens every configured backend and composes them per WritePolicy.
// The returned close function closes backends in reverse order.
func (c Config) Open(usage Usage) (Archive, func() error, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	named := make([]Named, 0, len(c.Backends))
	closers := make([]func() error, 0, len(c.Backends))
	closeAll := func() error {
		var first error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
	for _, b := range c.Backends {
		a, closeFn, err := Open(b.Name, usage, b.Config)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("journal: open %q: %w", b.id(), err)
		}
		named = append(named, Named{Name: b.id(), Archive: a})
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}

	if len(named) == 1 {
		return named[0].Archive, closeAll, nil
	}
	if c.WritePolicy == WriteAll {
		return Replicated{Backends: named}, closeAll, nil
	}
	fb := make(Fallback, 0, len(named))
	for _, n := range named {
		fb = append(fb, n.Archive)
	}
	return fb, closeAll, nil
}
