package journal

import (
	"fmt"
	"sort"
	"sync"
)

// Usage restricts which programs accept a backend.
type Usage uint8

const (
	// UsageCLI marks backends usable from the command-line tool.
	UsageCLI Usage = 1 << iota
	// UsageDaemon marks backends usable from the long-running daemon.
	UsageDaemon
)

func (u Usage) allows(want Usage) bool { return u&want != 0 }

// Backend is a build-time plugin that opens an Archive.
//
// Backends register themselves in init(); a binary enables a backend by
// importing its package, often as a blank import.
type Backend struct {
	Name        string
	Description string
	Usage       Usage
	// Keys documents the accepted configuration keys.
	Keys []string

	// Open builds the archive from backend-specific settings. It returns an
	// optional close function.
	Open func(cfg map[string]string) (Archive, func() error, error)
}

var (
	regMu    sync.RWMutex
	backends = map[string]Backend{}
)

// Register adds a backend.
func Register(b Backend) error {
	if b.Name == "" {
		return fmt.Errorf("journal: backend name is required")
	}
	if b.Open == nil {
		return fmt.Errorf("journal: backend %q missing Open", b.Name)
	}
	if b.Usage == 0 {
		return fmt.Errorf("journal: backend %q missing Usage", b.Name)
	}
	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("journal: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// List returns backends matching usage, sorted by name.
func List(usage Usage) []Backend {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Usage.allows(usage) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns backend names matching usage, sorted.
func Names(usage Usage) []string {
	bs := List(usage)
	n := make([]string, 0, len(bs))
	for _, b := range bs {
		n = append(n, b.Name)
	}
	return n
}

// Open opens the named backend if it exists and matches usage.
func Open(name string, usage Usage, cfg map[string]string) (Archive, func() error, error) {
	regMu.RLock()
	b, ok := backends[name]
	regMu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("journal: unknown backend %q", name)
	}
	if !b.Usage.allows(usage) {
		return nil, nil, fmt.Errorf("journal: backend %q not supported in this program", name)
	}
	return b.Open(cfg)
}
