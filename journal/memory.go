package journal

import (
	"bytes"
	"sync"

	"github.com/ipfs/go-cid"
)

// Memory is an in-process archive.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]byte
}

var _ Archive = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{records: make(map[string][]byte)}
}

func (m *Memory) Put(b []byte) (cid.Cid, error) {
	id, err := CIDOf(b)
	if err != nil {
		return cid.Undef, err
	}
	key := id.KeyString()
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.records[key]; ok {
		if !bytes.Equal(prev, b) {
			return cid.Undef, ErrImmutable
		}
		return id, nil
	}
	m.records[key] = append([]byte(nil), b...)
	return id, nil
}

func (m *Memory) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	m.mu.RLock()
	b, ok := m.records[id.KeyString()]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *Memory) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[id.KeyString()]
	return ok
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func init() {
	MustRegister(Backend{
		Name:        "memory",
		Description: "In-process archive (lost on exit)",
		Usage:       UsageCLI | UsageDaemon,
		Open: func(map[string]string) (Archive, func() error, error) {
			return NewMemory(), nil, nil
		},
	})
}
