package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/tonkeeper/2fa-extension/credential"
)

// Memory is an in-process Account. Forwarded actions bump the sequence number.
type Memory struct {
	mu            sync.Mutex
	address       string
	key           credential.PublicKey
	seqno         uint32
	signatureAuth bool
	extensions    []string
	actions       []Action
}

// NewMemory returns an account with guardAddr installed as its only extension
// and plain signature authentication disabled.
func NewMemory(address, guardAddr string) *Memory {
	m := &Memory{address: address}
	if guardAddr != "" {
		m.extensions = []string{guardAddr}
	} else {
		m.signatureAuth = true
	}
	return m
}

func (m *Memory) Address() string { return m.address }

// SetKey pins the account key. Without one, any key whose AccountAddress is
// the account's address is accepted.
func (m *Memory) SetKey(k credential.PublicKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = k.Clone()
}

func (m *Memory) Authenticate(_ context.Context, body []byte, o Origin) error {
	m.mu.Lock()
	key := m.key
	m.mu.Unlock()
	switch {
	case o.Sender != m.address:
		return fmt.Errorf("%w: sender %s is not %s", ErrUnauthenticated, o.Sender, m.address)
	case !key.IsZero() && !key.Equal(o.Key):
		return fmt.Errorf("%w: key is not the account key", ErrUnauthenticated)
	case key.IsZero() && AccountAddress(o.Key) != m.address:
		return fmt.Errorf("%w: key does not control %s", ErrUnauthenticated, m.address)
	case !credential.Verify(o.Key, OriginDigest(o.Sender, body), o.Signature):
		return fmt.Errorf("%w: bad signature", ErrUnauthenticated)
	}
	return nil
}

func (m *Memory) Seqno(context.Context) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seqno, nil
}

func (m *Memory) Submit(_ context.Context, a Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.Kind == ActionForward {
		if a.Seqno != m.seqno {
			return fmt.Errorf("wallet: stale seqno %d, account at %d", a.Seqno, m.seqno)
		}
		m.seqno++
	}
	m.actions = append(m.actions, a)
	return nil
}

func (m *Memory) DetachExtension(_ context.Context, d Detachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := -1
	for i, e := range m.extensions {
		if e == d.Guard {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotExtension, d.Guard)
	}
	m.extensions = append(m.extensions[:idx:idx], m.extensions[idx+1:]...)
	if d.Successor != "" {
		m.extensions = []string{d.Successor}
	}
	if d.RestoreSignatureAuth {
		m.signatureAuth = true
	}
	return nil
}

// Extensions returns the installed extension addresses.
func (m *Memory) Extensions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.extensions...)
}

// SignatureAuth reports whether plain signature authentication is enabled.
func (m *Memory) SignatureAuth() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signatureAuth
}

// Actions returns every submitted action in order.
func (m *Memory) Actions() []Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Action(nil), m.actions...)
}

// MemoryDirectory is a Directory over Memory accounts. Unknown addresses are
// created on first use when AutoCreate is set.
type MemoryDirectory struct {
	mu         sync.Mutex
	accounts   map[string]*Memory
	AutoCreate bool
	// GuardAddress names the extension installed on auto-created accounts.
	GuardAddress func(owner string) string
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{accounts: make(map[string]*Memory)}
}

// Add registers acct.
func (d *MemoryDirectory) Add(acct *Memory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accounts[acct.Address()] = acct
}

func (d *MemoryDirectory) Account(_ context.Context, address string) (Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a, ok := d.accounts[address]; ok {
		return a, nil
	}
	if !d.AutoCreate {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, address)
	}
	guardAddr := ""
	if d.GuardAddress != nil {
		guardAddr = d.GuardAddress(address)
	}
	a := NewMemory(address, guardAddr)
	d.accounts[address] = a
	return a, nil
}
