package repository

import (
	"context"
	"sync"
	"time"
)

type binding struct {
	sessionID string
	expiresAt time.Time
}

// MemoryBindingStore is the in-process binding store used in tests and
// single-node deployments.
type MemoryBindingStore struct {
	mu       sync.Mutex
	bindings map[string]binding
	now      func() time.Time
}

// NewMemoryBindingStore constructs an empty binding store.
func NewMemoryBindingStore() *MemoryBindingStore {
	return &MemoryBindingStore{
		bindings: make(map[string]binding),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the expiry clock. Test hook.
func (m *MemoryBindingStore) WithNow(now func() time.Time) *MemoryBindingStore {
	m.now = now
	return m
}

// Bind associates the device with the session for at most ttl.
func (m *MemoryBindingStore) Bind(ctx context.Context, deviceID, sessionID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[deviceID] = binding{sessionID: sessionID, expiresAt: m.now().Add(ttl)}
	return nil
}

// Get returns the bound session ID, or empty when the device is unbound
// or the binding lapsed.
func (m *MemoryBindingStore) Get(ctx context.Context, deviceID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bindings[deviceID]
	if !ok {
		return "", nil
	}
	if m.now().After(b.expiresAt) {
		delete(m.bindings, deviceID)
		return "", nil
	}
	return b.sessionID, nil
}

// Clear removes the device binding.
func (m *MemoryBindingStore) Clear(ctx context.Context, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bindings, deviceID)
	return nil
}
