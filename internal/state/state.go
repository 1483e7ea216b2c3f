// Package state stores small per-client documents under fixed logical keys.
// It replaces the browser's local storage: every key can be loaded and saved
// independently, and the values are opaque JSON documents owned by the
// package that writes them.
package state

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
)

// Key names a persisted document of a client.
type Key string

// Logical keys.
const (
	KeyCart           Key = "cart"
	KeyLoyaltyProfile Key = "loyaltyProfile"
	KeyCurrentUser    Key = "currentUser"

	// KeyLegacyCart is the pre-rename cart key. It is only ever read and
	// deleted by the one-time cart migration.
	KeyLegacyCart Key = "acidicCart"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("state: key not found")

// Store persists documents per client.
type Store interface {
	Get(ctx context.Context, clientID string, key Key) ([]byte, error)
	Set(ctx context.Context, clientID string, key Key, value []byte) error
	Delete(ctx context.Context, clientID string, key Key) error
}

var _ Store = (*Memory)(nil)

// Memory is a process-local Store.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func memoryKey(clientID string, key Key) string {
	return clientID + "/" + string(key)
}

// Get returns a copy of the stored value or ErrNotFound.
func (m *Memory) Get(_ context.Context, clientID string, key Key) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[memoryKey(clientID, key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value.
func (m *Memory) Set(_ context.Context, clientID string, key Key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[memoryKey(clientID, key)] = append([]byte(nil), value...)
	return nil
}

// Delete removes the key. Deleting a missing key is not an error.
func (m *Memory) Delete(_ context.Context, clientID string, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, memoryKey(clientID, key))
	return nil
}
