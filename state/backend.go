package state

import (
	"encoding/json"
	"sync"
)

// StorageBackend is the pluggable persistence port behind Persist and
// Restore. It round-trips a single JSON blob per key; implementations
// need not be durable beyond what the backend itself promises.
type StorageBackend interface {
	Save(key string, snapshot map[string]any) error
	Load(key string) (snapshot map[string]any, found bool, err error)
}

// MemoryBackend is an in-process backend, mainly useful for tests and
// embedders that only need Persist/Restore's API shape without real
// durability.
type MemoryBackend struct {
	mu   sync.Mutex
	blob map[string][]byte
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{blob: make(map[string][]byte)}
}

// Save implements StorageBackend.
func (b *MemoryBackend) Save(key string, snapshot map[string]any) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.blob[key] = data
	b.mu.Unlock()
	return nil
}

// Load implements StorageBackend.
func (b *MemoryBackend) Load(key string) (map[string]any, bool, error) {
	b.mu.Lock()
	data, ok := b.blob[key]
	b.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false, err
	}
	return out, true, nil
}
