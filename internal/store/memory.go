package store

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// MemoryStore is the in-memory fallback backend. It implements the identical
// contract as the durable store over process-local maps, so a process that
// cannot reach its database still serves the full job lifecycle.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]json.RawMessage
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]json.RawMessage),
	}
}

// Put creates or replaces the document at (collection, key).
func (m *MemoryStore) Put(ctx context.Context, collection, key string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.collections[collection]
	if !ok {
		col = make(map[string]json.RawMessage)
		m.collections[collection] = col
	}
	col[key] = data
	return nil
}

// Get unmarshals the document at (collection, key) into out.
func (m *MemoryStore) Get(ctx context.Context, collection, key string, out interface{}) error {
	m.mu.RLock()
	raw, ok := m.collections[collection][key]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, out)
}

// Find returns raw documents matching the filter on top-level fields.
func (m *MemoryStore) Find(ctx context.Context, collection string, filter map[string]interface{}) ([]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []json.RawMessage
	for _, raw := range m.collections[collection] {
		if len(filter) > 0 {
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(raw, &fields); err != nil {
				continue
			}
			if !matches(fields, filter) {
				continue
			}
		}
		cp := make(json.RawMessage, len(raw))
		copy(cp, raw)
		out = append(out, cp)
	}
	return out, nil
}

// FindPrefix returns raw documents whose key begins with prefix.
func (m *MemoryStore) FindPrefix(ctx context.Context, collection, prefix string) ([]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []json.RawMessage
	for key, raw := range m.collections[collection] {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		cp := make(json.RawMessage, len(raw))
		copy(cp, raw)
		out = append(out, cp)
	}
	return out, nil
}

// Update merges partial into the stored document.
func (m *MemoryStore) Update(ctx context.Context, collection, key string, partial map[string]interface{}, upsert bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	col, ok := m.collections[collection]
	if !ok {
		if !upsert {
			return ErrNotFound
		}
		col = make(map[string]json.RawMessage)
		m.collections[collection] = col
	}

	doc := make(map[string]interface{})
	if raw, ok := col[key]; ok {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
	} else if !upsert {
		return ErrNotFound
	}

	for k, v := range partial {
		doc[k] = v
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	col[key] = data
	return nil
}

// Mode reports ModeMemory.
func (m *MemoryStore) Mode() Mode { return ModeMemory }

// Ping always succeeds for the in-memory backend.
func (m *MemoryStore) Ping(ctx context.Context) error { return nil }
