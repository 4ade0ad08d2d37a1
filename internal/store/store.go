// Package store provides document persistence for job, result, and index
// records. Two implementations share the same contract: a durable GORM-backed
// store and an in-memory fallback. Callers never assume which one is active.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// Mode identifies which backend is serving the process.
type Mode string

const (
	ModeDurable Mode = "durable"
	ModeMemory  Mode = "memory"
)

// ErrNotFound indicates the requested document does not exist.
var ErrNotFound = errors.New("document not found")

// Store is the storage backend contract. Documents are JSON-serializable
// values grouped into named collections and addressed by a string key.
// Every mutation is a single atomic upsert; no implementation holds a lock
// across an external call.
type Store interface {
	// Put creates or replaces the document at (collection, key).
	Put(ctx context.Context, collection, key string, doc interface{}) error

	// Get unmarshals the document at (collection, key) into out.
	// Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, collection, key string, out interface{}) error

	// Find returns raw documents in the collection whose top-level fields
	// match every entry of filter. A nil filter matches everything.
	Find(ctx context.Context, collection string, filter map[string]interface{}) ([]json.RawMessage, error)

	// FindPrefix returns raw documents whose key begins with prefix, so a
	// composite-keyed collection can be scanned by its leading segment
	// without loading every document it holds.
	FindPrefix(ctx context.Context, collection, prefix string) ([]json.RawMessage, error)

	// Update merges partial into the document at (collection, key). With
	// upsert, a missing document is created from partial alone; otherwise a
	// missing document yields ErrNotFound.
	Update(ctx context.Context, collection, key string, partial map[string]interface{}, upsert bool) error

	// Mode reports which backend is active.
	Mode() Mode

	// Ping checks backend reachability.
	Ping(ctx context.Context) error
}

// matches reports whether every filter entry equals the corresponding
// top-level field of doc, compared through their JSON representation so that
// numeric types and typed strings behave uniformly across backends.
func matches(doc map[string]json.RawMessage, filter map[string]interface{}) bool {
	for field, want := range filter {
		raw, ok := doc[field]
		if !ok {
			return false
		}
		wantJSON, err := json.Marshal(want)
		if err != nil {
			return false
		}
		if string(raw) != string(wantJSON) {
			return false
		}
	}
	return true
}
