// Package identity_store persists the opaque client identifier issued by the
// backend so that job listings and the progress stream stay scoped to the same
// client across runs.
package identity_store

import (
	"fmt"
	"strings"
)

// StorageKey is the local storage key holding the identifier.
const StorageKey = "uid"

// ClientID is the opaque per-client identifier.
type ClientID string

// KeyValueStore is the subset of local_storage.Store used here.
type KeyValueStore interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Remove(key string) error
}

// Store reads and writes the ClientID.
type Store struct {
	kv KeyValueStore
}

// New returns a Store backed by kv.
func New(kv KeyValueStore) *Store {
	return &Store{kv: kv}
}

// Load returns the persisted identifier, or "" when none has been issued yet.
func (s *Store) Load() (ClientID, error) {
	data, ok, err := s.kv.Get(StorageKey)
	if err != nil {
		return "", fmt.Errorf("failed to load client identity: %w", err)
	}
	if !ok {
		return "", nil
	}
	return ClientID(strings.TrimSpace(string(data))), nil
}

// Save persists id. Saving an empty identifier is rejected.
func (s *Store) Save(id ClientID) error {
	if strings.TrimSpace(string(id)) == "" {
		return fmt.Errorf("client identity cannot be empty")
	}
	if err := s.kv.Set(StorageKey, []byte(id)); err != nil {
		return fmt.Errorf("failed to save client identity: %w", err)
	}
	return nil
}

// Clear forgets the identifier; the next contact with the backend issues a new one.
func (s *Store) Clear() error {
	return s.kv.Remove(StorageKey)
}
