package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"perpeditions/storage"
)

// Manager layers a write-staging overlay on top of a key-value database. Reads
// see staged writes immediately, but nothing reaches the database until
// Commit. The surrounding call dispatcher commits after a successful operation
// and resets after a failed one, which is what makes every engine call
// all-or-nothing without any compensating bookkeeping.
//
// Calls against a manager are expected to be serialized by the caller; the
// execution model is single-threaded per call.
type Manager struct {
	db    storage.Database
	dirty map[string][]byte
}

// NewManager wraps the supplied database with an empty overlay.
func NewManager(db storage.Database) *Manager {
	return &Manager{
		db:    db,
		dirty: make(map[string][]byte),
	}
}

// KVPut RLP-encodes the value and stages it under the supplied key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	m.dirty[string(key)] = encoded
	return nil
}

// KVGet decodes the stored value for key into out. It reports whether a value
// exists, consulting staged writes before the database.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if encoded, ok := m.dirty[string(key)]; ok {
		if err := rlp.DecodeBytes(encoded, out); err != nil {
			return false, fmt.Errorf("state: decode %q: %w", key, err)
		}
		return true, nil
	}
	has, err := m.db.Has(key)
	if err != nil {
		return false, err
	}
	if !has {
		return false, nil
	}
	encoded, err := m.db.Get(key)
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

// Commit flushes all staged writes to the database and clears the overlay.
func (m *Manager) Commit() error {
	for key, value := range m.dirty {
		if err := m.db.Put([]byte(key), value); err != nil {
			return err
		}
	}
	m.dirty = make(map[string][]byte)
	return nil
}

// Reset discards all staged writes.
func (m *Manager) Reset() {
	m.dirty = make(map[string][]byte)
}

// Pending returns the number of staged writes awaiting Commit.
func (m *Manager) Pending() int {
	return len(m.dirty)
}
