// Package identity persists a node's identity in a single byte of
// non-volatile storage.
package identity

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/exepirit/lorabridge/pkg/lorabridge"
)

// Erased is the value of a never-written storage cell.
const Erased byte = 0xFF

// Store is one byte of non-volatile memory.
type Store interface {
	Load() (byte, error)
	Save(b byte) error
}

var _ Store = &FileStore{}

// FileStore keeps the byte in a one-byte file, the host analogue of an EEPROM cell.
type FileStore struct {
	Path string
}

func (s *FileStore) Load() (byte, error) {
	data, err := os.ReadFile(s.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Erased, nil
	case err != nil:
		return 0, fmt.Errorf("read identity: %w", err)
	case len(data) == 0:
		return Erased, nil
	}
	return data[0], nil
}

func (s *FileStore) Save(b byte) error {
	if err := os.WriteFile(s.Path, []byte{b}, 0o644); err != nil {
		return fmt.Errorf("write identity: %w", err)
	}
	return nil
}

var _ Store = &MemStore{}

// MemStore is a volatile Store. The zero value reads as Erased.
type MemStore struct {
	mu      sync.Mutex
	value   byte
	written bool
	writes  int
}

func (m *MemStore) Load() (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.written {
		return Erased, nil
	}
	return m.value, nil
}

func (m *MemStore) Save(b byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value, m.written = b, true
	m.writes++
	return nil
}

// Writes returns how many times Save was called.
func (m *MemStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// ResolveMaster returns MasterID, writing it when the store holds anything else.
func ResolveMaster(store Store) (lorabridge.NodeID, error) {
	return resolve(store, func(id lorabridge.NodeID) bool { return id == lorabridge.MasterID }, lorabridge.MasterID)
}

// ResolveSensor returns the stored identity when it names a sensor node of a
// count-node mesh. Otherwise it writes and returns fallback.
func ResolveSensor(store Store, count int, fallback lorabridge.NodeID) (lorabridge.NodeID, error) {
	valid := func(id lorabridge.NodeID) bool {
		return id != lorabridge.MasterID && lorabridge.ValidIdentity(id, count)
	}
	if !valid(fallback) {
		return 0, fmt.Errorf("fallback identity %d: %w", fallback, lorabridge.ErrIdentityOutOfRange)
	}
	return resolve(store, valid, fallback)
}

func resolve(store Store, valid func(lorabridge.NodeID) bool, fallback lorabridge.NodeID) (lorabridge.NodeID, error) {
	b, err := store.Load()
	if err != nil {
		return 0, err
	}
	if id := lorabridge.NodeID(b); valid(id) {
		return id, nil
	}
	if err := store.Save(byte(fallback)); err != nil {
		return 0, err
	}
	return fallback, nil
}
