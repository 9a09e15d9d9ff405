// Package file persists the ledger snapshot as a single JSON document
// on disk, the same shape the dataset has always been stored in.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"khata/internal/core"
	"khata/internal/gateway"
)

// Store reads and writes one data file. Saves are read-modify-write
// cycles guarded by a single mutex so two concurrent partial saves
// cannot lose each other's collections, and the file is replaced
// atomically via rename.
type Store struct {
	mu   sync.Mutex
	path string
}

var _ gateway.Gateway = (*Store)(nil)

func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the snapshot. A missing file means no data has been
// persisted yet and yields an empty snapshot with no error; any other
// failure wraps core.ErrPersistence.
func (s *Store) Load(_ context.Context) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Save merges the update into the persisted snapshot and writes the
// whole document back. Collections omitted from the update keep their
// previously persisted values.
func (s *Store) Save(_ context.Context, u gateway.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read()
	if err != nil {
		return err
	}
	return s.write(u.Apply(current))
}

func (s *Store) read() (core.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return core.Snapshot{}.Normalize(), nil
		}
		return core.Snapshot{}, fmt.Errorf("%w: read %s: %v", core.ErrPersistence, s.path, err)
	}

	var snap core.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: decode %s: %v", core.ErrPersistence, s.path, err)
	}
	return snap.Normalize(), nil
}

func (s *Store) write(snap core.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %v", core.ErrPersistence, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create data directory: %v", core.ErrPersistence, err)
	}

	tmp, err := os.CreateTemp(dir, ".khata-*.json")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", core.ErrPersistence, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write temp file: %v", core.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close temp file: %v", core.ErrPersistence, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replace %s: %v", core.ErrPersistence, s.path, err)
	}
	return nil
}
