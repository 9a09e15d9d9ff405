// Package memory is an in-process gateway used as the default dev
// backend and as the test double for the persistence contract.
package memory

import (
	"context"
	"sync"

	"khata/internal/core"
	"khata/internal/gateway"
)

type Store struct {
	mu   sync.Mutex
	snap core.Snapshot

	// FailNextSave, when set, is returned by the next Save call and
	// then cleared. Lets tests exercise rollback paths.
	FailNextSave error

	saves int
}

var _ gateway.Gateway = (*Store)(nil)

func New() *Store {
	return &Store{snap: core.Snapshot{}.Normalize()}
}

// NewSeeded starts with the given snapshot already persisted.
func NewSeeded(snap core.Snapshot) *Store {
	return &Store{snap: snap.Normalize().Clone()}
}

func (s *Store) Load(_ context.Context) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone(), nil
}

func (s *Store) Save(_ context.Context, u gateway.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailNextSave; err != nil {
		s.FailNextSave = nil
		return err
	}
	s.snap = u.Apply(s.snap).Clone()
	s.saves++
	return nil
}

// Saves reports how many saves succeeded, for asserting that
// mutations persist exactly once.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
