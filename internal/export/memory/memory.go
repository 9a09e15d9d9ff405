// Package memory is an in-process report sink used in tests and local
// runs without Google credentials.
package memory

import (
	"context"
	"sync"

	"khata/internal/report"
)

type Store struct {
	mu     sync.Mutex
	sales  []report.MonthTotal
	dues   []report.NameAmount
	writes int
	err    error
}

func New() *Store {
	return &Store{}
}

// FailWith makes every subsequent write return err; nil restores
// normal behavior.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Store) WriteMonthlySales(_ context.Context, rows []report.MonthTotal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sales = append([]report.MonthTotal(nil), rows...)
	s.writes++
	return nil
}

func (s *Store) WriteSellerDues(_ context.Context, rows []report.NameAmount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.dues = append([]report.NameAmount(nil), rows...)
	s.writes++
	return nil
}

// MonthlySales returns the last exported sales series.
func (s *Store) MonthlySales() []report.MonthTotal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]report.MonthTotal(nil), s.sales...)
}

// SellerDues returns the last exported dues table.
func (s *Store) SellerDues() []report.NameAmount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]report.NameAmount(nil), s.dues...)
}

// Writes counts successful writes across both sheets.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
