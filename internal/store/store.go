// Package store holds the in-memory ledger state and the mutating
// operations on it. All mutation funnels through this type under a
// single mutex; each successful mutation is persisted through the
// gateway before it becomes visible, and rolled back if the save
// fails.
package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"khata/internal/core"
	"khata/internal/gateway"
)

type Store struct {
	mu   sync.Mutex
	snap core.Snapshot
	gw   gateway.Gateway

	// version increments on every applied mutation; read views and
	// caches key on it.
	version uint64

	nextProduct int64
	nextSeller  int64
	nextTxn     int64
}

// SaleInput describes a sale to record. Paid is the portion settled
// immediately; the remainder becomes the transaction's due amount and
// is added to the seller's running due.
type SaleInput struct {
	ProductID string
	SellerID  string
	Quantity  int64
	Paid      decimal.Decimal
	Date      core.Date
}

func New(gw gateway.Gateway) *Store {
	s := &Store{snap: core.Snapshot{}.Normalize(), gw: gw}
	s.seedCounters()
	return s
}

// Load replaces the in-memory state with whatever the gateway holds.
func (s *Store) Load(ctx context.Context) error {
	snap, err := s.gw.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	s.Restore(snap)
	return nil
}

// Restore replaces the collections verbatim. Missing collections
// default to empty; no further validation is applied to loaded data.
func (s *Store) Restore(snap core.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap.Normalize().Clone()
	s.seedCounters()
	s.version++
}

// Snapshot returns a consistent deep copy safe to aggregate over
// while mutations continue.
func (s *Store) Snapshot() core.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

// Version returns the current mutation counter. Two equal versions
// always refer to identical snapshots, which makes it a safe
// memoization key for derived aggregates.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// AddProduct validates and appends a new product.
func (s *Store) AddProduct(ctx context.Context, name string, price decimal.Decimal, stock int64) (core.Product, error) {
	p := core.Product{Name: strings.TrimSpace(name), Price: price, Stock: stock}
	if err := p.Validate(); err != nil {
		return core.Product{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = fmt.Sprintf("p%d", s.nextProduct)
	prev := s.snap.Clone()
	s.snap.Products = append(s.snap.Products, p)

	if err := s.gw.Save(ctx, gateway.Update{Products: s.snap.Products}); err != nil {
		s.snap = prev
		return core.Product{}, fmt.Errorf("save products: %w", err)
	}
	s.nextProduct++
	s.version++
	return p, nil
}

// AddSeller validates and appends a new seller with zero dues.
func (s *Store) AddSeller(ctx context.Context, name, phone string) (core.Seller, error) {
	sl := core.Seller{Name: strings.TrimSpace(name), Phone: strings.TrimSpace(phone), Dues: decimal.Zero}
	if err := sl.Validate(); err != nil {
		return core.Seller{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sl.ID = fmt.Sprintf("s%d", s.nextSeller)
	prev := s.snap.Clone()
	s.snap.Sellers = append(s.snap.Sellers, sl)

	if err := s.gw.Save(ctx, gateway.Update{Sellers: s.snap.Sellers}); err != nil {
		s.snap = prev
		return core.Seller{}, fmt.Errorf("save sellers: %w", err)
	}
	s.nextSeller++
	s.version++
	return sl, nil
}

// AddSale records a sale transaction: decrements product stock, adds
// the unpaid remainder to the seller's dues and appends the ledger
// entry, all inside one critical section.
func (s *Store) AddSale(ctx context.Context, in SaleInput) (core.Transaction, error) {
	if in.Quantity <= 0 {
		return core.Transaction{}, core.ErrInvalidQuantity
	}
	if in.Paid.IsNegative() {
		return core.Transaction{}, core.ErrInvalidAmount
	}
	if in.Date.IsZero() {
		in.Date = core.Today()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pi := s.findProduct(in.ProductID)
	if pi < 0 {
		return core.Transaction{}, fmt.Errorf("%w %q", core.ErrUnknownProduct, in.ProductID)
	}
	si := s.findSeller(in.SellerID)
	if si < 0 {
		return core.Transaction{}, fmt.Errorf("%w %q", core.ErrUnknownSeller, in.SellerID)
	}
	product := s.snap.Products[pi]
	if in.Quantity > product.Stock {
		return core.Transaction{}, fmt.Errorf("%w: %d of %q requested, %d available",
			core.ErrInsufficientStock, in.Quantity, product.Name, product.Stock)
	}

	amount := product.Price.Mul(decimal.NewFromInt(in.Quantity))
	if in.Paid.GreaterThan(amount) {
		return core.Transaction{}, fmt.Errorf("%w: paid exceeds sale value", core.ErrInvalidAmount)
	}
	due := amount.Sub(in.Paid)

	qty := in.Quantity
	txn := core.Transaction{
		ID:          fmt.Sprintf("t%d", s.nextTxn),
		Kind:        core.Sale,
		SellerID:    in.SellerID,
		SellerName:  s.snap.Sellers[si].Name,
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    &qty,
		Amount:      amount,
		DueAmount:   due,
		Date:        in.Date,
	}

	prev := s.snap.Clone()
	s.snap.Products[pi].Stock -= in.Quantity
	s.snap.Sellers[si].Dues = s.snap.Sellers[si].Dues.Add(due)
	s.snap.Transactions = append(s.snap.Transactions, txn)

	if err := s.gw.Save(ctx, gateway.FullUpdate(s.snap)); err != nil {
		s.snap = prev
		return core.Transaction{}, fmt.Errorf("save sale: %w", err)
	}
	s.nextTxn++
	s.version++
	return txn, nil
}

// RecordPayment applies a payment against a sale's outstanding due.
// The transaction's due amount and the seller's running due decrease
// by the same amount in one critical section, and a payment entry is
// appended to the ledger.
func (s *Store) RecordPayment(ctx context.Context, txnID string, amount decimal.Decimal) (core.Transaction, error) {
	if !amount.IsPositive() {
		return core.Transaction{}, core.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ti := s.findTransaction(txnID)
	if ti < 0 {
		return core.Transaction{}, fmt.Errorf("%w %q", core.ErrTransactionNotFound, txnID)
	}
	target := s.snap.Transactions[ti]
	// Recheck against the current due, not the original sale value:
	// earlier payments shrink the ceiling.
	if amount.GreaterThan(target.DueAmount) {
		return core.Transaction{}, fmt.Errorf("%w: %s due, %s offered",
			core.ErrPaymentExceedsDue, core.FormatAmount(target.DueAmount), core.FormatAmount(amount))
	}
	si := s.findSeller(target.SellerID)
	if si < 0 {
		return core.Transaction{}, fmt.Errorf("%w %q", core.ErrUnknownSeller, target.SellerID)
	}

	payment := core.Transaction{
		ID:          fmt.Sprintf("t%d", s.nextTxn),
		Kind:        core.Payment,
		SellerID:    target.SellerID,
		SellerName:  s.snap.Sellers[si].Name,
		ProductName: core.PaymentLabel,
		Amount:      amount,
		DueAmount:   amount.Neg(),
		Date:        core.Today(),
	}

	prev := s.snap.Clone()
	s.snap.Transactions[ti].DueAmount = target.DueAmount.Sub(amount)
	s.snap.Sellers[si].Dues = s.snap.Sellers[si].Dues.Sub(amount)
	s.snap.Transactions = append(s.snap.Transactions, payment)

	if err := s.gw.Save(ctx, gateway.Update{
		Sellers:      s.snap.Sellers,
		Transactions: s.snap.Transactions,
	}); err != nil {
		s.snap = prev
		return core.Transaction{}, fmt.Errorf("save payment: %w", err)
	}
	s.nextTxn++
	s.version++
	return s.snap.Transactions[ti], nil
}

func (s *Store) findProduct(id string) int {
	for i, p := range s.snap.Products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) findSeller(id string) int {
	for i, sl := range s.snap.Sellers {
		if sl.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) findTransaction(id string) int {
	for i, t := range s.snap.Transactions {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// seedCounters derives the next identifier for each collection from
// the highest numeric suffix already present, so identifiers stay
// unique across restarts and never depend on collection length.
func (s *Store) seedCounters() {
	s.nextProduct = 1
	for _, p := range s.snap.Products {
		bumpCounter(&s.nextProduct, p.ID, "p")
	}
	s.nextSeller = 1
	for _, sl := range s.snap.Sellers {
		bumpCounter(&s.nextSeller, sl.ID, "s")
	}
	s.nextTxn = 1
	for _, t := range s.snap.Transactions {
		bumpCounter(&s.nextTxn, t.ID, "t")
	}
}

func bumpCounter(next *int64, id, prefix string) {
	rest, ok := strings.CutPrefix(id, prefix)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return
	}
	if n+1 > *next {
		*next = n + 1
	}
}
