// Package gateway defines the persistence contract for the ledger
// dataset: a whole-snapshot load plus a merge-on-write save.
package gateway

import (
	"context"

	"khata/internal/core"
)

// Update carries the collections to persist. A nil slice means "keep
// the previously persisted value"; an empty non-nil slice overwrites
// with an empty collection. Callers that want a full save populate
// all three.
type Update struct {
	Products     []core.Product
	Sellers      []core.Seller
	Transactions []core.Transaction
}

// Gateway is the outbound port for snapshot persistence.
//
// Load returns an all-empty snapshot and a nil error when no data has
// been persisted yet; broken storage surfaces as an error wrapping
// core.ErrPersistence, never as silently empty collections.
type Gateway interface {
	Load(ctx context.Context) (core.Snapshot, error)
	Save(ctx context.Context, u Update) error
}

// FullUpdate builds an Update that persists the whole snapshot.
func FullUpdate(s core.Snapshot) Update {
	s = s.Normalize()
	return Update{
		Products:     s.Products,
		Sellers:      s.Sellers,
		Transactions: s.Transactions,
	}
}

// Apply merges the update into a snapshot, leaving collections with
// nil update slices untouched.
func (u Update) Apply(s core.Snapshot) core.Snapshot {
	s = s.Normalize()
	if u.Products != nil {
		s.Products = u.Products
	}
	if u.Sellers != nil {
		s.Sellers = u.Sellers
	}
	if u.Transactions != nil {
		s.Transactions = u.Transactions
	}
	return s
}
