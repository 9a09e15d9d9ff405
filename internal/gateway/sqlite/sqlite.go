// Package sqlite persists the ledger snapshot in a local SQLite
// database. Each save replaces whole collections inside one SQL
// transaction, preserving the merge-on-write contract.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"khata/internal/core"
	"khata/internal/gateway"
)

type Store struct {
	db *sql.DB
}

var _ gateway.Gateway = (*Store)(nil)

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Load(ctx context.Context) (core.Snapshot, error) {
	snap := core.Snapshot{}.Normalize()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, price, stock FROM products ORDER BY position`)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: query products: %v", core.ErrPersistence, err)
	}
	defer rows.Close()
	for rows.Next() {
		var p core.Product
		var price string
		if err := rows.Scan(&p.ID, &p.Name, &price, &p.Stock); err != nil {
			return core.Snapshot{}, fmt.Errorf("%w: scan product: %v", core.ErrPersistence, err)
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return core.Snapshot{}, fmt.Errorf("%w: product %s price: %v", core.ErrPersistence, p.ID, err)
		}
		snap.Products = append(snap.Products, p)
	}
	if err := rows.Err(); err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: iterate products: %v", core.ErrPersistence, err)
	}

	srows, err := s.db.QueryContext(ctx,
		`SELECT id, name, phone, dues FROM sellers ORDER BY position`)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: query sellers: %v", core.ErrPersistence, err)
	}
	defer srows.Close()
	for srows.Next() {
		var sl core.Seller
		var dues string
		if err := srows.Scan(&sl.ID, &sl.Name, &sl.Phone, &dues); err != nil {
			return core.Snapshot{}, fmt.Errorf("%w: scan seller: %v", core.ErrPersistence, err)
		}
		if sl.Dues, err = decimal.NewFromString(dues); err != nil {
			return core.Snapshot{}, fmt.Errorf("%w: seller %s dues: %v", core.ErrPersistence, sl.ID, err)
		}
		snap.Sellers = append(snap.Sellers, sl)
	}
	if err := srows.Err(); err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: iterate sellers: %v", core.ErrPersistence, err)
	}

	trows, err := s.db.QueryContext(ctx,
		`SELECT id, type, seller_id, seller_name, product_id, product_name,
		        quantity, amount, due_amount, tx_date
		 FROM transactions ORDER BY position`)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: query transactions: %v", core.ErrPersistence, err)
	}
	defer trows.Close()
	for trows.Next() {
		var t core.Transaction
		var kind, amount, due, date string
		var productID sql.NullString
		var quantity sql.NullInt64
		if err := trows.Scan(&t.ID, &kind, &t.SellerID, &t.SellerName,
			&productID, &t.ProductName, &quantity, &amount, &due, &date); err != nil {
			return core.Snapshot{}, fmt.Errorf("%w: scan transaction: %v", core.ErrPersistence, err)
		}
		t.Kind = core.Kind(kind)
		if productID.Valid {
			t.ProductID = productID.String
		}
		if quantity.Valid {
			q := quantity.Int64
			t.Quantity = &q
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return core.Snapshot{}, fmt.Errorf("%w: transaction %s amount: %v", core.ErrPersistence, t.ID, err)
		}
		if t.DueAmount, err = decimal.NewFromString(due); err != nil {
			return core.Snapshot{}, fmt.Errorf("%w: transaction %s due: %v", core.ErrPersistence, t.ID, err)
		}
		if t.Date, err = core.ParseDate(date); err != nil {
			return core.Snapshot{}, fmt.Errorf("%w: transaction %s date: %v", core.ErrPersistence, t.ID, err)
		}
		snap.Transactions = append(snap.Transactions, t)
	}
	if err := trows.Err(); err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: iterate transactions: %v", core.ErrPersistence, err)
	}

	return snap.Normalize(), nil
}

func (s *Store) Save(ctx context.Context, u gateway.Update) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin save: %v", core.ErrPersistence, err)
	}
	defer tx.Rollback()

	if u.Products != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM products`); err != nil {
			return fmt.Errorf("%w: clear products: %v", core.ErrPersistence, err)
		}
		for i, p := range u.Products {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO products (id, name, price, stock, position) VALUES (?, ?, ?, ?, ?)`,
				p.ID, p.Name, p.Price.String(), p.Stock, i); err != nil {
				return fmt.Errorf("%w: insert product %s: %v", core.ErrPersistence, p.ID, err)
			}
		}
	}

	if u.Sellers != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sellers`); err != nil {
			return fmt.Errorf("%w: clear sellers: %v", core.ErrPersistence, err)
		}
		for i, sl := range u.Sellers {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO sellers (id, name, phone, dues, position) VALUES (?, ?, ?, ?, ?)`,
				sl.ID, sl.Name, sl.Phone, sl.Dues.String(), i); err != nil {
				return fmt.Errorf("%w: insert seller %s: %v", core.ErrPersistence, sl.ID, err)
			}
		}
	}

	if u.Transactions != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
			return fmt.Errorf("%w: clear transactions: %v", core.ErrPersistence, err)
		}
		for i, t := range u.Transactions {
			var productID any
			if t.ProductID != "" {
				productID = t.ProductID
			}
			var quantity any
			if t.Quantity != nil {
				quantity = *t.Quantity
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO transactions
				 (id, type, seller_id, seller_name, product_id, product_name,
				  quantity, amount, due_amount, tx_date, position)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				t.ID, string(t.Kind), t.SellerID, t.SellerName, productID, t.ProductName,
				quantity, t.Amount.String(), t.DueAmount.String(), t.Date.String(), i); err != nil {
				return fmt.Errorf("%w: insert transaction %s: %v", core.ErrPersistence, t.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit save: %v", core.ErrPersistence, err)
	}
	return nil
}
