package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Sale    Kind = "sale"
	Payment Kind = "payment"

	// PaymentLabel is the product-name stand-in recorded on payment
	// transactions, which carry no product reference.
	PaymentLabel = "Payment received"
)

type (
	// Kind distinguishes the two transaction types of the ledger.
	Kind string

	// Date is a calendar date without a time component. It marshals
	// as YYYY-MM-DD.
	Date struct {
		time.Time
	}

	Product struct {
		ID    string          `json:"id"`
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
		Stock int64           `json:"stock"`
	}

	Seller struct {
		ID    string          `json:"id"`
		Name  string          `json:"name"`
		Phone string          `json:"phone,omitempty"`
		Dues  decimal.Decimal `json:"dues"`
	}

	// Transaction is a single ledger entry. Sales carry a product
	// reference and quantity; payments leave Quantity nil and record
	// a negative DueAmount for the amount applied.
	Transaction struct {
		ID          string          `json:"id"`
		Kind        Kind            `json:"type"`
		SellerID    string          `json:"sellerId"`
		SellerName  string          `json:"sellerName"`
		ProductID   string          `json:"productId,omitempty"`
		ProductName string          `json:"productName"`
		Quantity    *int64          `json:"quantity"`
		Amount      decimal.Decimal `json:"amount"`
		DueAmount   decimal.Decimal `json:"dueAmount"`
		Date        Date            `json:"date"`
	}

	// Snapshot is the full persisted dataset at a point in time.
	Snapshot struct {
		Products     []Product     `json:"products"`
		Sellers      []Seller      `json:"sellers"`
		Transactions []Transaction `json:"transactions"`
	}
)

// Error categories. Specific sentinels below wrap one of these so
// callers can branch with errors.Is on the category alone.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("persistence failure")
)

var (
	ErrEmptyName           = fmt.Errorf("%w: empty name", ErrValidation)
	ErrNegativePrice       = fmt.Errorf("%w: negative price", ErrValidation)
	ErrNegativeStock       = fmt.Errorf("%w: negative stock", ErrValidation)
	ErrInvalidQuantity     = fmt.Errorf("%w: quantity must be positive", ErrValidation)
	ErrInvalidAmount       = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrPaymentExceedsDue   = fmt.Errorf("%w: payment exceeds due amount", ErrValidation)
	ErrInsufficientStock   = fmt.Errorf("%w: insufficient stock", ErrValidation)
	ErrUnknownSeller       = fmt.Errorf("%w: seller", ErrNotFound)
	ErrUnknownProduct      = fmt.Errorf("%w: product", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("%w: transaction", ErrNotFound)
)

const dateLayout = "2006-01-02"

// NewDate creates a Date from year, month, day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: bad date %q", ErrValidation, s)
	}
	return Date{Time: t}, nil
}

// Today returns the current calendar date in local time.
func Today() Date {
	y, m, d := time.Now().Date()
	return NewDate(y, m, d)
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// SameDay reports calendar-day equality, ignoring any time component.
func (d Date) SameDay(o Date) bool {
	y1, m1, d1 := d.Date()
	y2, m2, d2 := o.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	*d = Date{Time: t}
	return nil
}

func (k Kind) Valid() bool {
	return k == Sale || k == Payment
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if p.Price.IsNegative() {
		return ErrNegativePrice
	}
	if p.Stock < 0 {
		return ErrNegativeStock
	}
	return nil
}

func (s Seller) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (t Transaction) Validate() error {
	if !t.Kind.Valid() {
		return fmt.Errorf("%w: unknown transaction type %q", ErrValidation, t.Kind)
	}
	if t.SellerID == "" {
		return ErrUnknownSeller
	}
	if t.Kind == Sale {
		if t.Quantity == nil || *t.Quantity <= 0 {
			return ErrInvalidQuantity
		}
		// A sale's unpaid portion stays within [0, amount].
		if t.DueAmount.IsNegative() || t.DueAmount.GreaterThan(t.Amount) {
			return fmt.Errorf("%w: due amount outside [0, amount]", ErrValidation)
		}
	}
	return nil
}

// Clone returns a deep copy; slices are never shared with the
// receiver so callers can hand copies across goroutines.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Products:     make([]Product, len(s.Products)),
		Sellers:      make([]Seller, len(s.Sellers)),
		Transactions: make([]Transaction, len(s.Transactions)),
	}
	copy(out.Products, s.Products)
	copy(out.Sellers, s.Sellers)
	for i, t := range s.Transactions {
		if t.Quantity != nil {
			q := *t.Quantity
			t.Quantity = &q
		}
		out.Transactions[i] = t
	}
	return out
}

// Normalize replaces nil collections with empty ones so a partially
// populated snapshot loads as empty collections, never as nil.
func (s Snapshot) Normalize() Snapshot {
	if s.Products == nil {
		s.Products = []Product{}
	}
	if s.Sellers == nil {
		s.Sellers = []Seller{}
	}
	if s.Transactions == nil {
		s.Transactions = []Transaction{}
	}
	return s
}
