// Package report derives chart and report series from a ledger
// snapshot. Every function is pure: it reads the slices it is given,
// mutates nothing, and returns the same output for the same input, so
// results can be memoized on the store's snapshot version.
package report

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"khata/internal/core"
)

// KindAll disables kind filtering in the functions that accept one.
const KindAll = "all"

type (
	// MonthTotal is one bucket of the monthly sales series.
	MonthTotal struct {
		Year  int
		Month time.Month
		Label string
		Total decimal.Decimal
	}

	// NameAmount pairs an entity name with a monetary total.
	NameAmount struct {
		Name   string
		Amount decimal.Decimal
	}

	// NameQuantity pairs an entity name with a unit count.
	NameQuantity struct {
		Name     string
		Quantity int64
	}

	// Filter narrows a transaction listing. Zero values disable the
	// corresponding criterion; the criteria compose with AND.
	Filter struct {
		SellerID string
		Search   string
		Kind     string
	}

	// Summary backs the dashboard's headline cards.
	Summary struct {
		TotalProducts int
		TotalSellers  int
		TotalDues     decimal.Decimal
		TodaysSales   decimal.Decimal
	}

	// SellerTotals backs the per-seller report detail: everything the
	// seller has taken and what remains outstanding across their
	// transactions.
	SellerTotals struct {
		TotalTaken decimal.Decimal
		TotalDue   decimal.Decimal
	}
)

// MonthlySales groups transactions by calendar month and sums their
// amounts, ordered chronologically. kind restricts the series to one
// transaction kind; KindAll keeps every entry, which means payments
// contribute to the same buckets as sales.
func MonthlySales(txns []core.Transaction, kind string) []MonthTotal {
	type key struct {
		year  int
		month time.Month
	}
	totals := map[key]decimal.Decimal{}
	for _, t := range txns {
		if kind != KindAll && string(t.Kind) != kind {
			continue
		}
		y, m, _ := t.Date.Date()
		k := key{y, m}
		totals[k] = totals[k].Add(t.Amount)
	}

	out := make([]MonthTotal, 0, len(totals))
	for k, total := range totals {
		out = append(out, MonthTotal{
			Year:  k.year,
			Month: k.month,
			Label: k.month.String()[:3] + " " + strconv.Itoa(k.year),
			Total: total,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

// TopSellersByRevenue sums transaction amounts per seller across all
// kinds, descending. Every known seller appears with at least zero;
// ties keep the seller-list order. At most limit entries are
// returned.
func TopSellersByRevenue(txns []core.Transaction, sellers []core.Seller, limit int) []NameAmount {
	return topAmounts(sellerNames(sellers), txns, limit, func(t core.Transaction) (string, decimal.Decimal) {
		return t.SellerName, t.Amount
	})
}

// TopProductsByQuantity sums sold quantities per product name,
// descending. Transactions without a quantity (payments) contribute
// zero. At most limit entries are returned.
func TopProductsByQuantity(txns []core.Transaction, products []core.Product, limit int) []NameQuantity {
	names := make([]string, len(products))
	for i, p := range products {
		names[i] = p.Name
	}
	amounts := topAmounts(names, txns, limit, func(t core.Transaction) (string, decimal.Decimal) {
		var q int64
		if t.Quantity != nil {
			q = *t.Quantity
		}
		return t.ProductName, decimal.NewFromInt(q)
	})

	out := make([]NameQuantity, len(amounts))
	for i, a := range amounts {
		out[i] = NameQuantity{Name: a.Name, Quantity: a.Amount.IntPart()}
	}
	return out
}

// SellerDues lists each seller's stored running due in input order.
// A non-empty sellerID (other than KindAll-style "all") narrows the
// list to that one seller.
func SellerDues(sellers []core.Seller, sellerID string) []NameAmount {
	out := make([]NameAmount, 0, len(sellers))
	for _, s := range sellers {
		if sellerID != "" && sellerID != "all" && s.ID != sellerID {
			continue
		}
		out = append(out, NameAmount{Name: s.Name, Amount: s.Dues})
	}
	return out
}

// StockDistribution lists each product's stock in input order.
func StockDistribution(products []core.Product) []NameQuantity {
	out := make([]NameQuantity, 0, len(products))
	for _, p := range products {
		out = append(out, NameQuantity{Name: p.Name, Quantity: p.Stock})
	}
	return out
}

// FilterTransactions narrows transactions by seller, free-text search
// and kind. The search term matches case-insensitively against the
// product name, seller name or date string; the three criteria
// compose with AND. Empty criteria (and kind "all") match everything.
func FilterTransactions(txns []core.Transaction, f Filter) []core.Transaction {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]core.Transaction, 0, len(txns))
	for _, t := range txns {
		if f.SellerID != "" && f.SellerID != "all" && t.SellerID != f.SellerID {
			continue
		}
		if f.Kind != "" && f.Kind != KindAll && string(t.Kind) != f.Kind {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.ProductName), search) &&
			!strings.Contains(strings.ToLower(t.SellerName), search) &&
			!strings.Contains(t.Date.String(), search) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// TodaysSales sums the amounts of all transactions dated today,
// comparing calendar days rather than timestamps.
func TodaysSales(txns []core.Transaction, today core.Date) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txns {
		if t.Date.SameDay(today) {
			sum = sum.Add(t.Amount)
		}
	}
	return sum
}

// Dashboard computes the headline card values for a snapshot.
func Dashboard(snap core.Snapshot, today core.Date) Summary {
	dues := decimal.Zero
	for _, s := range snap.Sellers {
		dues = dues.Add(s.Dues)
	}
	return Summary{
		TotalProducts: len(snap.Products),
		TotalSellers:  len(snap.Sellers),
		TotalDues:     dues,
		TodaysSales:   TodaysSales(snap.Transactions, today),
	}
}

// SellerSummary totals one seller's transactions: the gross value of
// everything taken and the outstanding due across the ledger entries.
func SellerSummary(txns []core.Transaction, sellerID string) SellerTotals {
	taken := decimal.Zero
	due := decimal.Zero
	for _, t := range txns {
		if t.SellerID != sellerID {
			continue
		}
		taken = taken.Add(t.Amount)
		due = due.Add(t.DueAmount)
	}
	return SellerTotals{TotalTaken: taken, TotalDue: due}
}

// DueMismatch reconciles each seller's stored running due against the
// sum of their transaction-level dues, returning only sellers where
// the two disagree. The stored field is authoritative; this view
// exists to surface drift, not to correct it.
func DueMismatch(sellers []core.Seller, txns []core.Transaction) []NameAmount {
	derived := map[string]decimal.Decimal{}
	for _, t := range txns {
		derived[t.SellerID] = derived[t.SellerID].Add(t.DueAmount)
	}
	var out []NameAmount
	for _, s := range sellers {
		diff := s.Dues.Sub(derived[s.ID])
		if !diff.IsZero() {
			out = append(out, NameAmount{Name: s.Name, Amount: diff})
		}
	}
	return out
}

// topAmounts seeds every known name with zero, accumulates extract's
// value per name (first-encountered order for names only seen in
// transactions), then sorts descending with stable ties truncated to
// limit.
func topAmounts(names []string, txns []core.Transaction, limit int, extract func(core.Transaction) (string, decimal.Decimal)) []NameAmount {
	totals := map[string]decimal.Decimal{}
	order := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := totals[n]; !ok {
			totals[n] = decimal.Zero
			order = append(order, n)
		}
	}
	for _, t := range txns {
		name, v := extract(t)
		if name == "" {
			continue
		}
		if _, ok := totals[name]; !ok {
			order = append(order, name)
		}
		totals[name] = totals[name].Add(v)
	}

	out := make([]NameAmount, 0, len(order))
	for _, n := range order {
		out = append(out, NameAmount{Name: n, Amount: totals[n]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Amount.GreaterThan(out[j].Amount)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sellerNames(sellers []core.Seller) []string {
	names := make([]string, len(sellers))
	for i, s := range sellers {
		names[i] = s.Name
	}
	return names
}
