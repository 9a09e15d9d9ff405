package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"khata/internal/core"
	"khata/internal/gateway/memory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seededStore(t *testing.T) (*Store, *memory.Store) {
	t.Helper()
	qty := int64(2)
	gw := memory.NewSeeded(core.Snapshot{
		Products: []core.Product{
			{ID: "p1", Name: "Laptop", Price: dec("80000"), Stock: 50},
			{ID: "p2", Name: "Mouse", Price: dec("800"), Stock: 200},
		},
		Sellers: []core.Seller{
			{ID: "s1", Name: "Rahim Enterprises", Phone: "01711223344", Dues: dec("2500")},
			{ID: "s2", Name: "Karim Traders", Dues: dec("750")},
		},
		Transactions: []core.Transaction{
			{
				ID: "t1", Kind: core.Sale, SellerID: "s1", SellerName: "Rahim Enterprises",
				ProductID: "p1", ProductName: "Laptop", Quantity: &qty,
				Amount: dec("1000"), DueAmount: dec("1000"),
				Date: core.NewDate(2025, time.May, 10),
			},
		},
	})
	s := New(gw)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return s, gw
}

func TestAddProductEchoesInputs(t *testing.T) {
	s := New(memory.New())
	ctx := context.Background()

	p, err := s.AddProduct(ctx, "Keyboard", dec("1500"), 150)
	if err != nil {
		t.Fatalf("add product: %v", err)
	}
	if p.Name != "Keyboard" || !p.Price.Equal(dec("1500")) || p.Stock != 150 {
		t.Fatalf("fields do not echo inputs: %+v", p)
	}
	if p.ID == "" {
		t.Fatal("product must get an identifier")
	}

	q, err := s.AddProduct(ctx, "Monitor", dec("15000"), 30)
	if err != nil {
		t.Fatalf("add second product: %v", err)
	}
	if q.ID == p.ID {
		t.Fatalf("identifiers must be unique, both %q", p.ID)
	}
}

func TestAddProductValidation(t *testing.T) {
	s := New(memory.New())
	ctx := context.Background()

	cases := []struct {
		name  string
		price decimal.Decimal
		stock int64
	}{
		{"", dec("1"), 1},
		{"   ", dec("1"), 1},
		{"x", dec("-1"), 1},
		{"x", dec("1"), -1},
	}
	for i, tc := range cases {
		if _, err := s.AddProduct(ctx, tc.name, tc.price, tc.stock); !errors.Is(err, core.ErrValidation) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
	if len(s.Snapshot().Products) != 0 {
		t.Fatal("failed adds must not mutate the store")
	}
}

func TestAddSellerStartsWithZeroDues(t *testing.T) {
	s := New(memory.New())
	sl, err := s.AddSeller(context.Background(), "Digital Solutions", "01911223344")
	if err != nil {
		t.Fatalf("add seller: %v", err)
	}
	if !sl.Dues.IsZero() {
		t.Fatalf("new seller must start with zero dues, got %s", sl.Dues)
	}
	if _, err := s.AddSeller(context.Background(), "", ""); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("empty name should fail validation, got %v", err)
	}
}

func TestIdentifiersSeedFromLoadedData(t *testing.T) {
	s, _ := seededStore(t)
	ctx := context.Background()

	p, err := s.AddProduct(ctx, "Monitor", dec("15000"), 30)
	if err != nil {
		t.Fatalf("add product: %v", err)
	}
	if p.ID != "p3" {
		t.Fatalf("expected p3 after p1,p2, got %s", p.ID)
	}
	sl, err := s.AddSeller(ctx, "Digital Solutions", "")
	if err != nil {
		t.Fatalf("add seller: %v", err)
	}
	if sl.ID != "s3" {
		t.Fatalf("expected s3 after s1,s2, got %s", sl.ID)
	}
}

func TestConcurrentAddsKeepIdentifiersUnique(t *testing.T) {
	s := New(memory.New())
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.AddProduct(ctx, fmt.Sprintf("item-%d", i), dec("1"), 1); err != nil {
				t.Errorf("add: %v", err)
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, p := range s.Snapshot().Products {
		if seen[p.ID] {
			t.Fatalf("duplicate identifier %s under concurrent adds", p.ID)
		}
		seen[p.ID] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d products, got %d", n, len(seen))
	}
}

func TestRecordPayment(t *testing.T) {
	s, _ := seededStore(t)
	ctx := context.Background()

	got, err := s.RecordPayment(ctx, "t1", dec("600"))
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if !got.DueAmount.Equal(dec("400")) {
		t.Fatalf("expected due 400 after 600 payment, got %s", got.DueAmount)
	}

	snap := s.Snapshot()
	var seller core.Seller
	for _, sl := range snap.Sellers {
		if sl.ID == "s1" {
			seller = sl
		}
	}
	if !seller.Dues.Equal(dec("1900")) {
		t.Fatalf("seller dues must drop by the same amount: expected 1900, got %s", seller.Dues)
	}

	// A further payment is capped by the current due, not the original.
	if _, err := s.RecordPayment(ctx, "t1", dec("1000")); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("payment above current due must fail validation, got %v", err)
	}

	// The ledger gains a payment entry mirroring the applied amount.
	last := snap.Transactions[len(snap.Transactions)-1]
	if last.Kind != core.Payment {
		t.Fatalf("expected trailing payment entry, got %+v", last)
	}
	if !last.Amount.Equal(dec("600")) || !last.DueAmount.Equal(dec("-600")) {
		t.Fatalf("payment entry should carry amount 600 / due -600, got %s / %s", last.Amount, last.DueAmount)
	}
	if last.Quantity != nil {
		t.Fatal("payment entries carry no quantity")
	}
}

func TestRecordPaymentRejectsBadInput(t *testing.T) {
	s, _ := seededStore(t)
	ctx := context.Background()

	if _, err := s.RecordPayment(ctx, "t1", decimal.Zero); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("zero amount should fail, got %v", err)
	}
	if _, err := s.RecordPayment(ctx, "t1", dec("-5")); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("negative amount should fail, got %v", err)
	}
	if _, err := s.RecordPayment(ctx, "missing", dec("1")); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("unknown transaction should be not-found, got %v", err)
	}

	// Failed payments leave both sides of the balance untouched.
	snap := s.Snapshot()
	if !snap.Transactions[0].DueAmount.Equal(dec("1000")) {
		t.Fatalf("transaction due changed by failed payment: %s", snap.Transactions[0].DueAmount)
	}
	if !snap.Sellers[0].Dues.Equal(dec("2500")) {
		t.Fatalf("seller dues changed by failed payment: %s", snap.Sellers[0].Dues)
	}
}

func TestSaveFailureRollsBack(t *testing.T) {
	s, gw := seededStore(t)
	ctx := context.Background()
	before := s.Snapshot()
	version := s.Version()

	gw.FailNextSave = errors.New("disk full")
	if _, err := s.RecordPayment(ctx, "t1", dec("600")); err == nil {
		t.Fatal("payment must fail when the save fails")
	}

	after := s.Snapshot()
	if len(after.Transactions) != len(before.Transactions) {
		t.Fatal("rolled-back payment left a ledger entry behind")
	}
	if !after.Transactions[0].DueAmount.Equal(dec("1000")) {
		t.Fatalf("transaction due not rolled back: %s", after.Transactions[0].DueAmount)
	}
	if !after.Sellers[0].Dues.Equal(dec("2500")) {
		t.Fatalf("seller dues not rolled back: %s", after.Sellers[0].Dues)
	}
	if s.Version() != version {
		t.Fatal("version must not advance on a failed mutation")
	}

	gw.FailNextSave = errors.New("disk full")
	if _, err := s.AddProduct(ctx, "Monitor", dec("15000"), 30); err == nil {
		t.Fatal("add must fail when the save fails")
	}
	if len(s.Snapshot().Products) != len(before.Products) {
		t.Fatal("rolled-back add left a product behind")
	}
}

func TestAddSale(t *testing.T) {
	s, _ := seededStore(t)
	ctx := context.Background()

	txn, err := s.AddSale(ctx, SaleInput{
		ProductID: "p2", SellerID: "s2", Quantity: 10,
		Paid: dec("5000"), Date: core.NewDate(2025, time.June, 5),
	})
	if err != nil {
		t.Fatalf("add sale: %v", err)
	}
	if !txn.Amount.Equal(dec("8000")) {
		t.Fatalf("amount should be price*quantity=8000, got %s", txn.Amount)
	}
	if !txn.DueAmount.Equal(dec("3000")) {
		t.Fatalf("due should be amount-paid=3000, got %s", txn.DueAmount)
	}

	snap := s.Snapshot()
	for _, p := range snap.Products {
		if p.ID == "p2" && p.Stock != 190 {
			t.Fatalf("stock should drop by quantity: expected 190, got %d", p.Stock)
		}
	}
	for _, sl := range snap.Sellers {
		if sl.ID == "s2" && !sl.Dues.Equal(dec("3750")) {
			t.Fatalf("seller dues should grow by the unpaid portion: expected 3750, got %s", sl.Dues)
		}
	}
}

func TestAddSaleValidation(t *testing.T) {
	s, _ := seededStore(t)
	ctx := context.Background()

	cases := []struct {
		in   SaleInput
		want error
	}{
		{SaleInput{ProductID: "p1", SellerID: "s1", Quantity: 0}, core.ErrValidation},
		{SaleInput{ProductID: "p1", SellerID: "s1", Quantity: 1000}, core.ErrInsufficientStock},
		{SaleInput{ProductID: "nope", SellerID: "s1", Quantity: 1}, core.ErrUnknownProduct},
		{SaleInput{ProductID: "p1", SellerID: "nope", Quantity: 1}, core.ErrUnknownSeller},
		{SaleInput{ProductID: "p2", SellerID: "s1", Quantity: 1, Paid: dec("9999")}, core.ErrInvalidAmount},
	}
	for i, tc := range cases {
		if _, err := s.AddSale(ctx, tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestVersionAdvancesPerMutation(t *testing.T) {
	s := New(memory.New())
	ctx := context.Background()

	v0 := s.Version()
	if _, err := s.AddSeller(ctx, "Karim Traders", ""); err != nil {
		t.Fatalf("add seller: %v", err)
	}
	if s.Version() != v0+1 {
		t.Fatalf("version should advance by one per mutation: %d -> %d", v0, s.Version())
	}
}
