package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"khata/internal/core"
	"khata/internal/gateway/memory"
	"khata/internal/services"
	"khata/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st := store.New(memory.New())
	svc := services.NewLedgerService(st, nil)
	s := NewServer("127.0.0.1:0", svc, Options{})
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s, st
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, s, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestAddProduct(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/products", map[string]any{
		"name": "Laptop", "price": 80000, "stock": 50,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	p := decode[core.Product](t, rec)
	if p.ID == "" || p.Name != "Laptop" || p.Stock != 50 {
		t.Fatalf("unexpected product: %+v", p)
	}
	if !p.Price.Equal(decimal.RequireFromString("80000")) {
		t.Fatalf("price = %s, want 80000", p.Price)
	}
}

func TestAddProduct_Invalid(t *testing.T) {
	s, st := newTestServer(t)

	tests := []struct {
		name string
		body any
	}{
		{"empty name", map[string]any{"name": "", "price": 10, "stock": 1}},
		{"negative price", map[string]any{"name": "X", "price": -10, "stock": 1}},
		{"negative stock", map[string]any{"name": "X", "price": 10, "stock": -1}},
		{"unknown field", map[string]any{"name": "X", "price": 10, "stock": 1, "color": "red"}},
		{"malformed body", "not json at all"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/api/products", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
			}
			resp := decode[map[string]string](t, rec)
			if resp["error"] == "" {
				t.Fatal("error body should carry a message")
			}
		})
	}
	if n := len(st.Snapshot().Products); n != 0 {
		t.Fatalf("rejected requests must not mutate state, got %d products", n)
	}
}

func TestSaleAndPaymentFlow(t *testing.T) {
	s, st := newTestServer(t)

	product := decode[core.Product](t, doJSON(t, s, http.MethodPost, "/api/products", map[string]any{
		"name": "Monitor", "price": 15000, "stock": 30,
	}))
	seller := decode[core.Seller](t, doJSON(t, s, http.MethodPost, "/api/sellers", map[string]any{
		"name": "Rahim Enterprises", "phone": "01700000000",
	}))

	rec := doJSON(t, s, http.MethodPost, "/api/sales", map[string]any{
		"productId":  product.ID,
		"sellerId":   seller.ID,
		"quantity":   2,
		"paidAmount": 20000,
		"date":       "2026-08-30",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("sale status = %d, body = %s", rec.Code, rec.Body.String())
	}
	sale := decode[core.Transaction](t, rec)
	if !sale.Amount.Equal(decimal.RequireFromString("30000")) {
		t.Fatalf("sale amount = %s, want 30000", sale.Amount)
	}
	if !sale.DueAmount.Equal(decimal.RequireFromString("10000")) {
		t.Fatalf("sale due = %s, want 10000", sale.DueAmount)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/payments", map[string]any{
		"transactionId": sale.ID,
		"amount":        6000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("payment status = %d, body = %s", rec.Code, rec.Body.String())
	}
	// The response is the settled sale with its reduced due.
	settled := decode[core.Transaction](t, rec)
	if settled.ID != sale.ID {
		t.Fatalf("payment response should be the settled sale, got %+v", settled)
	}
	if !settled.DueAmount.Equal(decimal.RequireFromString("4000")) {
		t.Fatalf("due after payment = %s, want 4000", settled.DueAmount)
	}

	snap := st.Snapshot()
	last := snap.Transactions[len(snap.Transactions)-1]
	if last.Kind != core.Payment || !last.DueAmount.Equal(decimal.RequireFromString("-6000")) {
		t.Fatalf("ledger should end with the payment entry, got %+v", last)
	}
	if snap.Products[0].Stock != 28 {
		t.Errorf("stock = %d, want 28", snap.Products[0].Stock)
	}
	if !snap.Sellers[0].Dues.Equal(decimal.RequireFromString("4000")) {
		t.Errorf("seller dues = %s, want 4000", snap.Sellers[0].Dues)
	}
}

func TestRecordPayment_Errors(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/payments", map[string]any{
		"transactionId": "t999", "amount": 100,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown transaction status = %d, want 404", rec.Code)
	}

	product := decode[core.Product](t, doJSON(t, s, http.MethodPost, "/api/products", map[string]any{
		"name": "Mouse", "price": 800, "stock": 10,
	}))
	seller := decode[core.Seller](t, doJSON(t, s, http.MethodPost, "/api/sellers", map[string]any{
		"name": "Karim Traders",
	}))
	sale := decode[core.Transaction](t, doJSON(t, s, http.MethodPost, "/api/sales", map[string]any{
		"productId": product.ID, "sellerId": seller.ID, "quantity": 1, "paidAmount": 300,
	}))

	// Due is 500; overpaying is a validation error.
	rec = doJSON(t, s, http.MethodPost, "/api/payments", map[string]any{
		"transactionId": sale.ID, "amount": 600,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("overpayment status = %d, want 400, body = %s", rec.Code, rec.Body.String())
	}
}

func TestGetData(t *testing.T) {
	s, _ := newTestServer(t)

	doJSON(t, s, http.MethodPost, "/api/products", map[string]any{"name": "Laptop", "price": 80000, "stock": 50})
	doJSON(t, s, http.MethodPost, "/api/sellers", map[string]any{"name": "Rahim Enterprises"})

	rec := doJSON(t, s, http.MethodGet, "/api/data", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	snap := decode[core.Snapshot](t, rec)
	if len(snap.Products) != 1 || len(snap.Sellers) != 1 || len(snap.Transactions) != 0 {
		t.Fatalf("unexpected snapshot: %d/%d/%d",
			len(snap.Products), len(snap.Sellers), len(snap.Transactions))
	}
}

func TestTransactionsFilter(t *testing.T) {
	s, _ := newTestServer(t)

	laptop := decode[core.Product](t, doJSON(t, s, http.MethodPost, "/api/products", map[string]any{"name": "Laptop", "price": 80000, "stock": 50}))
	mouse := decode[core.Product](t, doJSON(t, s, http.MethodPost, "/api/products", map[string]any{"name": "Mouse", "price": 800, "stock": 100}))
	rahim := decode[core.Seller](t, doJSON(t, s, http.MethodPost, "/api/sellers", map[string]any{"name": "Rahim Enterprises"}))
	karim := decode[core.Seller](t, doJSON(t, s, http.MethodPost, "/api/sellers", map[string]any{"name": "Karim Traders"}))

	doJSON(t, s, http.MethodPost, "/api/sales", map[string]any{"productId": laptop.ID, "sellerId": rahim.ID, "quantity": 1, "paidAmount": 80000})
	doJSON(t, s, http.MethodPost, "/api/sales", map[string]any{"productId": mouse.ID, "sellerId": karim.ID, "quantity": 5, "paidAmount": 4000})

	all := decode[[]core.Transaction](t, doJSON(t, s, http.MethodGet, "/api/transactions", nil))
	if len(all) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(all))
	}

	bySeller := decode[[]core.Transaction](t, doJSON(t, s, http.MethodGet, "/api/transactions?sellerId="+rahim.ID, nil))
	if len(bySeller) != 1 || bySeller[0].ProductName != "Laptop" {
		t.Fatalf("unexpected seller filter result: %+v", bySeller)
	}

	bySearch := decode[[]core.Transaction](t, doJSON(t, s, http.MethodGet, "/api/transactions?search=mouse", nil))
	if len(bySearch) != 1 || bySearch[0].ProductName != "Mouse" {
		t.Fatalf("unexpected search result: %+v", bySearch)
	}
}

func TestDashboardAndReports(t *testing.T) {
	s, _ := newTestServer(t)

	laptop := decode[core.Product](t, doJSON(t, s, http.MethodPost, "/api/products", map[string]any{"name": "Laptop", "price": 80000, "stock": 50}))
	rahim := decode[core.Seller](t, doJSON(t, s, http.MethodPost, "/api/sellers", map[string]any{"name": "Rahim Enterprises"}))
	doJSON(t, s, http.MethodPost, "/api/sales", map[string]any{"productId": laptop.ID, "sellerId": rahim.ID, "quantity": 2, "paidAmount": 100000})

	dash := decode[dashboardJSON](t, doJSON(t, s, http.MethodGet, "/api/dashboard", nil))
	if dash.TotalProducts != 1 || dash.TotalSellers != 1 {
		t.Fatalf("unexpected dashboard counts: %+v", dash)
	}
	if !dash.TotalDues.Equal(decimal.RequireFromString("60000")) {
		t.Fatalf("dashboard dues = %s, want 60000", dash.TotalDues)
	}
	if !dash.TodaysSales.Equal(decimal.RequireFromString("160000")) {
		t.Fatalf("todays sales = %s, want 160000", dash.TodaysSales)
	}

	sales := decode[[]monthTotalJSON](t, doJSON(t, s, http.MethodGet, "/api/reports/monthly-sales", nil))
	if len(sales) != 1 || !sales[0].Total.Equal(decimal.RequireFromString("160000")) {
		t.Fatalf("unexpected monthly sales: %+v", sales)
	}

	top := decode[[]nameAmountJSON](t, doJSON(t, s, http.MethodGet, "/api/reports/top-sellers", nil))
	if len(top) != 1 || top[0].Name != "Rahim Enterprises" {
		t.Fatalf("unexpected top sellers: %+v", top)
	}

	stock := decode[[]nameQuantityJSON](t, doJSON(t, s, http.MethodGet, "/api/reports/stock", nil))
	if len(stock) != 1 || stock[0].Quantity != 48 {
		t.Fatalf("unexpected stock report: %+v", stock)
	}

	dues := decode[[]nameAmountJSON](t, doJSON(t, s, http.MethodGet, "/api/reports/seller-dues?sellerId="+rahim.ID, nil))
	if len(dues) != 1 || !dues[0].Amount.Equal(decimal.RequireFromString("60000")) {
		t.Fatalf("unexpected seller dues: %+v", dues)
	}

	summary := decode[sellerSummaryJSON](t, doJSON(t, s, http.MethodGet, "/api/reports/seller-summary?sellerId="+rahim.ID, nil))
	if !summary.TotalTaken.Equal(decimal.RequireFromString("160000")) || !summary.TotalDue.Equal(decimal.RequireFromString("60000")) {
		t.Fatalf("unexpected seller summary: %+v", summary)
	}

	mismatch := decode[[]nameAmountJSON](t, doJSON(t, s, http.MethodGet, "/api/reports/due-mismatch", nil))
	if len(mismatch) != 0 {
		t.Fatalf("consistent ledger should report no mismatch: %+v", mismatch)
	}
}

func TestSellerSummary_RequiresSellerID(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/reports/seller-summary", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestReportCacheInvalidatesOnMutation(t *testing.T) {
	s, _ := newTestServer(t)

	before := decode[[]nameQuantityJSON](t, doJSON(t, s, http.MethodGet, "/api/reports/stock", nil))
	if len(before) != 0 {
		t.Fatalf("expected empty stock report, got %+v", before)
	}

	doJSON(t, s, http.MethodPost, "/api/products", map[string]any{"name": "Keyboard", "price": 1500, "stock": 150})

	// The new snapshot version must bypass the cached empty payload.
	after := decode[[]nameQuantityJSON](t, doJSON(t, s, http.MethodGet, "/api/reports/stock", nil))
	if len(after) != 1 || after[0].Name != "Keyboard" {
		t.Fatalf("stale report served after mutation: %+v", after)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < 60; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("61st request within a minute should be rejected")
	}
	if !rl.allow("10.0.0.2") {
		t.Fatal("other clients are not affected")
	}
}

func TestRateLimiter_ResetsAfterWindow(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	rl.clients["10.0.0.1"] = &clientInfo{
		lastRequest: time.Now().Add(-2 * time.Minute),
		requests:    60,
	}
	if !rl.allow("10.0.0.1") {
		t.Fatal("window should reset after a minute of silence")
	}
}
