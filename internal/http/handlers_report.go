package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"khata/internal/cache"
	"khata/internal/core"
	"khata/internal/report"
)

// topLimit matches what the dashboard charts display.
const topLimit = 5

type monthTotalJSON struct {
	Label string          `json:"label"`
	Year  int             `json:"year"`
	Month int             `json:"month"`
	Total decimal.Decimal `json:"total"`
}

type nameAmountJSON struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

type nameQuantityJSON struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

type dashboardJSON struct {
	TotalProducts int             `json:"totalProducts"`
	TotalSellers  int             `json:"totalSellers"`
	TotalDues     decimal.Decimal `json:"totalDues"`
	TodaysSales   decimal.Decimal `json:"todaysSales"`
}

type sellerSummaryJSON struct {
	TotalTaken decimal.Decimal `json:"totalTaken"`
	TotalDue   decimal.Decimal `json:"totalDue"`
}

// cachedReport serves a memoized payload when the snapshot version and
// parameters match a previous request.
func (s *Server) cachedReport(w http.ResponseWriter, r *http.Request, name string, params []string, build func() (any, error)) {
	key := cache.Key(name, s.ledger.Store().Version(), params...)
	if body, ok := s.reportCache.Get(key); ok {
		writeRawJSON(w, http.StatusOK, body)
		return
	}

	v, err := build()
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		writeErrorStatus(w, http.StatusInternalServerError, "encode response")
		return
	}
	s.reportCache.Set(key, body)
	writeRawJSON(w, http.StatusOK, body)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.cachedReport(w, r, "dashboard", nil, func() (any, error) {
		// Not cacheable across midnight, but the TTL is far shorter
		// than a day.
		sum := report.Dashboard(s.ledger.Store().Snapshot(), core.Today())
		return dashboardJSON{
			TotalProducts: sum.TotalProducts,
			TotalSellers:  sum.TotalSellers,
			TotalDues:     sum.TotalDues,
			TodaysSales:   sum.TodaysSales,
		}, nil
	})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := report.Filter{
		SellerID: strings.TrimSpace(q.Get("sellerId")),
		Search:   q.Get("search"),
		Kind:     strings.TrimSpace(q.Get("kind")),
	}
	txns := report.FilterTransactions(s.ledger.Store().Snapshot().Transactions, f)
	writeJSON(w, http.StatusOK, txns)
}

func (s *Server) handleMonthlySales(w http.ResponseWriter, r *http.Request) {
	kind := strings.TrimSpace(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = report.KindAll
	}
	s.cachedReport(w, r, "monthly-sales", []string{kind}, func() (any, error) {
		rows := report.MonthlySales(s.ledger.Store().Snapshot().Transactions, kind)
		out := make([]monthTotalJSON, len(rows))
		for i, row := range rows {
			out[i] = monthTotalJSON{
				Label: row.Label,
				Year:  row.Year,
				Month: int(row.Month),
				Total: row.Total,
			}
		}
		return out, nil
	})
}

func (s *Server) handleTopSellers(w http.ResponseWriter, r *http.Request) {
	s.cachedReport(w, r, "top-sellers", nil, func() (any, error) {
		snap := s.ledger.Store().Snapshot()
		return toNameAmounts(report.TopSellersByRevenue(snap.Transactions, snap.Sellers, topLimit)), nil
	})
}

func (s *Server) handleTopProducts(w http.ResponseWriter, r *http.Request) {
	s.cachedReport(w, r, "top-products", nil, func() (any, error) {
		snap := s.ledger.Store().Snapshot()
		return toNameQuantities(report.TopProductsByQuantity(snap.Transactions, snap.Products, topLimit)), nil
	})
}

func (s *Server) handleSellerDues(w http.ResponseWriter, r *http.Request) {
	sellerID := strings.TrimSpace(r.URL.Query().Get("sellerId"))
	s.cachedReport(w, r, "seller-dues", []string{sellerID}, func() (any, error) {
		return toNameAmounts(report.SellerDues(s.ledger.Store().Snapshot().Sellers, sellerID)), nil
	})
}

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	s.cachedReport(w, r, "stock", nil, func() (any, error) {
		return toNameQuantities(report.StockDistribution(s.ledger.Store().Snapshot().Products)), nil
	})
}

func (s *Server) handleSellerSummary(w http.ResponseWriter, r *http.Request) {
	sellerID := strings.TrimSpace(r.URL.Query().Get("sellerId"))
	if sellerID == "" {
		writeErrorStatus(w, http.StatusBadRequest, "missing sellerId")
		return
	}
	s.cachedReport(w, r, "seller-summary", []string{sellerID}, func() (any, error) {
		totals := report.SellerSummary(s.ledger.Store().Snapshot().Transactions, sellerID)
		return sellerSummaryJSON{
			TotalTaken: totals.TotalTaken,
			TotalDue:   totals.TotalDue,
		}, nil
	})
}

func (s *Server) handleDueMismatch(w http.ResponseWriter, r *http.Request) {
	s.cachedReport(w, r, "due-mismatch", nil, func() (any, error) {
		snap := s.ledger.Store().Snapshot()
		return toNameAmounts(report.DueMismatch(snap.Sellers, snap.Transactions)), nil
	})
}

func toNameAmounts(rows []report.NameAmount) []nameAmountJSON {
	out := make([]nameAmountJSON, len(rows))
	for i, row := range rows {
		out[i] = nameAmountJSON{Name: row.Name, Amount: row.Amount}
	}
	return out
}

func toNameQuantities(rows []report.NameQuantity) []nameQuantityJSON {
	out := make([]nameQuantityJSON, len(rows))
	for i, row := range rows {
		out[i] = nameQuantityJSON{Name: row.Name, Quantity: row.Quantity}
	}
	return out
}
