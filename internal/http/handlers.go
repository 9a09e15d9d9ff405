package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"khata/internal/store"
)

type addProductRequest struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int64           `json:"stock"`
}

type addSellerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type recordSaleRequest struct {
	ProductID  string          `json:"productId"`
	SellerID   string          `json:"sellerId"`
	Quantity   int64           `json:"quantity"`
	PaidAmount decimal.Decimal `json:"paidAmount"`
	Date       string          `json:"date"`
}

type recordPaymentRequest struct {
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
}

// handleData returns the full ledger snapshot, the shape persisted by
// the file gateway.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Store().Snapshot())
}

func (s *Server) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	var req addProductRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := s.ledger.AddProduct(r.Context(), sanitizeInput(req.Name), req.Price, req.Stock)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleAddSeller(w http.ResponseWriter, r *http.Request) {
	var req addSellerRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	sl, err := s.ledger.AddSeller(r.Context(), sanitizeInput(req.Name), sanitizeInput(req.Phone))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sl)
}

func (s *Server) handleRecordSale(w http.ResponseWriter, r *http.Request) {
	var req recordSaleRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}

	txn, err := s.ledger.RecordSale(r.Context(), store.SaleInput{
		ProductID: req.ProductID,
		SellerID:  req.SellerID,
		Quantity:  req.Quantity,
		Paid:      req.PaidAmount,
		Date:      date,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	txn, err := s.ledger.RecordPayment(r.Context(), req.TransactionID, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}
