package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"khata/internal/core"
	"khata/internal/events"
	"khata/internal/store"
)

// Publisher announces committed ledger mutations to interested
// consumers, usually an events.Client over AMQP.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, event *events.LedgerEvent) error
	Close() error
}

// LedgerService orchestrates ledger mutations: it commits through the
// store and then announces the change. Publishing is best-effort; a
// broker outage never fails a committed write.
type LedgerService struct {
	store     *store.Store
	publisher Publisher
}

func NewLedgerService(st *store.Store, publisher Publisher) *LedgerService {
	return &LedgerService{
		store:     st,
		publisher: publisher,
	}
}

func (s *LedgerService) Store() *store.Store {
	return s.store
}

func (s *LedgerService) AddProduct(ctx context.Context, name string, price decimal.Decimal, stock int64) (core.Product, error) {
	p, err := s.store.AddProduct(ctx, name, price, stock)
	if err != nil {
		return core.Product{}, fmt.Errorf("add product: %w", err)
	}
	s.publish(ctx, events.OpProductAdded, p.ID)
	return p, nil
}

func (s *LedgerService) AddSeller(ctx context.Context, name, phone string) (core.Seller, error) {
	sl, err := s.store.AddSeller(ctx, name, phone)
	if err != nil {
		return core.Seller{}, fmt.Errorf("add seller: %w", err)
	}
	s.publish(ctx, events.OpSellerAdded, sl.ID)
	return sl, nil
}

func (s *LedgerService) RecordSale(ctx context.Context, in store.SaleInput) (core.Transaction, error) {
	txn, err := s.store.AddSale(ctx, in)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("record sale: %w", err)
	}
	s.publish(ctx, events.OpSaleRecorded, txn.ID)
	return txn, nil
}

func (s *LedgerService) RecordPayment(ctx context.Context, txnID string, amount decimal.Decimal) (core.Transaction, error) {
	txn, err := s.store.RecordPayment(ctx, txnID, amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("record payment: %w", err)
	}
	s.publish(ctx, events.OpPaymentRecorded, txn.ID)
	return txn, nil
}

func (s *LedgerService) publish(ctx context.Context, op, entityID string) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Event publisher not available, skipping event", "op", op)
		return
	}
	event := events.NewLedgerEvent(op, entityID, s.store.Version())
	if err := s.publisher.PublishLedgerEvent(ctx, event); err != nil {
		// The write is already committed; losing the event only delays
		// downstream exports until the next periodic run.
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"op", op, "entityId", entityID, "error", err)
	}
}

func (s *LedgerService) Close() error {
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.Close(); err != nil {
		return fmt.Errorf("close ledger service: %w", err)
	}
	return nil
}
