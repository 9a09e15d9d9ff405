package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"khata/internal/events"
	"khata/internal/export"
	"khata/internal/report"
	"khata/internal/store"
)

// ExportWorker mirrors ledger reports into external sheets. It reacts
// to ledger events and also runs a periodic export as a backup in case
// events are lost.
type ExportWorker struct {
	store *store.Store
	sales export.SalesWriter
	dues  export.DuesWriter

	// lastEvent is the highest event version exported so far. Event
	// versions come from the producing process, so they are only
	// compared with each other, never with this store's counter.
	mu        sync.Mutex
	lastEvent uint64
}

func NewExportWorker(st *store.Store, sales export.SalesWriter, dues export.DuesWriter) *ExportWorker {
	return &ExportWorker{
		store: st,
		sales: sales,
		dues:  dues,
	}
}

// HandleLedgerEvent exports the current reports in response to one
// committed mutation. Re-deliveries of already-exported versions are
// acknowledged without work.
func (w *ExportWorker) HandleLedgerEvent(ctx context.Context, event *events.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"eventId", event.EventID,
		"op", event.Op,
		"version", event.Version)

	w.mu.Lock()
	seen := event.Version <= w.lastEvent
	w.mu.Unlock()
	if seen {
		slog.InfoContext(ctx, "Version already exported, skipping",
			"version", event.Version)
		return nil
	}

	if err := w.ExportOnce(ctx); err != nil {
		return fmt.Errorf("export for event %s: %w", event.EventID, err)
	}

	w.mu.Lock()
	if event.Version > w.lastEvent {
		w.lastEvent = event.Version
	}
	w.mu.Unlock()
	return nil
}

// ExportOnce refreshes the ledger from the gateway and rewrites both
// export sheets from the resulting snapshot.
func (w *ExportWorker) ExportOnce(ctx context.Context) error {
	if err := w.store.Load(ctx); err != nil {
		return fmt.Errorf("reload ledger: %w", err)
	}
	snap := w.store.Snapshot()

	if w.sales != nil {
		rows := report.MonthlySales(snap.Transactions, report.KindAll)
		if err := w.sales.WriteMonthlySales(ctx, rows); err != nil {
			return fmt.Errorf("export monthly sales: %w", err)
		}
	}
	if w.dues != nil {
		rows := report.SellerDues(snap.Sellers, "all")
		if err := w.dues.WriteSellerDues(ctx, rows); err != nil {
			return fmt.Errorf("export seller dues: %w", err)
		}
	}

	slog.InfoContext(ctx, "Exported ledger reports",
		"transactions", len(snap.Transactions),
		"sellers", len(snap.Sellers))
	return nil
}

// Run exports on a fixed interval until ctx is cancelled. This is the
// backup path; the event consumer provides the low-latency one.
func (w *ExportWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping periodic export", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			if err := w.ExportOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic export failed", "error", err)
			}
		}
	}
}
