package export

import (
	"context"

	"khata/internal/report"
)

// Ports for outbound report adapters.
type (
	// SalesWriter replaces the exported monthly sales series.
	SalesWriter interface {
		WriteMonthlySales(ctx context.Context, rows []report.MonthTotal) error
	}

	// DuesWriter replaces the exported per-seller dues table.
	DuesWriter interface {
		WriteSellerDues(ctx context.Context, rows []report.NameAmount) error
	}
)
