package sheets

import (
	"context"

	"casa/internal/core"
)

// Ports for outbound adapters.
type (
	// RowExporter mirrors transactions into a spreadsheet, one row each,
	// keyed by transaction ID in the first column.
	RowExporter interface {
		AppendTransaction(ctx context.Context, tx core.Transaction) (rowRef string, err error)
		// DeleteTransactionRow clears the row holding id. A missing row is
		// not an error.
		DeleteTransactionRow(ctx context.Context, id string) error
	}

	// RowReader reads exported rows back, for imports and reconciliation.
	RowReader interface {
		ReadTransactions(ctx context.Context) ([]core.Transaction, error)
	}
)
