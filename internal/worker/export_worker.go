package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"casa/internal/amqp"
	"casa/internal/core"
	applog "casa/internal/log"
	"casa/internal/sheets"
	"casa/internal/store"
)

// Source is the storage the worker reads transactions and export state from.
type Source interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	store.ExportTracker
}

// ExportWorker mirrors transactions into the export spreadsheet.
type ExportWorker struct {
	source    Source
	exporter  sheets.RowExporter
	batchSize int
}

func NewExportWorker(source Source, exporter sheets.RowExporter, batchSize int) *ExportWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &ExportWorker{
		source:    source,
		exporter:  exporter,
		batchSize: batchSize,
	}
}

// HandleEvent processes one transaction event from AMQP. A returned error
// requeues the message.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"type", ev.Type,
		"transaction_id", ev.TransactionID,
		"ledger", ev.Ledger)

	switch ev.Type {
	case amqp.EventCreated:
		return w.handleCreated(ctx, ev.TransactionID)
	case amqp.EventDeleted:
		return w.handleDeleted(ctx, ev.TransactionID)
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}

func (w *ExportWorker) handleCreated(ctx context.Context, id string) error {
	status, err := w.source.ExportStatus(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "Transaction not found, dropping event", "transaction_id", id)
			return nil
		}
		return fmt.Errorf("get export status: %w", err)
	}
	if status == store.ExportDone || status == store.ExportRetracted {
		slog.DebugContext(ctx, "Transaction already handled, skipping", "transaction_id", id, "status", status)
		return nil
	}

	tx, err := w.source.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Deleted before we got to it; the deleted event retracts it.
			return nil
		}
		return fmt.Errorf("get transaction from storage: %w", err)
	}
	return w.export(ctx, tx)
}

func (w *ExportWorker) handleDeleted(ctx context.Context, id string) error {
	if err := w.exporter.DeleteTransactionRow(ctx, id); err != nil {
		return fmt.Errorf("delete sheet row: %w", err)
	}
	if err := w.source.MarkExported(ctx, id, store.ExportRetracted); err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.ErrorContext(ctx, "Failed to mark transaction retracted", "transaction_id", id, "error", err)
	}
	slog.InfoContext(ctx, "Retracted transaction from sheet", "transaction_id", id)
	return nil
}

func (w *ExportWorker) export(ctx context.Context, tx core.Transaction) error {
	ref, err := w.exporter.AppendTransaction(ctx, tx)
	if err != nil {
		applog.NewStructuredLogger(applog.FromContext(ctx)).LogError(ctx, "Sheet append failed", err,
			applog.ComponentWorker, applog.OpExport,
			applog.NewFields().
				WithTransaction(tx.ID, tx.Ledger().String(), tx.Name, tx.Amount.Cents, tx.Category).
				WithUser(tx.UserID))
		if markErr := w.source.MarkExported(ctx, tx.ID, store.ExportFailed); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error", "transaction_id", tx.ID, "error", markErr)
		}
		return fmt.Errorf("append to sheet: %w", err)
	}

	// The row is written; a failed mark only risks a duplicate on the next sweep.
	if err := w.source.MarkExported(ctx, tx.ID, store.ExportDone); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as exported", "transaction_id", tx.ID, "error", err)
	}

	slog.InfoContext(ctx, "Exported transaction",
		"transaction_id", tx.ID,
		"sheets_ref", ref,
		"ledger", tx.Ledger().String(),
		"amount_cents", tx.Amount.Cents)
	return nil
}

// ProcessPending exports one batch of transactions that never made it to the
// sheet. It is the backup path for lost AMQP messages.
func (w *ExportWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

func (w *ExportWorker) processPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.source.PendingExports(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending exports: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	exported := 0
	for _, tx := range pending {
		if err := ctx.Err(); err != nil {
			return exported, err
		}
		if err := w.export(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction", "transaction_id", tx.ID, "error", err)
			continue
		}
		exported++
	}
	return exported, nil
}

// StartupCheck exports a larger backlog once when the worker boots, to
// recover from downtime.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	exported, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup export check: %w", err)
	}
	slog.InfoContext(ctx, "Startup export check completed", "exported", exported)
	return nil
}
