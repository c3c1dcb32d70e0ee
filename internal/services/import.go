package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"casa/internal/core"
	"casa/internal/store"
)

// ImportOptions controls how rows without a ledger or owner are placed.
type ImportOptions struct {
	// Owner is stamped on rows that carry no user, and must be allowed to
	// write every target ledger.
	Owner core.User
	// HouseholdID places ledger-less rows on that household instead of the
	// owner's personal ledger.
	HouseholdID string
	// MarkExported records imported rows as already exported, for rows read
	// back from the export sheet.
	MarkExported bool
}

// ImportResult counts the outcome of an Import.
type ImportResult struct {
	Imported int
	Skipped  int
	Rejected []error
}

// Import stores a batch of transactions. Rows keep an existing ID and are
// skipped when that ID is already stored; invalid rows are collected in
// Rejected rather than aborting the batch. No events are published.
func (s *LedgerService) Import(ctx context.Context, txs []core.Transaction, opts ImportOptions) (ImportResult, error) {
	var res ImportResult
	if opts.Owner.ID == "" {
		return res, fmt.Errorf("%w: import owner is required", ErrValidation)
	}

	now := s.now()
	allowed := make(map[core.LedgerKey]error)
	touched := make(map[core.LedgerKey]struct{})

	for i, tx := range txs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		row := i + 1

		tx = placeImported(tx, opts)
		key := tx.Ledger()
		authErr, seen := allowed[key]
		if !seen {
			authErr = s.authorize(ctx, opts.Owner, key)
			allowed[key] = authErr
		}
		if authErr != nil {
			res.Rejected = append(res.Rejected, fmt.Errorf("row %d: %w", row, authErr))
			continue
		}

		tx = core.NormalizeClassification(tx)
		if err := tx.Validate(now); err != nil {
			res.Rejected = append(res.Rejected, fmt.Errorf("row %d: %w: %w", row, ErrValidation, err))
			continue
		}

		if tx.ID == "" {
			tx.ID = uuid.NewString()
		} else if _, err := s.store.GetTransaction(ctx, tx.ID); err == nil {
			res.Skipped++
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return res, fmt.Errorf("row %d: lookup %s: %w", row, tx.ID, err)
		}
		tx.CreatedAt = now.UTC()

		if err := s.store.CreateTransaction(ctx, tx); err != nil {
			res.Rejected = append(res.Rejected, fmt.Errorf("row %d: save: %w", row, err))
			continue
		}
		if opts.MarkExported {
			if err := s.store.MarkExported(ctx, tx.ID, store.ExportDone); err != nil {
				slog.WarnContext(ctx, "Failed to mark imported row exported", "transaction_id", tx.ID, "error", err)
			}
		}
		touched[key] = struct{}{}
		res.Imported++
	}

	for key := range touched {
		s.invalidate(key)
	}

	slog.InfoContext(ctx, "Import finished",
		"imported", res.Imported,
		"skipped", res.Skipped,
		"rejected", len(res.Rejected),
		"user_id", opts.Owner.ID)
	return res, nil
}

func placeImported(tx core.Transaction, opts ImportOptions) core.Transaction {
	if tx.UserID == "" && tx.HouseholdID == "" {
		tx.HouseholdID = opts.HouseholdID
	}
	if tx.UserID == "" {
		tx.UserID = opts.Owner.ID
	}
	if tx.UserFullName == "" {
		tx.UserFullName = opts.Owner.FullName
	}
	return tx
}
