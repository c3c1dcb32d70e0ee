package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"casa/internal/core"
	"casa/internal/store"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements store.Store on a local SQLite file.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

var _ store.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Foreign keys are per connection in SQLite; the pragma in the DSN applies
	// it to every pooled connection.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	status, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("SQLite schema ready", "path", dbPath, "version", status.Version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// inTx runs fn inside a database transaction, rolling back on error.
func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, store.ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", what, id, err)
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) error {
	if tx.ID == "" {
		return errors.New("create transaction: missing id")
	}
	err := r.queries.CreateTransaction(ctx, TransactionRow{
		ID:           tx.ID,
		Ledger:       tx.Ledger().String(),
		UserID:       tx.UserID,
		HouseholdID:  tx.HouseholdID,
		Name:         tx.Name,
		AmountCents:  tx.Amount.Cents,
		Category:     tx.Category,
		Date:         tx.Date.String(),
		Notes:        tx.Notes,
		UserFullName: tx.UserFullName,
		CreatedAt:    formatTime(tx.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	slog.DebugContext(ctx, "Transaction saved to SQLite", "id", tx.ID, "ledger", tx.Ledger().String())
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, notFound(err, "transaction", id)
	}
	return rowToTransaction(row), nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, ledger core.LedgerKey) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsByLedger(ctx, ledger.String())
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", ledger, err)
	}
	return rowsToTransactions(rows), nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	n, err := r.queries.SoftDeleteTransaction(ctx, id, r.now())
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) PendingExports(ctx context.Context, limit int) ([]core.Transaction, error) {
	l := int64(limit)
	if limit <= 0 {
		l = -1
	}
	rows, err := r.queries.ListPendingExports(ctx, l)
	if err != nil {
		return nil, fmt.Errorf("list pending exports: %w", err)
	}
	return rowsToTransactions(rows), nil
}

func (r *SQLiteRepository) MarkExported(ctx context.Context, id string, status store.ExportStatus) error {
	n, err := r.queries.MarkExport(ctx, id, string(status), r.now())
	if err != nil {
		return fmt.Errorf("mark export %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) ExportStatus(ctx context.Context, id string) (store.ExportStatus, error) {
	status, err := r.queries.GetExportStatus(ctx, id)
	if err != nil {
		return "", notFound(err, "transaction", id)
	}
	return store.ExportStatus(status), nil
}

func (r *SQLiteRepository) CreateHousehold(ctx context.Context, h core.Household, owner core.Member) error {
	return r.inTx(ctx, func(q *Queries) error {
		taken, err := q.MemberExists(ctx, owner.UserID)
		if err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if taken {
			return store.ErrAlreadyMember
		}
		if err := q.CreateHousehold(ctx, HouseholdRow{
			ID:        h.ID,
			Name:      h.Name,
			OwnerID:   h.OwnerID,
			CreatedAt: formatTime(h.CreatedAt),
		}); err != nil {
			return fmt.Errorf("create household: %w", err)
		}
		if err := q.AddMember(ctx, memberToRow(h.ID, owner)); err != nil {
			return fmt.Errorf("add owner: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) GetHousehold(ctx context.Context, id string) (core.Household, error) {
	row, err := r.queries.GetHousehold(ctx, id)
	if err != nil {
		return core.Household{}, notFound(err, "household", id)
	}
	members, err := r.queries.ListMembers(ctx, id)
	if err != nil {
		return core.Household{}, fmt.Errorf("list members of %s: %w", id, err)
	}
	h := core.Household{
		ID:        row.ID,
		Name:      row.Name,
		OwnerID:   row.OwnerID,
		CreatedAt: parseTime(row.CreatedAt),
	}
	for _, m := range members {
		h.Members = append(h.Members, rowToMember(m))
	}
	return h, nil
}

func (r *SQLiteRepository) GetUserHousehold(ctx context.Context, userID string) (core.Household, error) {
	id, err := r.queries.GetMembershipHousehold(ctx, userID)
	if err != nil {
		return core.Household{}, notFound(err, "household for user", userID)
	}
	return r.GetHousehold(ctx, id)
}

func (r *SQLiteRepository) AddMember(ctx context.Context, householdID string, m core.Member) error {
	return r.inTx(ctx, func(q *Queries) error {
		if _, err := q.GetHousehold(ctx, householdID); err != nil {
			return notFound(err, "household", householdID)
		}
		taken, err := q.MemberExists(ctx, m.UserID)
		if err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if taken {
			return store.ErrAlreadyMember
		}
		if err := q.AddMember(ctx, memberToRow(householdID, m)); err != nil {
			return fmt.Errorf("add member: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) CreateInvitation(ctx context.Context, inv core.Invitation) error {
	email := strings.ToLower(inv.Email)
	return r.inTx(ctx, func(q *Queries) error {
		if _, err := q.GetHousehold(ctx, inv.HouseholdID); err != nil {
			return notFound(err, "household", inv.HouseholdID)
		}
		exists, err := q.PendingInvitationExists(ctx, inv.HouseholdID, email)
		if err != nil {
			return fmt.Errorf("check pending invitation: %w", err)
		}
		if exists {
			return store.ErrInvitationExists
		}
		if err := q.CreateInvitation(ctx, InvitationRow{
			ID:            inv.ID,
			HouseholdID:   inv.HouseholdID,
			HouseholdName: inv.HouseholdName,
			Email:         email,
			InvitedBy:     inv.InvitedBy,
			Status:        string(inv.Status),
			InvitedAt:     formatTime(inv.InvitedAt),
		}); err != nil {
			return fmt.Errorf("create invitation: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) GetInvitation(ctx context.Context, id string) (core.Invitation, error) {
	row, err := r.queries.GetInvitation(ctx, id)
	if err != nil {
		return core.Invitation{}, notFound(err, "invitation", id)
	}
	return rowToInvitation(row), nil
}

func (r *SQLiteRepository) PendingInvitationsByEmail(ctx context.Context, email string) ([]core.Invitation, error) {
	rows, err := r.queries.ListPendingInvitationsByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	out := make([]core.Invitation, len(rows))
	for i, row := range rows {
		out[i] = rowToInvitation(row)
	}
	return out, nil
}

func (r *SQLiteRepository) MarkInvitationAccepted(ctx context.Context, id string) error {
	return r.inTx(ctx, func(q *Queries) error {
		if _, err := q.GetInvitation(ctx, id); err != nil {
			return notFound(err, "invitation", id)
		}
		n, err := q.AcceptInvitation(ctx, id)
		if err != nil {
			return fmt.Errorf("accept invitation %s: %w", id, err)
		}
		if n == 0 {
			return store.ErrInvitationClosed
		}
		return nil
	})
}

func rowToTransaction(row TransactionRow) core.Transaction {
	return core.Transaction{
		ID:           row.ID,
		UserID:       row.UserID,
		HouseholdID:  row.HouseholdID,
		Name:         row.Name,
		Amount:       core.Money{Cents: row.AmountCents},
		Category:     row.Category,
		Date:         core.ParseDateSafe(row.Date),
		Notes:        row.Notes,
		UserFullName: row.UserFullName,
		CreatedAt:    parseTime(row.CreatedAt),
	}
}

func rowsToTransactions(rows []TransactionRow) []core.Transaction {
	out := make([]core.Transaction, len(rows))
	for i, row := range rows {
		out[i] = rowToTransaction(row)
	}
	return out
}

func memberToRow(householdID string, m core.Member) MemberRow {
	row := MemberRow{
		HouseholdID: householdID,
		UserID:      m.UserID,
		FirstName:   m.FirstName,
		LastName:    m.LastName,
		Email:       strings.ToLower(m.Email),
		Role:        string(m.Role),
		Joined:      m.Joined,
	}
	if !m.JoinedAt.IsZero() {
		row.JoinedAt = sql.NullString{String: formatTime(m.JoinedAt), Valid: true}
	}
	return row
}

func rowToMember(row MemberRow) core.Member {
	m := core.Member{
		UserID:    row.UserID,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		Email:     row.Email,
		Role:      core.Role(row.Role),
		Joined:    row.Joined,
	}
	if row.JoinedAt.Valid {
		m.JoinedAt = parseTime(row.JoinedAt.String)
	}
	return m
}

func rowToInvitation(row InvitationRow) core.Invitation {
	return core.Invitation{
		ID:            row.ID,
		HouseholdID:   row.HouseholdID,
		HouseholdName: row.HouseholdName,
		Email:         row.Email,
		InvitedBy:     row.InvitedBy,
		Status:        core.InvitationStatus(row.Status),
		InvitedAt:     parseTime(row.InvitedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
