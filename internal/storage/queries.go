package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx so queries run inside or outside
// a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const timeLayout = time.RFC3339Nano

type TransactionRow struct {
	ID           string
	Ledger       string
	UserID       string
	HouseholdID  string
	Name         string
	AmountCents  int64
	Category     string
	Date         string
	Notes        string
	UserFullName string
	CreatedAt    string
	ExportStatus string
}

const transactionColumns = `id, ledger, user_id, household_id, name, amount_cents, category, date, notes, user_full_name, created_at, export_status`

func scanTransaction(sc interface{ Scan(...any) error }) (TransactionRow, error) {
	var r TransactionRow
	err := sc.Scan(&r.ID, &r.Ledger, &r.UserID, &r.HouseholdID, &r.Name, &r.AmountCents,
		&r.Category, &r.Date, &r.Notes, &r.UserFullName, &r.CreatedAt, &r.ExportStatus)
	return r, err
}

const createTransaction = `
INSERT INTO transactions (id, ledger, user_id, household_id, name, amount_cents, category, date, notes, user_full_name, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateTransaction(ctx context.Context, r TransactionRow) error {
	_, err := q.db.ExecContext(ctx, createTransaction,
		r.ID, r.Ledger, r.UserID, r.HouseholdID, r.Name, r.AmountCents,
		r.Category, r.Date, r.Notes, r.UserFullName, r.CreatedAt)
	return err
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ? AND deleted_at IS NULL`

func (q *Queries) GetTransaction(ctx context.Context, id string) (TransactionRow, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id))
}

const listTransactionsByLedger = `SELECT ` + transactionColumns + `
FROM transactions WHERE ledger = ? AND deleted_at IS NULL ORDER BY rowid`

func (q *Queries) ListTransactionsByLedger(ctx context.Context, ledger string) ([]TransactionRow, error) {
	return q.listTransactions(ctx, listTransactionsByLedger, ledger)
}

const listPendingExports = `SELECT ` + transactionColumns + `
FROM transactions
WHERE deleted_at IS NULL AND export_status IN ('pending', 'error')
ORDER BY rowid LIMIT ?`

func (q *Queries) ListPendingExports(ctx context.Context, limit int64) ([]TransactionRow, error) {
	return q.listTransactions(ctx, listPendingExports, limit)
}

func (q *Queries) listTransactions(ctx context.Context, query string, args ...any) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []TransactionRow{}
	for rows.Next() {
		r, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const softDeleteTransaction = `UPDATE transactions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

func (q *Queries) SoftDeleteTransaction(ctx context.Context, id string, at time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, softDeleteTransaction, at.UTC().Format(timeLayout), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markExport = `UPDATE transactions SET export_status = ?, exported_at = ? WHERE id = ?`

func (q *Queries) MarkExport(ctx context.Context, id, status string, at time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, markExport, status, at.UTC().Format(timeLayout), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getExportStatus = `SELECT export_status FROM transactions WHERE id = ?`

func (q *Queries) GetExportStatus(ctx context.Context, id string) (string, error) {
	var status string
	err := q.db.QueryRowContext(ctx, getExportStatus, id).Scan(&status)
	return status, err
}

type HouseholdRow struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt string
}

type MemberRow struct {
	HouseholdID string
	UserID      string
	FirstName   string
	LastName    string
	Email       string
	Role        string
	Joined      bool
	JoinedAt    sql.NullString
}

const createHousehold = `INSERT INTO households (id, name, owner_id, created_at) VALUES (?, ?, ?, ?)`

func (q *Queries) CreateHousehold(ctx context.Context, r HouseholdRow) error {
	_, err := q.db.ExecContext(ctx, createHousehold, r.ID, r.Name, r.OwnerID, r.CreatedAt)
	return err
}

const getHousehold = `SELECT id, name, owner_id, created_at FROM households WHERE id = ?`

func (q *Queries) GetHousehold(ctx context.Context, id string) (HouseholdRow, error) {
	var r HouseholdRow
	err := q.db.QueryRowContext(ctx, getHousehold, id).Scan(&r.ID, &r.Name, &r.OwnerID, &r.CreatedAt)
	return r, err
}

const getMembershipHousehold = `SELECT household_id FROM household_members WHERE user_id = ? AND joined = 1`

func (q *Queries) GetMembershipHousehold(ctx context.Context, userID string) (string, error) {
	var id string
	err := q.db.QueryRowContext(ctx, getMembershipHousehold, userID).Scan(&id)
	return id, err
}

const memberExists = `SELECT EXISTS(SELECT 1 FROM household_members WHERE user_id = ?)`

func (q *Queries) MemberExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, memberExists, userID).Scan(&exists)
	return exists, err
}

const addMember = `
INSERT INTO household_members (household_id, user_id, first_name, last_name, email, role, joined, joined_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) AddMember(ctx context.Context, r MemberRow) error {
	_, err := q.db.ExecContext(ctx, addMember, r.HouseholdID, r.UserID, r.FirstName, r.LastName,
		r.Email, r.Role, boolToInt(r.Joined), r.JoinedAt)
	return err
}

const listMembers = `
SELECT household_id, user_id, first_name, last_name, email, role, joined, joined_at
FROM household_members WHERE household_id = ? ORDER BY rowid`

func (q *Queries) ListMembers(ctx context.Context, householdID string) ([]MemberRow, error) {
	rows, err := q.db.QueryContext(ctx, listMembers, householdID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MemberRow
	for rows.Next() {
		var r MemberRow
		if err := rows.Scan(&r.HouseholdID, &r.UserID, &r.FirstName, &r.LastName, &r.Email,
			&r.Role, &r.Joined, &r.JoinedAt); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

type InvitationRow struct {
	ID            string
	HouseholdID   string
	HouseholdName string
	Email         string
	InvitedBy     string
	Status        string
	InvitedAt     string
}

const invitationColumns = `id, household_id, household_name, email, invited_by, status, invited_at`

func scanInvitation(sc interface{ Scan(...any) error }) (InvitationRow, error) {
	var r InvitationRow
	err := sc.Scan(&r.ID, &r.HouseholdID, &r.HouseholdName, &r.Email, &r.InvitedBy, &r.Status, &r.InvitedAt)
	return r, err
}

const pendingInvitationExists = `
SELECT EXISTS(SELECT 1 FROM invitations WHERE household_id = ? AND email = ? AND status = 'pending')`

func (q *Queries) PendingInvitationExists(ctx context.Context, householdID, email string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, pendingInvitationExists, householdID, email).Scan(&exists)
	return exists, err
}

const createInvitation = `INSERT INTO invitations (` + invitationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateInvitation(ctx context.Context, r InvitationRow) error {
	_, err := q.db.ExecContext(ctx, createInvitation, r.ID, r.HouseholdID, r.HouseholdName, r.Email,
		r.InvitedBy, r.Status, r.InvitedAt)
	return err
}

const getInvitation = `SELECT ` + invitationColumns + ` FROM invitations WHERE id = ?`

func (q *Queries) GetInvitation(ctx context.Context, id string) (InvitationRow, error) {
	return scanInvitation(q.db.QueryRowContext(ctx, getInvitation, id))
}

const listPendingInvitationsByEmail = `SELECT ` + invitationColumns + `
FROM invitations WHERE email = ? AND status = 'pending' ORDER BY rowid`

func (q *Queries) ListPendingInvitationsByEmail(ctx context.Context, email string) ([]InvitationRow, error) {
	rows, err := q.db.QueryContext(ctx, listPendingInvitationsByEmail, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []InvitationRow{}
	for rows.Next() {
		r, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const acceptInvitation = `UPDATE invitations SET status = 'accepted' WHERE id = ? AND status = 'pending'`

func (q *Queries) AcceptInvitation(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, acceptInvitation, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
