package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casa/internal/core"
	"casa/internal/store"
	"casa/internal/store/storetest"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "casa.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLiteConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newTestRepo(t) })
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "casa.db")
	status, err := RunMigrations(path)
	require.NoError(t, err)
	assert.Equal(t, uint(2), status.Version)
	assert.False(t, status.Dirty)

	status, err = RunMigrations(path)
	require.NoError(t, err)
	assert.Equal(t, uint(2), status.Version)
}

func TestIncomeMarkerMigration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	// Build the pre-classification schema by hand: version 1 only.
	m, err := newMigrator(db)
	require.NoError(t, err)
	require.NoError(t, m.Steps(1))

	q := New(db)
	for _, row := range []TransactionRow{
		{ID: "a", Ledger: "personal:u1", UserID: "u1", Name: "bonus", AmountCents: 500, Category: "Other", Notes: "INCOME: bonus", CreatedAt: "2024-01-01T00:00:00Z"},
		{ID: "b", Ledger: "personal:u1", UserID: "u1", Name: "lunch", AmountCents: 900, Category: "Food", Notes: "income: lowercase", CreatedAt: "2024-01-01T00:00:00Z"},
	} {
		require.NoError(t, q.CreateTransaction(context.Background(), row))
	}

	require.NoError(t, m.Up())

	repo := &SQLiteRepository{db: db, queries: q}
	a, err := repo.GetTransaction(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, core.IncomeCategory, a.Category)
	assert.True(t, a.IsIncome())

	b, err := repo.GetTransaction(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "Food", b.Category)
}

func TestMissingDateRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateTransaction(ctx, core.Transaction{
		ID: "x", UserID: "u1", Name: "legacy", Amount: core.Money{Cents: 100},
	}))
	got, err := repo.GetTransaction(ctx, "x")
	require.NoError(t, err)
	assert.True(t, got.Date.IsEmpty())
}
