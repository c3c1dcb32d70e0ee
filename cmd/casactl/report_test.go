package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casa/internal/aggregate"
	"casa/internal/core"
)

func TestRenderSummary(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		{Name: "Salary", Amount: core.Money{Cents: 300000}, Category: core.IncomeCategory, Date: core.NewDate(2024, 6, 1), HouseholdID: "h", UserFullName: "Alice Smith"},
		{Name: "Rent", Amount: core.Money{Cents: 120000}, Category: "Rent", Date: core.NewDate(2024, 6, 2), HouseholdID: "h", UserFullName: "Alice Smith"},
		{Name: "Food", Amount: core.Money{Cents: 30000}, Category: "Groceries", Date: core.NewDate(2024, 5, 20), HouseholdID: "h", UserFullName: "Bob Jones"},
	}
	sum := aggregate.Summarize(txs, aggregate.ViewContext{UserID: "bob", DisplayName: "Bob Jones", Now: now},
		aggregate.Options{RecentDays: 30, Months: 2, TopN: 2})

	var buf bytes.Buffer
	require.NoError(t, renderSummary(&buf, "Flat 4B", sum, true))
	out := buf.String()

	for _, want := range []string{
		"Flat 4B",
		"3 transactions",
		"$3000.00",
		"$1500.00",
		"Your share",
		"(20.0%)",
		"By contributor",
		"Alice Smith",
		"By category",
		"Groceries",
		"Last 2 months",
		"May 2024",
		"Jun 2024",
		"Recent transactions",
		"2024-06-02",
		"Salary",
	} {
		assert.Contains(t, out, want)
	}
}

func TestRenderSummaryPersonalEmpty(t *testing.T) {
	sum := aggregate.Summarize(nil, aggregate.ViewContext{UserID: "alice", Now: time.Now()}, aggregate.DefaultOptions())

	var buf bytes.Buffer
	require.NoError(t, renderSummary(&buf, "Personal ledger", sum, false))
	out := buf.String()

	assert.Contains(t, out, "0 transactions")
	assert.Contains(t, out, "none")
	assert.NotContains(t, out, "Your share")
	assert.NotContains(t, out, "By contributor")
}
