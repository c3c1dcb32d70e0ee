package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casa/internal/core"
)

func cents(c int64) core.Money { return core.Money{Cents: c} }

func tx(name string, amount int64, category string, date core.Date) core.Transaction {
	return core.Transaction{Name: name, Amount: cents(amount), Category: category, Date: date}
}

var refNow = time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)

func TestComputeTotals(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, Totals{}, ComputeTotals(nil))
		assert.Equal(t, Totals{}, ComputeTotals([]core.Transaction{}))
	})

	t.Run("income and expenses", func(t *testing.T) {
		txs := []core.Transaction{
			tx("salary", 10000, "Income", core.Date{}),
			tx("lunch", 4000, "Food", core.Date{}),
			tx("dinner", 2000, "Food", core.Date{}),
		}
		got := ComputeTotals(txs)
		assert.Equal(t, cents(10000), got.Income)
		assert.Equal(t, cents(6000), got.Expenses)
		assert.Equal(t, cents(4000), got.Balance)
	})

	t.Run("sign never decides classification", func(t *testing.T) {
		txs := []core.Transaction{
			tx("refund", -500, "Food", core.Date{}),
			tx("paycheck", -1000, "Income", core.Date{}),
		}
		got := ComputeTotals(txs)
		assert.Equal(t, cents(1000), got.Income)
		assert.Equal(t, cents(500), got.Expenses)
		assert.Equal(t, cents(500), got.Balance)
	})

	t.Run("normalized notes marker counts as income", func(t *testing.T) {
		legacy := core.NormalizeClassification(core.Transaction{Amount: cents(700), Category: "Other", Notes: "INCOME: side job"})
		got := ComputeTotals([]core.Transaction{legacy, tx("bus", 300, "Transportation", core.Date{})})
		assert.Equal(t, cents(700), got.Income)
		assert.Equal(t, cents(300), got.Expenses)
	})

	t.Run("each transaction counted exactly once", func(t *testing.T) {
		txs := []core.Transaction{
			tx("a", 123, "Income", core.Date{}),
			tx("b", -456, "", core.Date{}),
			tx("c", 789, "Rent", core.Date{}),
			tx("d", 0, "Income", core.Date{}),
		}
		var sumAbs int64
		for _, x := range txs {
			sumAbs += x.Amount.Abs().Cents
		}
		got := ComputeTotals(txs)
		assert.Equal(t, sumAbs, got.Income.Cents+got.Expenses.Cents)
		assert.GreaterOrEqual(t, got.Income.Cents+got.Expenses.Cents, int64(0))
	})
}

func TestComputeRecentWindow(t *testing.T) {
	txs := []core.Transaction{
		tx("today", 100, "Food", core.NewDate(2024, 3, 15)),
		tx("lower bound", 200, "Food", core.NewDate(2024, 2, 14)),
		tx("too old", 400, "Food", core.NewDate(2024, 2, 13)),
		tx("future", 800, "Food", core.NewDate(2024, 3, 16)),
		tx("no date", 1600, "Food", core.Date{}),
		tx("pay", 5000, "Income", core.NewDate(2024, 3, 1)),
	}

	got := ComputeRecentWindow(txs, 30, refNow)
	assert.Equal(t, cents(300), got.Expenses)
	assert.Equal(t, cents(5000), got.Income)
	assert.Equal(t, cents(4700), got.Balance)

	recent := RecentWindow(txs, 30, refNow)
	names := make([]string, len(recent))
	for i, r := range recent {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"today", "lower bound", "pay"}, names)

	assert.Equal(t, Totals{}, ComputeRecentWindow(nil, 30, refNow))
}

func TestSavingsRate(t *testing.T) {
	assert.Zero(t, SavingsRate(cents(0), cents(12345)))
	assert.Zero(t, SavingsRate(cents(0), cents(0)))
	assert.InDelta(t, 40.0, SavingsRate(cents(10000), cents(6000)), 1e-9)
	assert.InDelta(t, -50.0, SavingsRate(cents(10000), cents(15000)), 1e-9)
	assert.InDelta(t, 100.0/3, SavingsRate(cents(300), cents(200)), 1e-9)
}

func TestGroupByCategory(t *testing.T) {
	txs := []core.Transaction{
		tx("salary", 10000, "Income", core.Date{}),
		tx("lunch", 4000, "Food", core.Date{}),
		tx("rent", 90000, "Rent", core.Date{}),
		tx("refund", -1000, "Food", core.Date{}),
		tx("misc", 50, "", core.Date{}),
		tx("lower", 300, "food", core.Date{}),
	}

	got := GroupByCategory(txs)
	assert.Equal(t, []Group{
		{Name: "Income", Amount: cents(10000)},
		{Name: "Food", Amount: cents(5000)},
		{Name: "Rent", Amount: cents(90000)},
		{Name: "food", Amount: cents(300)},
	}, got)

	t.Run("expenses only excludes the income category", func(t *testing.T) {
		got := GroupByCategory(Expenses([]core.Transaction{
			tx("salary", 10000, "Income", core.Date{}),
			tx("a", 4000, "Food", core.Date{}),
			tx("b", 2000, "Food", core.Date{}),
		}))
		assert.Equal(t, []Group{{Name: "Food", Amount: cents(6000)}}, got)
	})

	assert.Empty(t, GroupByCategory(nil))
}

func TestGroupByContributor(t *testing.T) {
	txs := []core.Transaction{
		{UserFullName: "Jane Doe", Amount: cents(2500)},
		{UserFullName: "", Amount: cents(100)},
		{UserFullName: "John Roe", Amount: cents(7500)},
		{UserFullName: "Jane Doe", Amount: cents(-500)},
		{UserFullName: "   ", Amount: cents(50)},
	}
	got := GroupByContributor(txs)
	assert.Equal(t, []Group{
		{Name: "Jane Doe", Amount: cents(2000)},
		{Name: "Unknown", Amount: cents(150)},
		{Name: "John Roe", Amount: cents(7500)},
	}, got)
}

func TestCategoryAndContributorSignAsymmetry(t *testing.T) {
	txs := []core.Transaction{
		{UserFullName: "Jane Doe", Category: "Food", Amount: cents(1000)},
		{UserFullName: "Jane Doe", Category: "Food", Amount: cents(-400)},
	}
	assert.Equal(t, cents(1400), GroupByCategory(txs)[0].Amount)
	assert.Equal(t, cents(600), GroupByContributor(txs)[0].Amount)
}

func TestTopCategories(t *testing.T) {
	txs := []core.Transaction{
		tx("a", 1000, "Fun", core.Date{}),
		tx("b", 6000, "Food", core.Date{}),
		tx("c", 3000, "Rent", core.Date{}),
		tx("d", 3000, "Travel", core.Date{}),
	}

	assert.Equal(t, []string{"Food"}, TopCategories(txs, 1))
	assert.Equal(t, []string{"Food", "Rent", "Travel"}, TopCategories(txs, 3), "ties keep first appearance order")
	assert.Equal(t, []string{"Food", "Rent", "Travel", "Fun"}, TopCategories(txs, 10))
	assert.Empty(t, TopCategories(txs, 0))
	assert.Empty(t, TopCategories(nil, 5))
}

func TestBucketByMonth(t *testing.T) {
	txs := []core.Transaction{
		tx("jan", 1000, "Food", core.NewDate(2024, 1, 31)),
		tx("feb", 2000, "Rent", core.NewDate(2024, 2, 1)),
		tx("feb refund", -500, "Food", core.NewDate(2024, 2, 10)),
		tx("mar", 300, "", core.NewDate(2024, 3, 15)),
		tx("last year", 9999, "Travel", core.NewDate(2023, 3, 15)),
		tx("next month", 7777, "Food", core.NewDate(2024, 4, 1)),
		tx("undated", 4444, "Food", core.Date{}),
	}

	buckets := BucketByMonth(txs, 3, refNow)
	require.Len(t, buckets, 3)

	assert.Equal(t, "Jan 2024", buckets[0].Label)
	assert.Equal(t, "Feb 2024", buckets[1].Label)
	assert.Equal(t, "Mar 2024", buckets[2].Label)
	assert.Equal(t, time.February, buckets[1].Month)
	assert.Equal(t, 2024, buckets[1].Year)

	assert.Equal(t, cents(1000), buckets[0].Total)
	assert.Equal(t, cents(2500), buckets[1].Total)
	assert.Equal(t, cents(300), buckets[2].Total)

	// every category seen anywhere is present in every bucket
	for _, b := range buckets {
		assert.Len(t, b.ByCategory, 3)
		assert.Contains(t, b.ByCategory, "Travel")
	}
	assert.Equal(t, cents(1000), buckets[0].ByCategory["Food"])
	assert.Equal(t, cents(500), buckets[1].ByCategory["Food"])
	assert.Equal(t, cents(2000), buckets[1].ByCategory["Rent"])
	assert.Equal(t, cents(0), buckets[2].ByCategory["Food"])
	assert.Equal(t, cents(0), buckets[0].ByCategory["Travel"])
}

func TestBucketByMonthAlwaysProducesMonthCount(t *testing.T) {
	for _, n := range []int{1, 6, 13} {
		buckets := BucketByMonth(nil, n, refNow)
		require.Len(t, buckets, n)
		for _, b := range buckets {
			assert.Zero(t, b.Total.Cents)
			assert.Empty(t, b.ByCategory)
		}
		assert.Equal(t, "Mar 2024", buckets[n-1].Label)
	}
	assert.Empty(t, BucketByMonth(nil, 0, refNow))

	// crossing a year boundary
	buckets := BucketByMonth(nil, 4, refNow)
	assert.Equal(t, "Dec 2023", buckets[0].Label)
}

func TestBucketByMonthEndOfMonthReference(t *testing.T) {
	// AddDate on the 31st must not skip February
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	buckets := BucketByMonth(nil, 3, now)
	assert.Equal(t, []string{"Jan 2024", "Feb 2024", "Mar 2024"},
		[]string{buckets[0].Label, buckets[1].Label, buckets[2].Label})
}

func TestContributionShare(t *testing.T) {
	txs := []core.Transaction{
		{UserFullName: "Jane Doe", Category: "Food", Amount: cents(2500)},
		{UserFullName: "John Roe", Category: "Rent", Amount: cents(7500)},
		{UserFullName: "Jane Doe", Category: "Income", Amount: cents(100000)},
	}
	expenses := Expenses(txs)

	assert.InDelta(t, 25.0, ContributionShare(expenses, "Jane Doe"), 1e-9)
	assert.InDelta(t, 75.0, ContributionShare(expenses, "John Roe"), 1e-9)
	assert.Zero(t, ContributionShare(expenses, "jane doe"), "match is case-sensitive")
	assert.Zero(t, ContributionShare(expenses, ""))
	assert.Zero(t, ContributionShare(nil, "Jane Doe"))
	assert.InDelta(t, 50.0, ContributionShareOf(expenses, "Jane Doe", cents(5000)), 1e-9)
	assert.Zero(t, ContributionShareOf(expenses, "Jane Doe", cents(0)))
}

func TestSortAndFilter(t *testing.T) {
	txs := []core.Transaction{
		tx("b", 500, "Food", core.NewDate(2024, 2, 1)),
		tx("a", 1500, "Rent", core.NewDate(2024, 1, 1)),
		tx("c", -200, "Food", core.Date{}),
		tx("d", 900, "Food", core.NewDate(2024, 3, 1)),
	}
	names := func(in []core.Transaction) []string {
		out := make([]string, len(in))
		for i, x := range in {
			out[i] = x.Name
		}
		return out
	}

	assert.Equal(t, []string{"a", "d", "b", "c"}, names(SortAndFilter(txs, SortByAmount, Descending, "")))
	assert.Equal(t, []string{"c", "b", "d", "a"}, names(SortAndFilter(txs, SortByAmount, Ascending, "")))
	assert.Equal(t, []string{"c", "a", "b", "d"}, names(SortAndFilter(txs, SortByDate, Ascending, "")))
	assert.Equal(t, []string{"d", "b", "a", "c"}, names(SortAndFilter(txs, SortByDate, Descending, "")))
	assert.Equal(t, []string{"d", "b", "c"}, names(SortAndFilter(txs, SortByDate, Descending, "Food")))
	assert.Empty(t, SortAndFilter(txs, SortByDate, Descending, "Travel"))

	// input order is untouched
	assert.Equal(t, []string{"b", "a", "c", "d"}, names(txs))
}

func TestParseSortOptions(t *testing.T) {
	assert.Equal(t, SortByAmount, ParseSortKey("Amount"))
	assert.Equal(t, SortByDate, ParseSortKey(""))
	assert.Equal(t, SortByDate, ParseSortKey("name"))
	assert.Equal(t, Ascending, ParseSortDirection("asc"))
	assert.Equal(t, Descending, ParseSortDirection(""))
}

func TestRecent(t *testing.T) {
	txs := []core.Transaction{
		tx("old", 1, "", core.NewDate(2024, 1, 1)),
		tx("new", 1, "", core.NewDate(2024, 3, 1)),
		tx("mid", 1, "", core.NewDate(2024, 2, 1)),
	}
	got := Recent(txs, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].Name)
	assert.Equal(t, "mid", got[1].Name)
}

func TestSummarize(t *testing.T) {
	txs := []core.Transaction{
		{Name: "pay", Category: "Income", Amount: cents(10000), Date: core.NewDate(2024, 3, 1), UserFullName: "Jane Doe"},
		{Name: "food", Category: "Food", Amount: cents(2500), Date: core.NewDate(2024, 3, 2), UserFullName: "Jane Doe"},
		{Name: "rent", Category: "Rent", Amount: cents(7500), Date: core.NewDate(2023, 12, 1), UserFullName: "John Roe"},
	}
	s := Summarize(txs, ViewContext{UserID: "u1", DisplayName: "John Roe", Now: refNow}, Options{})

	assert.Equal(t, 3, s.Count)
	assert.Equal(t, DefaultRecentDays, s.RecentDays)
	assert.Equal(t, cents(10000), s.Totals.Expenses)
	assert.Equal(t, cents(2500), s.Recent.Expenses)
	assert.InDelta(t, 75.0, s.SavingsRate, 1e-9)
	assert.Len(t, s.Months, DefaultMonths)
	assert.Equal(t, []string{"Income", "Rent", "Food"}, s.TopCategories)
	assert.Equal(t, "John Roe", s.Contribution.Name)
	assert.Equal(t, cents(7500), s.Contribution.Amount)
	assert.InDelta(t, 75.0, s.Contribution.Percentage, 1e-9)

	require.Len(t, s.Latest, 3)
	assert.Equal(t, "food", s.Latest[0].Name)
	assert.Equal(t, "rent", s.Latest[2].Name)

	empty := Summarize(nil, ViewContext{Now: refNow}, DefaultOptions())
	assert.Zero(t, empty.SavingsRate)
	assert.Empty(t, empty.Latest)
	assert.NotNil(t, empty.Spending)
	assert.NotNil(t, empty.Categories)
	assert.NotNil(t, empty.Contributors)
	assert.Zero(t, empty.Contribution.Percentage)
}

func TestSummarizeContributionIgnoresIncome(t *testing.T) {
	txs := []core.Transaction{
		{Name: "food", Category: "Food", Amount: cents(2500), Date: core.NewDate(2024, 3, 2), UserFullName: "Jane Doe"},
		{Name: "pay", Category: "Income", Amount: cents(100000), Date: core.NewDate(2024, 3, 1), UserFullName: "Jane Doe"},
		{Name: "rent", Category: "Rent", Amount: cents(7500), Date: core.NewDate(2024, 3, 3), UserFullName: "John Roe"},
	}
	s := Summarize(txs, ViewContext{DisplayName: "Jane Doe", Now: refNow}, Options{})

	assert.Equal(t, cents(2500), s.Contribution.Amount)
	assert.InDelta(t, 25.0, s.Contribution.Percentage, 1e-9)
	assert.Equal(t, []Group{{Name: "Jane Doe", Amount: cents(2500)}, {Name: "John Roe", Amount: cents(7500)}}, s.Contributors)
	assert.Equal(t, []Group{{Name: "Food", Amount: cents(2500)}, {Name: "Rent", Amount: cents(7500)}}, s.Spending)
	assert.Len(t, s.Categories, 3, "the full breakdown keeps income")
}

func TestSummarizeLatestIsCapped(t *testing.T) {
	var txs []core.Transaction
	for day := 1; day <= RecentLimit+3; day++ {
		txs = append(txs, tx("t", 100, "Food", core.NewDate(2024, 3, day)))
	}
	s := Summarize(txs, ViewContext{Now: refNow}, Options{})
	require.Len(t, s.Latest, RecentLimit)
	assert.Equal(t, core.NewDate(2024, 3, RecentLimit+3), s.Latest[0].Date)
}

func TestComputeTotalsLargestAmounts(t *testing.T) {
	largest, err := core.ParseAmount("999999999999.99")
	require.NoError(t, err)

	txs := make([]core.Transaction, 10000)
	for i := range txs {
		txs[i] = core.Transaction{Name: "big", Amount: largest, Category: "Rent"}
	}
	totals := ComputeTotals(txs)
	assert.Equal(t, largest.Cents*10000, totals.Expenses.Cents)
	assert.Positive(t, totals.Expenses.Cents)
}
