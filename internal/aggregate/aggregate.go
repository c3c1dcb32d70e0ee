package aggregate

import (
	"slices"
	"time"

	"casa/internal/core"
)

// ComputeTotals adds each transaction's absolute amount to exactly one of
// income or expenses.
func ComputeTotals(txs []core.Transaction) Totals {
	var t Totals
	for _, tx := range txs {
		if tx.IsIncome() {
			t.Income = t.Income.Add(tx.Amount.Abs())
		} else {
			t.Expenses = t.Expenses.Add(tx.Amount.Abs())
		}
	}
	t.Balance = t.Income.Sub(t.Expenses)
	return t
}

// InWindow reports whether date falls within [now-days, now]. Missing dates
// are never in a window.
func InWindow(date core.Date, days int, now time.Time) bool {
	if date.IsEmpty() || days < 0 {
		return false
	}
	today := core.DateOf(now)
	from := today.AddDate(0, 0, -days)
	return !date.Before(from) && !date.After(today.Time)
}

// RecentWindow returns the transactions dated within the trailing window.
func RecentWindow(txs []core.Transaction, windowDays int, now time.Time) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if InWindow(tx.Date, windowDays, now) {
			out = append(out, tx)
		}
	}
	return out
}

// ComputeRecentWindow is ComputeTotals over RecentWindow.
func ComputeRecentWindow(txs []core.Transaction, windowDays int, now time.Time) Totals {
	return ComputeTotals(RecentWindow(txs, windowDays, now))
}

// SavingsRate returns (income-expenses)/income as an unrounded percentage, or
// 0 when there is no income.
func SavingsRate(income, expenses core.Money) float64 {
	if income.IsZero() {
		return 0
	}
	return float64(income.Cents-expenses.Cents) / float64(income.Cents) * 100
}

// Percentage returns value/total*100, or 0 when total is zero.
func Percentage(value, total core.Money) float64 {
	if total.IsZero() {
		return 0
	}
	return float64(value.Cents) / float64(total.Cents) * 100
}

// Expenses returns only the transactions classified as expenses.
func Expenses(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !tx.IsIncome() {
			out = append(out, tx)
		}
	}
	return out
}

// groupBy sums amounts per key in first-appearance order. Empty keys are
// skipped.
func groupBy(txs []core.Transaction, key func(core.Transaction) string, amount func(core.Money) core.Money) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, tx := range txs {
		k := key(tx)
		if k == "" {
			continue
		}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Name: k})
		}
		groups[i].Amount = groups[i].Amount.Add(amount(tx.Amount))
	}
	return groups
}

// GroupByCategory sums absolute amounts per exact category string, in order
// of first appearance. Uncategorised transactions are skipped. The Income
// category is grouped like any other; pass Expenses(txs) for a spending-only
// breakdown.
func GroupByCategory(txs []core.Transaction) []Group {
	return groupBy(txs,
		func(tx core.Transaction) string { return tx.Category },
		core.Money.Abs,
	)
}

// GroupByContributor sums signed amounts per contributor name, in order of
// first appearance. Unlike GroupByCategory the sign is kept, so refunds
// reduce a contributor's total.
func GroupByContributor(txs []core.Transaction) []Group {
	return groupBy(txs,
		core.Transaction.ContributorName,
		func(m core.Money) core.Money { return m },
	)
}

// TopCategories returns up to n category names ordered by descending absolute
// sum. Ties keep first-appearance order.
func TopCategories(txs []core.Transaction, n int) []string {
	if n <= 0 {
		return []string{}
	}
	groups := GroupByCategory(txs)
	slices.SortStableFunc(groups, func(a, b Group) int {
		switch {
		case a.Amount.Cents > b.Amount.Cents:
			return -1
		case a.Amount.Cents < b.Amount.Cents:
			return 1
		default:
			return 0
		}
	})
	if len(groups) > n {
		groups = groups[:n]
	}
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Name
	}
	return names
}

// Categories returns the distinct non-empty categories in first-appearance
// order.
func Categories(txs []core.Transaction) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, tx := range txs {
		if tx.Category == "" {
			continue
		}
		if _, ok := seen[tx.Category]; ok {
			continue
		}
		seen[tx.Category] = struct{}{}
		out = append(out, tx.Category)
	}
	return out
}

// BucketByMonth builds monthCount calendar-month buckets ending with the month
// containing now, oldest first. Each bucket carries a zeroed entry for every
// category seen in txs. Transactions outside the window or without a date are
// left out of the series.
func BucketByMonth(txs []core.Transaction, monthCount int, now time.Time) []MonthBucket {
	if monthCount <= 0 {
		return []MonthBucket{}
	}
	categories := Categories(txs)
	year, month, _ := now.Date()
	current := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)

	buckets := make([]MonthBucket, monthCount)
	index := make(map[int]int, monthCount)
	for i := range buckets {
		start := current.AddDate(0, i-(monthCount-1), 0)
		byCat := make(map[string]core.Money, len(categories))
		for _, c := range categories {
			byCat[c] = core.Money{}
		}
		buckets[i] = MonthBucket{
			Year:       start.Year(),
			Month:      start.Month(),
			Label:      start.Format(monthLabelLayout),
			ByCategory: byCat,
		}
		index[monthKey(start.Year(), start.Month())] = i
	}

	for _, tx := range txs {
		if tx.Date.IsEmpty() {
			continue
		}
		i, ok := index[monthKey(tx.Date.Year(), tx.Date.Month())]
		if !ok {
			continue
		}
		amount := tx.Amount.Abs()
		buckets[i].Total = buckets[i].Total.Add(amount)
		if tx.Category != "" {
			buckets[i].ByCategory[tx.Category] = buckets[i].ByCategory[tx.Category].Add(amount)
		}
	}
	return buckets
}

func monthKey(year int, month time.Month) int {
	return year*12 + int(month) - 1
}

// ContributionShare is ContributionShareOf against the list's total expenses.
func ContributionShare(txs []core.Transaction, displayName string) float64 {
	return ContributionShareOf(txs, displayName, ComputeTotals(txs).Expenses)
}

// ContributionShareOf returns the signed sum contributed by displayName (exact,
// case-sensitive match) as a percentage of total. It is 0 for an empty name or
// a zero total.
func ContributionShareOf(txs []core.Transaction, displayName string, total core.Money) float64 {
	if displayName == "" {
		return 0
	}
	return Percentage(ContributedBy(txs, displayName), total)
}

// ContributedBy returns the signed sum of transactions attributed to
// displayName.
func ContributedBy(txs []core.Transaction, displayName string) core.Money {
	var sum core.Money
	for _, tx := range txs {
		if tx.UserFullName == displayName {
			sum = sum.Add(tx.Amount)
		}
	}
	return sum
}

// Recent returns up to limit transactions, newest first.
func Recent(txs []core.Transaction, limit int) []core.Transaction {
	sorted := SortAndFilter(txs, SortByDate, Descending, "")
	if limit >= 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// Summarize computes every dashboard structure for one ledger from the
// viewer's perspective. Categories covers every row; Spending, Contributors
// and Contribution cover expenses only.
func Summarize(txs []core.Transaction, view ViewContext, opts Options) Summary {
	opts = opts.WithDefaults()
	now := view.Now
	if now.IsZero() {
		now = time.Now()
	}

	totals := ComputeTotals(txs)
	recent := ComputeRecentWindow(txs, opts.RecentDays, now)
	spent := Expenses(txs)
	contributed := core.Money{}
	if view.DisplayName != "" {
		contributed = ContributedBy(spent, view.DisplayName)
	}

	return Summary{
		Totals:        totals,
		Recent:        recent,
		RecentDays:    opts.RecentDays,
		SavingsRate:   SavingsRate(recent.Income, recent.Expenses),
		Categories:    nonNil(GroupByCategory(txs)),
		Spending:      nonNil(GroupByCategory(spent)),
		Contributors:  nonNil(GroupByContributor(spent)),
		TopCategories: TopCategories(txs, opts.TopN),
		Months:        BucketByMonth(txs, opts.Months, now),
		Contribution: Contribution{
			Name:       view.DisplayName,
			Amount:     contributed,
			Percentage: ContributionShareOf(spent, view.DisplayName, totals.Expenses),
		},
		Latest: Recent(txs, RecentLimit),
		Count:  len(txs),
	}
}

func nonNil(groups []Group) []Group {
	if groups == nil {
		return []Group{}
	}
	return groups
}
