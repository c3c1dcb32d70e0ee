package aggregate

import (
	"cmp"
	"slices"
	"strings"

	"casa/internal/core"
)

type (
	SortKey       string
	SortDirection string
)

const (
	SortByDate   SortKey = "date"
	SortByAmount SortKey = "amount"

	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// ParseSortKey maps a query value to a SortKey, defaulting to date.
func ParseSortKey(s string) SortKey {
	if SortKey(strings.ToLower(strings.TrimSpace(s))) == SortByAmount {
		return SortByAmount
	}
	return SortByDate
}

// ParseSortDirection maps a query value to a SortDirection, defaulting to
// descending.
func ParseSortDirection(s string) SortDirection {
	if SortDirection(strings.ToLower(strings.TrimSpace(s))) == Ascending {
		return Ascending
	}
	return Descending
}

// SortAndFilter returns a new slice holding the transactions whose category
// equals category (all of them when category is empty), ordered by key.
// Missing dates sort as the oldest possible date.
func SortAndFilter(txs []core.Transaction, key SortKey, dir SortDirection, category string) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if category == "" || tx.Category == category {
			out = append(out, tx)
		}
	}

	compare := func(a, b core.Transaction) int {
		if key == SortByAmount {
			return cmp.Compare(a.Amount.Cents, b.Amount.Cents)
		}
		return cmp.Compare(sortableDate(a.Date), sortableDate(b.Date))
	}
	if dir == Descending {
		asc := compare
		compare = func(a, b core.Transaction) int { return asc(b, a) }
	}
	slices.SortStableFunc(out, compare)
	return out
}

// sortableDate maps a missing date to the Unix epoch.
func sortableDate(d core.Date) int64 {
	if d.IsEmpty() {
		return 0
	}
	return d.Unix()
}
