// Package aggregate turns an already fetched list of transactions into the
// derived structures shown on dashboards: totals, category and contributor
// groupings, monthly series and sorted views.
//
// Every function is pure and total: malformed fields (missing date, zero
// amount) degrade to defaults instead of failing, and the input slice is
// never modified.
package aggregate

import (
	"time"

	"casa/internal/core"
)

const (
	DefaultRecentDays = 30
	DefaultMonths     = 6
	DefaultTopN       = 5

	// RecentLimit is how many of the newest transactions a summary carries.
	RecentLimit = 5

	monthLabelLayout = "Jan 2006"
)

type (
	// Totals splits transactions into income and expenses by absolute amount.
	Totals struct {
		Income   core.Money `json:"totalIncome"`
		Expenses core.Money `json:"totalExpenses"`
		Balance  core.Money `json:"balance"`
	}

	// Group is one (key, summed amount) pair of a grouping.
	Group struct {
		Name   string     `json:"name"`
		Amount core.Money `json:"amount"`
	}

	// MonthBucket is one calendar month of a trend series.
	MonthBucket struct {
		Year       int                   `json:"year"`
		Month      time.Month            `json:"month"`
		Label      string                `json:"label"`
		Total      core.Money            `json:"total"`
		ByCategory map[string]core.Money `json:"byCategory"`
	}

	// Contribution is the viewer's share of household spending. Income rows
	// are not counted.
	Contribution struct {
		Name       string     `json:"name"`
		Amount     core.Money `json:"amount"`
		Percentage float64    `json:"percentage"`
	}

	// ViewContext identifies who is looking at the data and when. It is
	// passed explicitly to every computation that depends on the viewer.
	ViewContext struct {
		UserID      string
		DisplayName string
		Now         time.Time
	}

	// Options are the caller-supplied window sizes.
	Options struct {
		RecentDays int
		Months     int
		TopN       int
	}

	// Summary bundles everything a dashboard renders for one ledger.
	Summary struct {
		Totals        Totals        `json:"totals"`
		Recent        Totals        `json:"recent"`
		RecentDays    int           `json:"recentDays"`
		SavingsRate   float64       `json:"savingsRate"`
		Categories    []Group       `json:"categories"`
		Spending      []Group       `json:"spending"`
		Contributors  []Group       `json:"contributors"`
		Contribution  Contribution  `json:"contribution"`
		TopCategories []string      `json:"topCategories"`
		Months        []MonthBucket `json:"months"`
		Count         int           `json:"count"`

		// Latest holds the newest RecentLimit rows for the dashboard card.
		// API clients read rows from the list endpoints instead.
		Latest []core.Transaction `json:"-"`
	}
)

// DefaultOptions returns the standard dashboard windows.
func DefaultOptions() Options {
	return Options{RecentDays: DefaultRecentDays, Months: DefaultMonths, TopN: DefaultTopN}
}

// WithDefaults fills non-positive fields with the defaults.
func (o Options) WithDefaults() Options {
	if o.RecentDays <= 0 {
		o.RecentDays = DefaultRecentDays
	}
	if o.Months <= 0 {
		o.Months = DefaultMonths
	}
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	return o
}
