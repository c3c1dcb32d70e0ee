package sheets

import (
	"fmt"
	"strings"

	"casa/internal/core"
)

// Header is the column layout shared by the spreadsheet export and CSV
// import files.
var Header = []string{"ID", "Date", "Name", "Amount", "Category", "Ledger", "Contributor", "Notes"}

const (
	colID = iota
	colDate
	colName
	colAmount
	colCategory
	colLedger
	colContributor
	colNotes
)

// Row renders tx in Header order. The amount is a plain decimal so the sheet
// parses it as a number.
func Row(tx core.Transaction) []any {
	return []any{
		tx.ID,
		tx.Date.String(),
		tx.Name,
		tx.Amount.Decimal().StringFixed(2),
		tx.Category,
		tx.Ledger().String(),
		tx.ContributorName(),
		tx.Notes,
	}
}

// IsHeader reports whether cols is the header row.
func IsHeader(cols []string) bool {
	return len(cols) > 0 && strings.EqualFold(strings.TrimSpace(cols[0]), Header[0])
}

// ParseRow converts one row back into a transaction. Missing trailing columns
// are treated as empty; a bad date becomes a missing date, a bad amount is an
// error.
func ParseRow(cols []string) (core.Transaction, error) {
	get := func(i int) string {
		if i < len(cols) {
			return strings.TrimSpace(cols[i])
		}
		return ""
	}

	amount, err := core.ParseAmount(get(colAmount))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount %q: %w", get(colAmount), err)
	}

	tx := core.Transaction{
		ID:           get(colID),
		Name:         get(colName),
		Amount:       amount,
		Category:     get(colCategory),
		Date:         core.ParseDateSafe(get(colDate)),
		Notes:        get(colNotes),
		UserFullName: get(colContributor),
	}
	if tx.UserFullName == core.UnknownContributor {
		tx.UserFullName = ""
	}
	if ledger := get(colLedger); ledger != "" {
		key, err := core.ParseLedgerKey(ledger)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("ledger %q: %w", ledger, err)
		}
		switch key.Kind {
		case core.PersonalKind:
			tx.UserID = key.ID
		case core.HouseholdKind:
			tx.HouseholdID = key.ID
		}
	}
	return tx, nil
}

// ToStrings flattens a Sheets API row.
func ToStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
