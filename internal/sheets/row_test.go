package sheets

import (
	"testing"

	"casa/internal/core"
)

func TestRowRoundTrip(t *testing.T) {
	tx := core.Transaction{
		ID:           "tx-1",
		UserID:       "u1",
		Name:         "Groceries",
		Amount:       core.Money{Cents: -1234},
		Category:     "Food",
		Date:         core.NewDate(2024, 3, 9),
		Notes:        "weekly shop",
		UserFullName: "Ann Lee",
	}
	row := ToStrings(Row(tx))
	if len(row) != len(Header) {
		t.Fatalf("row has %d columns, header has %d", len(row), len(Header))
	}
	if row[3] != "-12.34" || row[1] != "2024-03-09" || row[5] != "personal:u1" {
		t.Errorf("unexpected row %v", row)
	}

	got, err := ParseRow(row)
	if err != nil {
		t.Fatalf("ParseRow: %v", err)
	}
	if got.ID != tx.ID || got.UserID != tx.UserID || got.Amount != tx.Amount ||
		got.Category != tx.Category || !got.Date.Equal(tx.Date.Time) || got.UserFullName != tx.UserFullName {
		t.Errorf("ParseRow = %+v, want %+v", got, tx)
	}
}

func TestParseRow(t *testing.T) {
	tests := []struct {
		name    string
		cols    []string
		wantErr bool
		check   func(core.Transaction) bool
	}{
		{
			name:  "short row",
			cols:  []string{"a", "", "Coffee", "3"},
			check: func(tx core.Transaction) bool { return tx.Amount.Cents == 300 && tx.Date.IsEmpty() },
		},
		{
			name:  "bad date is missing date",
			cols:  []string{"a", "yesterday", "Coffee", "3"},
			check: func(tx core.Transaction) bool { return tx.Date.IsEmpty() },
		},
		{
			name:  "unknown contributor cleared",
			cols:  []string{"a", "", "x", "1", "", "household:h1", "Unknown"},
			check: func(tx core.Transaction) bool { return tx.UserFullName == "" && tx.HouseholdID == "h1" },
		},
		{name: "bad amount", cols: []string{"a", "", "x", "abc"}, wantErr: true},
		{name: "bad ledger", cols: []string{"a", "", "x", "1", "", "team:1"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := ParseRow(tt.cols)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(tx) {
				t.Errorf("unexpected transaction %+v", tx)
			}
		})
	}
}

func TestIsHeader(t *testing.T) {
	if !IsHeader([]string{"id", "date"}) {
		t.Error("lowercase header not recognised")
	}
	if IsHeader([]string{"tx-1"}) || IsHeader(nil) {
		t.Error("data row treated as header")
	}
}
