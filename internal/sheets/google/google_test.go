package google

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"casa/internal/core"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{SheetName: "Transactions"})
	if err == nil || err.Error() != "missing spreadsheet id" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadCredentials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sa.json")
	if err := os.WriteFile(path, []byte(`{"from":"file"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{"inline wins", Config{CredentialsJSON: `{"from":"env"}`, CredentialsFile: path}, `{"from":"env"}`, false},
		{"file", Config{CredentialsFile: path}, `{"from":"file"}`, false},
		{"missing file", Config{CredentialsFile: filepath.Join(dir, "nope.json")}, "", true},
		{"nothing", Config{}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadCredentials(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClient_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetName: "Transactions"}
	ctx := context.Background()

	if _, err := c.AppendTransaction(ctx, txWithID("a")); err == nil {
		t.Error("expected error with nil service")
	}
	if err := c.DeleteTransactionRow(ctx, "a"); err == nil {
		t.Error("expected error with nil service")
	}
	if _, err := c.ReadTransactions(ctx); err == nil {
		t.Error("expected error with nil service")
	}
}

func TestRowCacheHitIncrements(t *testing.T) {
	c := &Client{cacheValidDuration: time.Minute}
	c.mu.Lock()
	c.cachedRowCount = 10
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	c.mu.Unlock()

	// A valid cache never touches the nil service.
	for want := 11; want <= 13; want++ {
		got, err := c.nextRow(context.Background())
		if err != nil {
			t.Fatalf("nextRow: %v", err)
		}
		if got != want {
			t.Errorf("nextRow = %d, want %d", got, want)
		}
	}
}

func TestInvalidateRowCache(t *testing.T) {
	c := &Client{cacheValidDuration: 10 * time.Minute}
	c.mu.Lock()
	c.cachedRowCount = 42
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	c.mu.Unlock()

	c.InvalidateRowCache()

	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Now().Before(c.cacheExpiresAt) {
		t.Error("cache should be expired after invalidation")
	}
}

func TestCacheMutexProtection(t *testing.T) {
	c := &Client{cacheValidDuration: time.Hour}
	c.cacheExpiresAt = time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_, _ = c.nextRow(context.Background())
			}
		}()
	}
	wg.Wait()

	if c.cachedRowCount != 100 {
		t.Errorf("cachedRowCount = %d, want 100", c.cachedRowCount)
	}
}

func TestFindRow(t *testing.T) {
	col := []string{"ID", "a", "", "b"}
	if got := findRow(col, "b"); got != 4 {
		t.Errorf("findRow(b) = %d, want 4", got)
	}
	if got := findRow(col, "zzz"); got != 0 {
		t.Errorf("findRow(zzz) = %d, want 0", got)
	}
}

func TestParseRows(t *testing.T) {
	values := [][]any{
		{"ID", "Date", "Name", "Amount"},
		{"a", "2024-01-02", "Rent", 1200.5, "Rent", "household:h1", "Ann"},
		{},
		{"", "", "", ""},
		{"b", "2024-01-03", "Broken", "n/a"},
		{"c", "2024-01-04", "Coffee", "3"},
	}
	txs := parseRows(context.Background(), values)
	if len(txs) != 2 {
		t.Fatalf("parsed %d rows, want 2", len(txs))
	}
	if txs[0].ID != "a" || txs[0].Amount.Cents != 120050 || txs[0].HouseholdID != "h1" {
		t.Errorf("unexpected first row %+v", txs[0])
	}
	if txs[1].ID != "c" {
		t.Errorf("unexpected second row %+v", txs[1])
	}
}

func txWithID(id string) core.Transaction {
	return core.Transaction{ID: id, UserID: "u1", Name: "x", Amount: core.Money{Cents: 100}}
}
