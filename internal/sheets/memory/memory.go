// Package memory is an in-process spreadsheet used when no Google Sheet is
// configured and in tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"casa/internal/core"
	"casa/internal/sheets"
)

type Sheet struct {
	mu   sync.Mutex
	rows [][]string
	// Fail makes every write return this error, for failure-path tests.
	Fail error
}

var (
	_ sheets.RowExporter = (*Sheet)(nil)
	_ sheets.RowReader   = (*Sheet)(nil)
)

func New() *Sheet {
	return &Sheet{rows: [][]string{append([]string(nil), sheets.Header...)}}
}

func (s *Sheet) AppendTransaction(_ context.Context, tx core.Transaction) (string, error) {
	if tx.ID == "" {
		return "", errors.New("transaction has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return "", s.Fail
	}
	s.rows = append(s.rows, sheets.ToStrings(sheets.Row(tx)))
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// DeleteTransactionRow blanks the row, like the Google adapter's clear.
func (s *Sheet) DeleteTransactionRow(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	for i, row := range s.rows {
		if len(row) > 0 && row[0] == id {
			s.rows[i] = make([]string, len(sheets.Header))
		}
	}
	return nil
}

func (s *Sheet) ReadTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, row := range s.rows {
		if len(row) == 0 || row[0] == "" || sheets.IsHeader(row) {
			continue
		}
		tx, err := sheets.ParseRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// IDs returns the non-blank transaction IDs in row order.
func (s *Sheet) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, row := range s.rows[1:] {
		if row[0] != "" {
			ids = append(ids, row[0])
		}
	}
	return ids
}
