package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"casa/internal/core"
	"casa/internal/services"
	"casa/internal/sheets"
	gsheet "casa/internal/sheets/google"
	"casa/internal/storage"
)

type importFlags struct {
	userID    string
	userName  string
	household bool
	fromSheet bool
	dryRun    bool
}

func importCmd() *cobra.Command {
	var f importFlags
	cmd := &cobra.Command{
		Use:   "import [file.csv]",
		Short: "Import transactions from a CSV file or the export sheet",
		Long: `Import transactions into the store on behalf of one user.

CSV files use the export column layout (ID, Date, Name, Amount, Category,
Ledger, Contributor, Notes). A header row may name a subset of those columns
in any order, e.g. "date,name,amount,category,notes". Rows without a ledger
go to the user's personal ledger, or their household with --household.

With --from-sheet the rows are read back from the configured Google Sheet and
recorded as already exported. Rows whose ID is already stored are skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args, f)
		},
	}

	cmd.Flags().StringVarP(&f.userID, "user", "u", "", "owner user ID (required)")
	cmd.Flags().StringVar(&f.userName, "name", "", "owner display name stamped on imported rows")
	cmd.Flags().BoolVar(&f.household, "household", false, "import ledger-less rows into the owner's household")
	cmd.Flags().BoolVar(&f.fromSheet, "from-sheet", false, "read rows from the configured Google Sheet")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "parse and report without saving")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runImport(cmd *cobra.Command, args []string, f importFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if f.fromSheet == (len(args) == 1) {
		return errors.New("give either a CSV file or --from-sheet")
	}

	var (
		rows       []core.Transaction
		unreadable []error
	)
	if f.fromSheet {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   appCfg.GoogleSpreadsheetID,
			SheetName:       appCfg.GoogleSheetName,
			CredentialsJSON: appCfg.GoogleCredentialsJSON,
			CredentialsFile: appCfg.GoogleCredentialsFile,
		})
		if err != nil {
			return fmt.Errorf("connect to sheet: %w", err)
		}
		var reader sheets.RowReader = client
		if rows, err = reader.ReadTransactions(ctx); err != nil {
			return fmt.Errorf("read sheet: %w", err)
		}
	} else {
		file, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer file.Close()
		if rows, unreadable, err = readCSV(file); err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
	}

	for _, err := range unreadable {
		fmt.Fprintf(out, "skipped: %v\n", err)
	}
	if f.dryRun {
		fmt.Fprintf(out, "%d rows parsed, %d unreadable (dry run, nothing saved)\n", len(rows), len(unreadable))
		return nil
	}

	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	owner := core.User{ID: f.userID, FullName: f.userName}
	opts := services.ImportOptions{Owner: owner, MarkExported: f.fromSheet}
	if f.household {
		h, err := services.NewHouseholdService(repo).GetUserHousehold(ctx, owner)
		if err != nil {
			return fmt.Errorf("find household of %s: %w", owner.ID, err)
		}
		opts.HouseholdID = h.ID
	}

	res, err := services.NewLedgerService(repo, nil, nil).Import(ctx, rows, opts)
	if err != nil {
		return err
	}
	for _, err := range res.Rejected {
		fmt.Fprintf(out, "rejected: %v\n", err)
	}
	fmt.Fprintf(out, "%d imported, %d already present, %d rejected, %d unreadable\n",
		res.Imported, res.Skipped, len(res.Rejected), len(unreadable))
	return nil
}

// readCSV parses rows in the export layout. A header row, when present, may
// reorder or omit columns. Rows that fail to parse are returned as errors
// next to the good ones; only I/O failures abort.
func readCSV(r io.Reader) ([]core.Transaction, []error, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var (
		rows    []core.Transaction
		errs    []error
		mapping []int
		line    int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			errs = append(errs, fmt.Errorf("line %d: %w", parseErr.Line, err))
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		if line == 1 {
			if m, ok := headerMapping(rec); ok {
				mapping = m
				continue
			}
		}
		if mapping != nil {
			rec = reorder(rec, mapping)
		}

		tx, err := sheets.ParseRow(rec)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		rows = append(rows, tx)
	}
	return rows, errs, nil
}

// headerMapping maps each column of a header row to its index in
// sheets.Header. Every cell must name a known column and amount is required.
func headerMapping(rec []string) ([]int, bool) {
	mapping := make([]int, len(rec))
	hasAmount := false
	for i, cell := range rec {
		idx := -1
		for j, name := range sheets.Header {
			if strings.EqualFold(strings.TrimSpace(cell), name) {
				idx = j
				break
			}
		}
		if idx < 0 {
			return nil, false
		}
		if sheets.Header[idx] == "Amount" {
			hasAmount = true
		}
		mapping[i] = idx
	}
	return mapping, hasAmount
}

func reorder(rec []string, mapping []int) []string {
	cols := make([]string, len(sheets.Header))
	for i, v := range rec {
		if i < len(mapping) {
			cols[mapping[i]] = v
		}
	}
	return cols
}
