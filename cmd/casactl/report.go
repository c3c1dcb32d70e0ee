package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"casa/internal/aggregate"
	"casa/internal/core"
	"casa/internal/services"
	"casa/internal/storage"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	sectionStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type reportFlags struct {
	userID    string
	userName  string
	household bool
	days      int
	months    int
	top       int
	asJSON    bool
}

func reportCmd() *cobra.Command {
	var f reportFlags
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a ledger summary",
		Long: `Summarize a user's personal ledger, or their household's with --household:
totals, the recent window, spending by category and contributor, and the
monthly trend. Window sizes default to the server's dashboard settings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd, f)
		},
	}

	cmd.Flags().StringVarP(&f.userID, "user", "u", "", "viewer user ID (required)")
	cmd.Flags().StringVar(&f.userName, "name", "", "viewer display name, for the contribution share")
	cmd.Flags().BoolVar(&f.household, "household", false, "summarize the viewer's household ledger")
	cmd.Flags().IntVar(&f.days, "days", 0, "recent window in days")
	cmd.Flags().IntVar(&f.months, "months", 0, "months in the trend")
	cmd.Flags().IntVar(&f.top, "top", 0, "top categories in the trend")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the summary as JSON")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runReport(cmd *cobra.Command, f reportFlags) error {
	ctx := cmd.Context()

	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	user := core.User{ID: f.userID, FullName: f.userName}
	key := core.PersonalLedger(user.ID)
	view := aggregate.ViewContext{UserID: user.ID, DisplayName: user.FullName, Now: time.Now()}
	title := "Personal ledger"

	if f.household {
		h, err := services.NewHouseholdService(repo).GetUserHousehold(ctx, user)
		if err != nil {
			return fmt.Errorf("find household of %s: %w", user.ID, err)
		}
		key = core.HouseholdLedger(h.ID)
		if m, ok := h.Member(user.ID); ok && m.FullName() != "" {
			view.DisplayName = m.FullName()
		}
		title = h.Name
	}

	opts := aggregate.Options{RecentDays: appCfg.RecentWindowDays, Months: appCfg.TrendMonths, TopN: appCfg.TopCategories}
	if f.days > 0 {
		opts.RecentDays = f.days
	}
	if f.months > 0 {
		opts.Months = f.months
	}
	if f.top > 0 {
		opts.TopN = f.top
	}

	sum, err := services.NewLedgerService(repo, nil, nil).Summary(ctx, key, view, opts.WithDefaults())
	if err != nil {
		return err
	}

	if f.asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	return renderSummary(cmd.OutOrStdout(), title, sum, f.household)
}

func renderSummary(w io.Writer, title string, sum aggregate.Summary, household bool) error {
	fmt.Fprintln(w, titleStyle.Render(title))
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d transactions", sum.Count)))
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Income\t%s\t\n", sum.Totals.Income)
	fmt.Fprintf(tw, "Expenses\t%s\t\n", sum.Totals.Expenses)
	fmt.Fprintf(tw, "Balance\t%s\t\n", sum.Totals.Balance)
	fmt.Fprintf(tw, "Savings rate\t%.1f%%\t\n", sum.SavingsRate)
	fmt.Fprintf(tw, "Last %d days\t%s in, %s out\t\n", sum.RecentDays, sum.Recent.Income, sum.Recent.Expenses)
	if household {
		fmt.Fprintf(tw, "Your share\t%s (%.1f%%)\t\n", sum.Contribution.Amount, sum.Contribution.Percentage)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if household && len(sum.Contributors) > 0 {
		if err := renderGroups(w, "By contributor", sum.Contributors); err != nil {
			return err
		}
	}
	if err := renderGroups(w, "By category", sum.Categories); err != nil {
		return err
	}
	if err := renderLatest(w, sum.Latest); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, sectionStyle.Render(fmt.Sprintf("Last %d months", len(sum.Months))))
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "Month\tSpent")
	for _, name := range sum.TopCategories {
		fmt.Fprintf(tw, "\t%s", name)
	}
	fmt.Fprintln(tw)
	for _, b := range sum.Months {
		fmt.Fprintf(tw, "%s\t%s", b.Label, b.Total)
		for _, name := range sum.TopCategories {
			fmt.Fprintf(tw, "\t%s", b.ByCategory[name])
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func renderGroups(w io.Writer, heading string, groups []aggregate.Group) error {
	fmt.Fprintln(w)
	fmt.Fprintln(w, sectionStyle.Render(heading))
	if len(groups) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  none"))
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, g := range groups {
		fmt.Fprintf(tw, "  %s\t%s\n", g.Name, g.Amount)
	}
	return tw.Flush()
}

func renderLatest(w io.Writer, txs []core.Transaction) error {
	fmt.Fprintln(w)
	fmt.Fprintln(w, sectionStyle.Render("Recent transactions"))
	if len(txs) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  none"))
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, tx := range txs {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", tx.Date, tx.Name, tx.Amount)
	}
	return tw.Flush()
}
