package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"golang.org/x/sync/errgroup"

	"casa/internal/aggregate"
	"casa/internal/core"
	applog "casa/internal/log"
	"casa/internal/store"
)

const (
	scopePersonal  = "personal"
	scopeHousehold = "household"
)

type (
	barRow struct {
		Name   string
		Amount core.Money
		Width  int
	}

	monthRow struct {
		Label string
		Total core.Money
		Top   []core.Money // one per Summary.TopCategories entry
	}

	summaryData struct {
		Scope        string
		S            aggregate.Summary
		Spending     []barRow
		Contributors []barRow
		Months       []monthRow
	}

	pageData struct {
		User        core.User
		Scope       string
		Household   *core.Household
		Invitations []core.Invitation
		Categories  []string
		Today       string
		CreatePath  string
		Summary     summaryData
	}

	transactionsData struct {
		Scope      string
		Category   string
		Categories []string // filter options, from the whole ledger
		NextDir    aggregate.SortDirection
		Items      []core.Transaction
	}
)

// ledgerScope is the ledger a dashboard request renders.
type ledgerScope struct {
	Name      string
	Key       core.LedgerKey
	View      aggregate.ViewContext
	Household *core.Household
}

// scopeFor picks the household ledger when asked for and the caller has one,
// and the personal ledger otherwise.
func (s *Server) scopeFor(user core.User, requested string, h *core.Household) ledgerScope {
	if requested == scopeHousehold && h != nil {
		return ledgerScope{
			Name:      scopeHousehold,
			Key:       core.HouseholdLedger(h.ID),
			View:      s.householdView(user, *h),
			Household: h,
		}
	}
	return ledgerScope{
		Name:      scopePersonal,
		Key:       core.PersonalLedger(user.ID),
		View:      s.view(user),
		Household: h,
	}
}

// lookupHousehold returns nil, nil when the caller has not joined one.
func (s *Server) lookupHousehold(ctx context.Context, user core.User) (*core.Household, error) {
	h, err := s.households.GetUserHousehold(ctx, user)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *Server) resolveScope(ctx context.Context, user core.User, requested string) (ledgerScope, error) {
	var h *core.Household
	if requested == scopeHousehold {
		var err error
		if h, err = s.lookupHousehold(ctx, user); err != nil {
			return ledgerScope{}, err
		}
	}
	return s.scopeFor(user, requested, h), nil
}

// handleIndex renders the dashboard page. The household lookup, pending
// invitations and (for the personal scope) the summary load concurrently.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, user core.User) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	requested := r.URL.Query().Get("scope")
	opts := s.summary

	var (
		household   *core.Household
		invitations []core.Invitation
		personal    aggregate.Summary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		household, err = s.lookupHousehold(gctx, user)
		return err
	})
	g.Go(func() error {
		if user.Email == "" {
			return nil
		}
		var err error
		invitations, err = s.households.PendingInvitations(gctx, user.Email)
		return err
	})
	if requested != scopeHousehold {
		g.Go(func() error {
			var err error
			personal, err = s.ledger.Summary(gctx, core.PersonalLedger(user.ID), s.view(user), opts)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.fail(w, r, err, "Dashboard load failed")
		return
	}

	scope := s.scopeFor(user, requested, household)
	sum := personal
	if requested == scopeHousehold {
		var err error
		if sum, err = s.ledger.Summary(ctx, scope.Key, scope.View, opts); err != nil {
			s.fail(w, r, err, "Dashboard summary failed")
			return
		}
	}

	createPath := "/api/transactions"
	if scope.Name == scopeHousehold {
		createPath = "/api/household/transactions"
	}

	s.render(w, r, "index.html", pageData{
		User:        user,
		Scope:       scope.Name,
		Household:   household,
		Invitations: invitations,
		Categories:  core.SuggestedCategories,
		Today:       core.DateOf(s.now()).String(),
		CreatePath:  createPath,
		Summary:     buildSummaryData(scope.Name, sum),
	})
}

func (s *Server) handleSummaryPartial(w http.ResponseWriter, r *http.Request, user core.User) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	scope, err := s.resolveScope(ctx, user, r.URL.Query().Get("scope"))
	if err != nil {
		s.fail(w, r, err, "Summary scope failed")
		return
	}
	sum, err := s.ledger.Summary(ctx, scope.Key, scope.View, parseSummaryOptions(r.URL.Query(), s.summary))
	if err != nil {
		s.fail(w, r, err, "Summary partial failed")
		return
	}
	s.render(w, r, "summary", buildSummaryData(scope.Name, sum))
}

func (s *Server) handleTransactionsPartial(w http.ResponseWriter, r *http.Request, user core.User) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	scope, err := s.resolveScope(ctx, user, r.URL.Query().Get("scope"))
	if err != nil {
		s.fail(w, r, err, "Transactions scope failed")
		return
	}

	var txs []core.Transaction
	if scope.Name == scopeHousehold {
		txs, err = s.ledger.ListHousehold(ctx, user, scope.Key.ID)
	} else {
		txs, err = s.ledger.ListPersonal(ctx, user)
	}
	if err != nil {
		s.fail(w, r, err, "Transactions partial failed")
		return
	}

	params := parseListParams(r.URL.Query())
	next := aggregate.Ascending
	if params.Direction == aggregate.Ascending {
		next = aggregate.Descending
	}
	s.render(w, r, "transactions", transactionsData{
		Scope:      scope.Name,
		Category:   params.Category,
		Categories: aggregate.Categories(txs),
		NextDir:    next,
		Items:      params.apply(txs),
	})
}

// render executes name into a buffer first so a template error never leaves
// a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", "template", name)
		HTMLError(http.StatusInternalServerError, "templates not loaded").Write(w)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			applog.FieldError, err, "template", name)
		HTMLError(http.StatusInternalServerError, "rendering failed").Write(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func buildSummaryData(scope string, sum aggregate.Summary) summaryData {
	data := summaryData{
		Scope:        scope,
		S:            sum,
		Spending:     bars(sum.Spending),
		Contributors: bars(sum.Contributors),
	}
	for _, b := range sum.Months {
		row := monthRow{Label: b.Label, Total: b.Total, Top: make([]core.Money, len(sum.TopCategories))}
		for i, name := range sum.TopCategories {
			row.Top[i] = b.ByCategory[name]
		}
		data.Months = append(data.Months, row)
	}
	return data
}

func bars(groups []aggregate.Group) []barRow {
	var largest core.Money
	for _, g := range groups {
		if g.Amount.Abs().Cents > largest.Cents {
			largest = g.Amount.Abs()
		}
	}
	rows := make([]barRow, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, barRow{Name: g.Name, Amount: g.Amount, Width: barWidth(g.Amount, largest)})
	}
	return rows
}
