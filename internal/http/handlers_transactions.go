package http

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"casa/internal/aggregate"
	"casa/internal/core"
)

type transactionView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Amount      core.Money `json:"amount"`
	Category    string     `json:"category"`
	Date        string     `json:"date,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Ledger      string     `json:"ledger"`
	Contributor string     `json:"contributor,omitempty"`
	Income      bool       `json:"income"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type transactionList struct {
	Transactions []transactionView `json:"transactions"`
	Count        int               `json:"count"`
}

func toTransactionView(tx core.Transaction) transactionView {
	v := transactionView{
		ID:        tx.ID,
		Name:      tx.Name,
		Amount:    tx.Amount,
		Category:  tx.Category,
		Date:      tx.Date.String(),
		Notes:     tx.Notes,
		Ledger:    tx.Ledger().String(),
		Income:    tx.IsIncome(),
		CreatedAt: tx.CreatedAt,
	}
	if tx.IsHousehold() {
		v.Contributor = tx.ContributorName()
	}
	return v
}

func toTransactionList(txs []core.Transaction) transactionList {
	out := transactionList{Transactions: make([]transactionView, 0, len(txs)), Count: len(txs)}
	for _, tx := range txs {
		out.Transactions = append(out.Transactions, toTransactionView(tx))
	}
	return out
}

func (s *Server) handleListPersonal(w http.ResponseWriter, r *http.Request, user core.User) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	txs, err := s.ledger.ListPersonal(ctx, user)
	if err != nil {
		s.fail(w, r, err, "List personal transactions failed")
		return
	}
	NewResponse().JSON(toTransactionList(parseListParams(r.URL.Query()).apply(txs))).Write(w)
}

func (s *Server) handleListHousehold(w http.ResponseWriter, r *http.Request, user core.User) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	h, err := s.households.GetUserHousehold(ctx, user)
	if err != nil {
		s.fail(w, r, err, "Household lookup failed")
		return
	}
	txs, err := s.ledger.ListHousehold(ctx, user, h.ID)
	if err != nil {
		s.fail(w, r, err, "List household transactions failed")
		return
	}
	NewResponse().JSON(toTransactionList(parseListParams(r.URL.Query()).apply(txs))).Write(w)
}

func (s *Server) handleCreatePersonal(w http.ResponseWriter, r *http.Request, user core.User) {
	s.createTransaction(w, r, func(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
		return s.ledger.AddPersonalTransaction(ctx, user, tx)
	})
}

func (s *Server) handleCreateHouseholdTransaction(w http.ResponseWriter, r *http.Request, user core.User) {
	s.createTransaction(w, r, func(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
		h, err := s.households.GetUserHousehold(ctx, user)
		if err != nil {
			return core.Transaction{}, err
		}
		return s.ledger.AddHouseholdTransaction(ctx, h.ID, user, tx)
	})
}

// createTransaction decodes the body, hands it to add and answers with the
// stored transaction: JSON for API clients, a status fragment for htmx.
func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request, add func(context.Context, core.Transaction) (core.Transaction, error)) {
	req, err := parseTransactionRequest(NewRequestBodyParser(w, r))
	if err != nil {
		s.fail(w, r, err, "Transaction request rejected")
		return
	}
	tx, err := req.toTransaction()
	if err != nil {
		s.fail(w, r, err, "Transaction request rejected")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	saved, err := add(ctx, tx)
	if err != nil {
		s.fail(w, r, err, "Create transaction failed")
		return
	}

	resp := NewResponse().TriggerTransactionCreated(saved.Ledger())
	if isHTMX(r) {
		resp.TriggerFormReset().
			TriggerSuccessNotification("Transaction saved").
			BodyHTML(`<div class="success">Saved ` + template.HTMLEscapeString(saved.Name) +
				` (` + template.HTMLEscapeString(saved.Amount.String()) + `)</div>`).
			Write(w)
		return
	}
	resp.Status(http.StatusCreated).JSON(toTransactionView(saved)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, user core.User) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	deleted, err := s.ledger.DeleteTransaction(ctx, user, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "Delete transaction failed")
		return
	}
	NewResponse().
		Status(http.StatusNoContent).
		TriggerTransactionDeleted(deleted.Ledger()).
		Write(w)
}

func (s *Server) handlePersonalSummary(w http.ResponseWriter, r *http.Request, user core.User) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	sum, err := s.ledger.Summary(ctx, core.PersonalLedger(user.ID), s.view(user), parseSummaryOptions(r.URL.Query(), s.summary))
	if err != nil {
		s.fail(w, r, err, "Personal summary failed")
		return
	}
	NewResponse().JSON(sum).Write(w)
}

func (s *Server) handleHouseholdSummary(w http.ResponseWriter, r *http.Request, user core.User) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	h, err := s.households.GetUserHousehold(ctx, user)
	if err != nil {
		s.fail(w, r, err, "Household lookup failed")
		return
	}
	sum, err := s.ledger.Summary(ctx, core.HouseholdLedger(h.ID), s.householdView(user, h), parseSummaryOptions(r.URL.Query(), s.summary))
	if err != nil {
		s.fail(w, r, err, "Household summary failed")
		return
	}
	NewResponse().JSON(sum).Write(w)
}

// householdView names the viewer the way their household rows are stamped,
// so the contribution share matches their own transactions.
func (s *Server) householdView(user core.User, h core.Household) aggregate.ViewContext {
	view := s.view(user)
	if m, ok := h.Member(user.ID); ok && m.FullName() != "" {
		view.DisplayName = m.FullName()
	}
	return view
}
