// Package memory is a mutex guarded in-process implementation of the store
// ports, used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"casa/internal/core"
	"casa/internal/store"
)

type txRecord struct {
	tx      core.Transaction
	deleted bool
	export  store.ExportStatus
}

type Store struct {
	mu          sync.RWMutex
	txs         map[string]*txRecord
	order       []string
	households  map[string]core.Household
	memberships map[string]string // userID -> householdID
	invitations map[string]core.Invitation
	invOrder    []string
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		txs:         make(map[string]*txRecord),
		households:  make(map[string]core.Household),
		memberships: make(map[string]string),
		invitations: make(map[string]core.Invitation),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("create transaction: missing id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.txs[tx.ID]; exists {
		return fmt.Errorf("create transaction %s: duplicate id", tx.ID)
	}
	s.txs[tx.ID] = &txRecord{tx: tx, export: store.ExportPending}
	s.order = append(s.order, tx.ID)
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.txs[id]
	if !ok || rec.deleted {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	return rec.tx, nil
}

func (s *Store) ListTransactions(_ context.Context, ledger core.LedgerKey) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.Transaction{}
	for _, id := range s.order {
		rec := s.txs[id]
		if rec.deleted || rec.tx.Ledger() != ledger {
			continue
		}
		out = append(out, rec.tx)
	}
	return out, nil
}

// DeleteTransaction soft deletes so the export worker can still retract it.
func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.txs[id]
	if !ok || rec.deleted {
		return fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	rec.deleted = true
	return nil
}

func (s *Store) PendingExports(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, id := range s.order {
		if limit > 0 && len(out) >= limit {
			break
		}
		rec := s.txs[id]
		if rec.deleted || (rec.export != store.ExportPending && rec.export != store.ExportFailed) {
			continue
		}
		out = append(out, rec.tx)
	}
	return out, nil
}

// MarkExported also works on deleted transactions so a retraction can be
// recorded.
func (s *Store) MarkExported(_ context.Context, id string, status store.ExportStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.txs[id]
	if !ok {
		return fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	rec.export = status
	return nil
}

func (s *Store) ExportStatus(_ context.Context, id string) (store.ExportStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.txs[id]
	if !ok {
		return "", fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	return rec.export, nil
}

func (s *Store) CreateHousehold(_ context.Context, h core.Household, owner core.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.memberships[owner.UserID]; taken {
		return store.ErrAlreadyMember
	}
	if _, exists := s.households[h.ID]; exists {
		return fmt.Errorf("create household %s: duplicate id", h.ID)
	}
	h.Members = []core.Member{owner}
	s.households[h.ID] = h
	s.memberships[owner.UserID] = h.ID
	return nil
}

func (s *Store) GetHousehold(_ context.Context, id string) (core.Household, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.households[id]
	if !ok {
		return core.Household{}, fmt.Errorf("household %s: %w", id, store.ErrNotFound)
	}
	return cloneHousehold(h), nil
}

func (s *Store) GetUserHousehold(ctx context.Context, userID string) (core.Household, error) {
	s.mu.RLock()
	id, ok := s.memberships[userID]
	s.mu.RUnlock()
	if !ok {
		return core.Household{}, fmt.Errorf("household for user %s: %w", userID, store.ErrNotFound)
	}
	return s.GetHousehold(ctx, id)
}

func (s *Store) AddMember(_ context.Context, householdID string, m core.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.households[householdID]
	if !ok {
		return fmt.Errorf("household %s: %w", householdID, store.ErrNotFound)
	}
	if _, taken := s.memberships[m.UserID]; taken {
		return store.ErrAlreadyMember
	}
	h.Members = append(slices.Clone(h.Members), m)
	s.households[householdID] = h
	if m.Joined {
		s.memberships[m.UserID] = householdID
	}
	return nil
}

func (s *Store) CreateInvitation(_ context.Context, inv core.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.households[inv.HouseholdID]; !ok {
		return fmt.Errorf("household %s: %w", inv.HouseholdID, store.ErrNotFound)
	}
	for _, id := range s.invOrder {
		existing := s.invitations[id]
		if existing.HouseholdID == inv.HouseholdID &&
			existing.Status == core.InvitationPending &&
			strings.EqualFold(existing.Email, inv.Email) {
			return store.ErrInvitationExists
		}
	}
	s.invitations[inv.ID] = inv
	s.invOrder = append(s.invOrder, inv.ID)
	return nil
}

func (s *Store) GetInvitation(_ context.Context, id string) (core.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invitations[id]
	if !ok {
		return core.Invitation{}, fmt.Errorf("invitation %s: %w", id, store.ErrNotFound)
	}
	return inv, nil
}

func (s *Store) PendingInvitationsByEmail(_ context.Context, email string) ([]core.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.Invitation{}
	for _, id := range s.invOrder {
		inv := s.invitations[id]
		if inv.Status == core.InvitationPending && strings.EqualFold(inv.Email, email) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s *Store) MarkInvitationAccepted(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[id]
	if !ok {
		return fmt.Errorf("invitation %s: %w", id, store.ErrNotFound)
	}
	if inv.Status != core.InvitationPending {
		return store.ErrInvitationClosed
	}
	inv.Status = core.InvitationAccepted
	s.invitations[id] = inv
	return nil
}

func cloneHousehold(h core.Household) core.Household {
	h.Members = slices.Clone(h.Members)
	return h
}
