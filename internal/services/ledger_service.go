package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"casa/internal/aggregate"
	"casa/internal/amqp"
	"casa/internal/cache"
	"casa/internal/core"
	applog "casa/internal/log"
	"casa/internal/store"
)

var (
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("validation failed")
)

// EventPublisher is the outbound side of the transaction event stream.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, ev *amqp.TransactionEvent) error
}

// LedgerService stores transactions, publishes change events and computes
// ledger summaries. Ledger reads go through an LRU cache keyed by ledger.
type LedgerService struct {
	store     store.Store
	publisher EventPublisher
	lists     *cache.LRUCache[[]core.Transaction]
	now       func() time.Time
}

// NewLedgerService wires the service. publisher and lists may be nil.
func NewLedgerService(s store.Store, publisher EventPublisher, lists *cache.LRUCache[[]core.Transaction]) *LedgerService {
	return &LedgerService{
		store:     s,
		publisher: publisher,
		lists:     lists,
		now:       time.Now,
	}
}

// AddPersonalTransaction records tx on the caller's personal ledger.
func (s *LedgerService) AddPersonalTransaction(ctx context.Context, user core.User, tx core.Transaction) (core.Transaction, error) {
	tx.UserID = user.ID
	tx.HouseholdID = ""
	tx.UserFullName = user.FullName
	return s.add(ctx, tx)
}

// AddHouseholdTransaction records tx on a household ledger. The caller must
// be a joined member; their name is stamped on the row at write time.
func (s *LedgerService) AddHouseholdTransaction(ctx context.Context, householdID string, user core.User, tx core.Transaction) (core.Transaction, error) {
	h, err := s.store.GetHousehold(ctx, householdID)
	if err != nil {
		return core.Transaction{}, err
	}
	m, ok := h.Member(user.ID)
	if !ok || !m.Joined {
		return core.Transaction{}, fmt.Errorf("%w: not a member of household %s", ErrForbidden, householdID)
	}

	tx.UserID = user.ID
	tx.HouseholdID = h.ID
	tx.UserFullName = m.FullName()
	if tx.UserFullName == "" {
		tx.UserFullName = user.FullName
	}
	return s.add(ctx, tx)
}

func (s *LedgerService) add(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	now := s.now()
	tx = core.NormalizeClassification(tx)
	if err := tx.Validate(now); err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	tx.ID = uuid.NewString()
	tx.CreatedAt = now.UTC()

	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.invalidate(tx.Ledger())

	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogTransactionCreated(ctx, tx.ID, tx.Ledger().String(), tx.Name, tx.Amount.Cents, tx.Category)

	s.publish(ctx, amqp.EventCreated, tx)
	return tx, nil
}

// ListPersonal returns the caller's personal transactions.
func (s *LedgerService) ListPersonal(ctx context.Context, user core.User) ([]core.Transaction, error) {
	return s.list(ctx, core.PersonalLedger(user.ID))
}

// ListHousehold returns a household's transactions if the caller has joined it.
func (s *LedgerService) ListHousehold(ctx context.Context, user core.User, householdID string) ([]core.Transaction, error) {
	key := core.HouseholdLedger(householdID)
	if err := s.authorize(ctx, user, key); err != nil {
		return nil, err
	}
	return s.list(ctx, key)
}

// DeleteTransaction removes a transaction and returns what was removed.
// Personal transactions may only be deleted by their owner, household ones by
// any joined member.
func (s *LedgerService) DeleteTransaction(ctx context.Context, user core.User, id string) (core.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.authorize(ctx, user, tx.Ledger()); err != nil {
		return core.Transaction{}, err
	}

	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return core.Transaction{}, fmt.Errorf("delete transaction: %w", err)
	}
	s.invalidate(tx.Ledger())

	slog.InfoContext(ctx, "Transaction deleted",
		"transaction_id", id,
		"ledger", tx.Ledger().String(),
		"user_id", user.ID)

	s.publish(ctx, amqp.EventDeleted, tx)
	return tx, nil
}

// Summary fetches a ledger and aggregates it for the viewer.
func (s *LedgerService) Summary(ctx context.Context, key core.LedgerKey, view aggregate.ViewContext, opts aggregate.Options) (aggregate.Summary, error) {
	if err := key.Validate(); err != nil {
		return aggregate.Summary{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := s.authorize(ctx, core.User{ID: view.UserID}, key); err != nil {
		return aggregate.Summary{}, err
	}
	txs, err := s.list(ctx, key)
	if err != nil {
		return aggregate.Summary{}, err
	}
	if view.Now.IsZero() {
		view.Now = s.now()
	}
	return aggregate.Summarize(txs, view, opts), nil
}

// authorize checks that user may read and write the ledger.
func (s *LedgerService) authorize(ctx context.Context, user core.User, key core.LedgerKey) error {
	switch key.Kind {
	case core.PersonalKind:
		if key.ID != user.ID {
			return fmt.Errorf("%w: ledger %s belongs to another user", ErrForbidden, key)
		}
		return nil
	case core.HouseholdKind:
		h, err := s.store.GetHousehold(ctx, key.ID)
		if err != nil {
			return err
		}
		if !h.IsJoinedMember(user.ID) {
			return fmt.Errorf("%w: not a member of household %s", ErrForbidden, key.ID)
		}
		return nil
	default:
		return fmt.Errorf("%w: %w", ErrValidation, core.ErrInvalidLedger)
	}
}

func (s *LedgerService) list(ctx context.Context, key core.LedgerKey) ([]core.Transaction, error) {
	load := func(ctx context.Context) ([]core.Transaction, error) {
		txs, err := s.store.ListTransactions(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("list transactions: %w", err)
		}
		return txs, nil
	}
	if s.lists == nil {
		return load(ctx)
	}
	return s.lists.GetOrLoad(ctx, key.String(), load)
}

func (s *LedgerService) invalidate(key core.LedgerKey) {
	if s.lists != nil {
		s.lists.Delete(key.String())
	}
}

// publish never fails the request: the row is already stored and the export
// worker's pending sweep picks up anything the broker missed.
func (s *LedgerService) publish(ctx context.Context, typ amqp.EventType, tx core.Transaction) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping event", "type", typ)
		return
	}
	ev := amqp.NewTransactionEvent(typ, tx.ID, tx.Ledger().String())
	if err := s.publisher.PublishTransactionEvent(ctx, ev); err != nil {
		applog.NewStructuredLogger(applog.FromContext(ctx)).LogError(ctx, "Failed to publish transaction event", err,
			applog.ComponentAMQP, applog.OpPublish,
			applog.NewFields().
				WithTransaction(tx.ID, tx.Ledger().String(), tx.Name, tx.Amount.Cents, tx.Category).
				WithUser(tx.UserID))
	}
}
