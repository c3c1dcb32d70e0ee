// Package store declares the persistence ports used by the services and
// shared store errors. Implementations live in store/memory and storage.
package store

import (
	"context"
	"errors"

	"casa/internal/core"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyMember    = errors.New("user already belongs to a household")
	ErrInvitationExists = errors.New("invitation already pending for this email")
	ErrInvitationClosed = errors.New("invitation is no longer pending")
)

// ExportStatus tracks whether a transaction has reached the spreadsheet.
type ExportStatus string

const (
	ExportPending   ExportStatus = "pending"
	ExportDone      ExportStatus = "exported"
	ExportFailed    ExportStatus = "error"
	ExportRetracted ExportStatus = "retracted"
)

type (
	TransactionStore interface {
		// CreateTransaction persists tx, which must carry its ID.
		CreateTransaction(ctx context.Context, tx core.Transaction) error
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		// ListTransactions returns the ledger's transactions in insertion order.
		ListTransactions(ctx context.Context, ledger core.LedgerKey) ([]core.Transaction, error)
		DeleteTransaction(ctx context.Context, id string) error
	}

	HouseholdStore interface {
		// CreateHousehold stores h with owner as its first joined member.
		CreateHousehold(ctx context.Context, h core.Household, owner core.Member) error
		GetHousehold(ctx context.Context, id string) (core.Household, error)
		// GetUserHousehold returns the household userID has joined.
		GetUserHousehold(ctx context.Context, userID string) (core.Household, error)
		AddMember(ctx context.Context, householdID string, m core.Member) error
	}

	InvitationStore interface {
		CreateInvitation(ctx context.Context, inv core.Invitation) error
		GetInvitation(ctx context.Context, id string) (core.Invitation, error)
		// PendingInvitationsByEmail matches the normalised (lowercase) email.
		PendingInvitationsByEmail(ctx context.Context, email string) ([]core.Invitation, error)
		MarkInvitationAccepted(ctx context.Context, id string) error
	}

	// ExportTracker records spreadsheet export progress for the worker's
	// recovery sweep.
	ExportTracker interface {
		PendingExports(ctx context.Context, limit int) ([]core.Transaction, error)
		MarkExported(ctx context.Context, id string, status ExportStatus) error
		// ExportStatus reports progress for id, including deleted rows.
		ExportStatus(ctx context.Context, id string) (ExportStatus, error)
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}

	// Store is everything a backend provides.
	Store interface {
		TransactionStore
		HouseholdStore
		InvitationStore
		ExportTracker
		Pinger
	}
)
