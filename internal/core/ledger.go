package core

import (
	"errors"
	"strings"
)

// LedgerKind tells personal and household ledgers apart.
type LedgerKind string

const (
	PersonalKind  LedgerKind = "personal"
	HouseholdKind LedgerKind = "household"
)

var ErrInvalidLedger = errors.New("invalid ledger key")

// LedgerKey identifies the single owner context of a transaction: a user's
// personal ledger or one household ledger.
type LedgerKey struct {
	Kind LedgerKind
	ID   string
}

func PersonalLedger(userID string) LedgerKey {
	return LedgerKey{Kind: PersonalKind, ID: userID}
}

func HouseholdLedger(householdID string) LedgerKey {
	return LedgerKey{Kind: HouseholdKind, ID: householdID}
}

// String renders the key as "kind:id", the form used in events and cache keys.
func (k LedgerKey) String() string {
	return string(k.Kind) + ":" + k.ID
}

func (k LedgerKey) Validate() error {
	if k.ID == "" {
		return ErrInvalidLedger
	}
	switch k.Kind {
	case PersonalKind, HouseholdKind:
		return nil
	default:
		return ErrInvalidLedger
	}
}

// ParseLedgerKey is the inverse of LedgerKey.String.
func ParseLedgerKey(s string) (LedgerKey, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return LedgerKey{}, ErrInvalidLedger
	}
	k := LedgerKey{Kind: LedgerKind(kind), ID: id}
	if err := k.Validate(); err != nil {
		return LedgerKey{}, err
	}
	return k, nil
}
