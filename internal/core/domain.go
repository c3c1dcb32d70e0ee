package core

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// IncomeCategory is the category sentinel marking a transaction as income.
	IncomeCategory = "Income"
	// IncomeMarker is the legacy notes prefix that also marked income.
	IncomeMarker = "INCOME:"
	// ExpenseMarker is the legacy notes prefix for expenses. It carries no
	// classification weight: anything that is not income is an expense.
	ExpenseMarker = "EXPENSE:"

	// UnknownContributor is used when a transaction has no contributor name.
	UnknownContributor = "Unknown"

	maxNameLength     = 200
	maxCategoryLength = 100
	maxNotesLength    = 500
	dateLayout        = "2006-01-02"
)

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"

	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
)

// SuggestedCategories is the fixed set offered by entry forms. Categories are
// free text, so anything else is accepted too.
var SuggestedCategories = []string{
	"Rent", "Utilities", "Groceries", "Food", "Housing", "Transportation",
	"Entertainment", "Household Items", "Internet", "Other", IncomeCategory,
}

type (
	Role             string
	InvitationStatus string

	// Date is a calendar date at UTC midnight. The zero value means the date
	// is missing.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Transaction struct {
		ID           string
		UserID       string
		HouseholdID  string // empty for personal transactions
		Name         string
		Amount       Money
		Category     string
		Date         Date
		Notes        string
		UserFullName string // contributor name captured at write time
		CreatedAt    time.Time
	}

	// User is the authenticated caller as asserted by the upstream proxy.
	User struct {
		ID       string
		FullName string
		Email    string
	}

	Household struct {
		ID        string
		Name      string
		OwnerID   string
		CreatedAt time.Time
		Members   []Member
	}

	Member struct {
		UserID    string
		FirstName string
		LastName  string
		Email     string
		Role      Role
		Joined    bool
		JoinedAt  time.Time
	}

	Invitation struct {
		ID            string
		HouseholdID   string
		HouseholdName string
		Email         string
		InvitedBy     string
		Status        InvitationStatus
		InvitedAt     time.Time
	}
)

var (
	ErrInvalidDay        = errors.New("invalid day")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidDate       = errors.New("invalid date")
	ErrMissingDate       = errors.New("date is required")
	ErrFutureDate        = errors.New("date cannot be in the future")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyName         = errors.New("empty name")
	ErrNameTooLong       = fmt.Errorf("name too long (max %d characters)", maxNameLength)
	ErrEmptyCategory     = errors.New("empty category")
	ErrCategoryTooLong   = fmt.Errorf("category too long (max %d characters)", maxCategoryLength)
	ErrNotesTooLong      = fmt.Errorf("notes too long (max %d characters)", maxNotesLength)
	ErrMissingOwner      = errors.New("missing owner")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrEmptyHouseholdRef = errors.New("empty household id")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date, keeping t's own location for the
// year/month/day split.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string. Full RFC 3339 timestamps are accepted
// and truncated to their date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrMissingDate
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// ParseDateSafe is ParseDate degrading to the missing date.
func ParseDateSafe(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		return Date{}
	}
	return d
}

// IsEmpty reports whether the date is missing.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String renders the date as YYYY-MM-DD, or "" when missing.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrMissingDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Validate rejects zero amounts. Negative amounts are allowed: the sign does
// not decide income versus expense.
func (m Money) Validate() error {
	if m.Cents == 0 {
		return ErrInvalidAmount
	}
	return nil
}

// IsIncome reports whether the transaction counts as income. Category is the
// only classification field; legacy notes markers are folded into it by
// NormalizeClassification before a transaction is stored.
func (t Transaction) IsIncome() bool {
	return t.Category == IncomeCategory
}

// IsHousehold reports whether the transaction belongs to a household ledger.
func (t Transaction) IsHousehold() bool {
	return t.HouseholdID != ""
}

// Ledger returns the ledger the transaction belongs to.
func (t Transaction) Ledger() LedgerKey {
	if t.IsHousehold() {
		return HouseholdLedger(t.HouseholdID)
	}
	return PersonalLedger(t.UserID)
}

// ContributorName returns the denormalised contributor name, defaulting to
// UnknownContributor.
func (t Transaction) ContributorName() string {
	if strings.TrimSpace(t.UserFullName) == "" {
		return UnknownContributor
	}
	return t.UserFullName
}

// NormalizeClassification folds the legacy "INCOME:" notes marker into the
// category field so that Category alone classifies the transaction.
func NormalizeClassification(t Transaction) Transaction {
	if strings.Contains(t.Notes, IncomeMarker) {
		t.Category = IncomeCategory
	}
	t.Name = strings.TrimSpace(t.Name)
	t.Category = strings.TrimSpace(t.Category)
	return t
}

// Validate checks the transaction against the entry rules, using now to reject
// future dates.
func (t Transaction) Validate(now time.Time) error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrMissingOwner
	}
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > maxNameLength {
		return ErrNameTooLong
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.Date.After(DateOf(now).Time) {
		return ErrFutureDate
	}
	if t.IsHousehold() && strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if utf8.RuneCountInString(t.Category) > maxCategoryLength {
		return ErrCategoryTooLong
	}
	if utf8.RuneCountInString(t.Notes) > maxNotesLength {
		return ErrNotesTooLong
	}
	return nil
}

func (h Household) Validate() error {
	name := strings.TrimSpace(h.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > maxNameLength {
		return ErrNameTooLong
	}
	if strings.TrimSpace(h.OwnerID) == "" {
		return ErrMissingOwner
	}
	return nil
}

// Member returns the member entry for userID.
func (h Household) Member(userID string) (Member, bool) {
	for _, m := range h.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

// IsJoinedMember reports whether userID has accepted membership.
func (h Household) IsJoinedMember(userID string) bool {
	m, ok := h.Member(userID)
	return ok && m.Joined
}

// SplitName splits a display name into first and last name at the first
// space.
func SplitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	first, last, _ = strings.Cut(full, " ")
	return first, strings.TrimSpace(last)
}

// FullName joins first and last name.
func (m Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

func (i Invitation) Validate() error {
	if strings.TrimSpace(i.HouseholdID) == "" {
		return ErrEmptyHouseholdRef
	}
	if strings.TrimSpace(i.InvitedBy) == "" {
		return ErrMissingOwner
	}
	if _, err := NormalizeEmail(i.Email); err != nil {
		return err
	}
	return nil
}

// NormalizeEmail validates an address and lowercases it for comparisons.
func NormalizeEmail(s string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, s)
	}
	return strings.ToLower(addr.Address), nil
}
