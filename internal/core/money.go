// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and converting between cents and dollar representations.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	// maxAmount bounds a single amount below a trillion dollars, which keeps
	// sums over tens of thousands of rows inside int64 cents.
	maxAmount = decimal.New(1, 12)
)

// ParseAmount converts a decimal string to Money with half-up rounding to
// cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional sign. Zero is rejected because a transaction must move money.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234
//	ParseAmount("12,345") -> 1235 (half-up)
//	ParseAmount("-3")     -> -300
func ParseAmount(s string) (Money, error) {
	m, err := parseMoney(s)
	if err != nil {
		return Money{}, err
	}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// ParseAmountSafe is the lenient variant used when reading stored or imported
// data: anything unparseable becomes zero instead of an error.
func ParseAmountSafe(s string) Money {
	m, err := parseMoney(s)
	if err != nil {
		return Money{}
	}
	return m
}

func parseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.Abs().GreaterThanOrEqual(maxAmount) {
		return Money{}, ErrInvalidAmount
	}
	return FromDecimal(d), nil
}

// FromDecimal rounds d half away from zero to whole cents.
func FromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Round(2).Mul(hundred).IntPart()}
}

// Decimal returns the amount in dollars as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Dollars returns the dollar value as a float64 for display and ratios.
// Use cents for sums.
func (m Money) Dollars() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

// String formats the amount as fixed two-decimal USD: "$12.34", "-$3.00".
func (m Money) String() string {
	if m.Cents < 0 {
		return "-$" + m.Abs().Decimal().StringFixed(2)
	}
	return "$" + m.Decimal().StringFixed(2)
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().StringFixed(2)), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string. Zero is allowed
// here; callers validate.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*m = Money{}
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := parseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
