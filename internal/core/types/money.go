// Package types provides the numeric types of the ledger: fixed-point
// quantities and decimal money.
package types

import "github.com/shopspring/decimal"

// Money is an exact decimal amount. Costs and valuations never pass through
// float64.
type Money = decimal.Decimal

// NewMoney converts a float; prefer MustMoney for literals.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// MustMoney parses a decimal literal and panics on malformed input.
func MustMoney(s string) Money {
	return decimal.RequireFromString(s)
}

// Zero returns zero Money.
func Zero() Money {
	return decimal.Zero
}
