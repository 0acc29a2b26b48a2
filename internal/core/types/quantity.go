package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Quantity is a fixed-point stock quantity with 4 decimal places (scale = 1e4).
// Stored as a scaled BIGINT; encoded in JSON as a plain number.
// Sqft, boxes and pieces all use it.
type Quantity int64

const (
	QuantityScale  int64 = 10_000
	quantityDigits       = 4
)

var (
	maxQuantity = decimal.New(math.MaxInt64, -quantityDigits)
	minQuantity = decimal.New(math.MinInt64, -quantityDigits)
)

// Qty builds a whole-unit quantity.
func Qty(units int64) Quantity { return Quantity(units * QuantityScale) }

// QuantityFromDecimal rounds d half away from zero to 4 decimal places.
func QuantityFromDecimal(d decimal.Decimal) (Quantity, error) {
	d = d.Round(quantityDigits)
	if d.GreaterThan(maxQuantity) || d.LessThan(minQuantity) {
		return 0, fmt.Errorf("quantity %s out of range", d)
	}
	return Quantity(d.Shift(quantityDigits).IntPart()), nil
}

// ParseQuantity parses a decimal string such as "12.5" or "-3".
func ParseQuantity(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	return QuantityFromDecimal(d)
}

func (q Quantity) Int64Scaled() int64 { return int64(q) }

func (q Quantity) Float64() float64 { return float64(q) / float64(QuantityScale) }

func (q Quantity) IsZero() bool     { return q == 0 }
func (q Quantity) IsPositive() bool { return q > 0 }
func (q Quantity) IsNegative() bool { return q < 0 }

func (q Quantity) Abs() Quantity {
	if q < 0 {
		return -q
	}
	return q
}

// Decimal converts the quantity into an exact decimal value.
func (q Quantity) Decimal() decimal.Decimal {
	return decimal.New(int64(q), -quantityDigits)
}

// Mul returns q × price as Money.
func (q Quantity) Mul(price Money) Money {
	return q.Decimal().Mul(price)
}

// String always prints 4 fractional digits: "12.5000".
func (q Quantity) String() string {
	return q.Decimal().StringFixed(quantityDigits)
}

// MarshalJSON encodes the quantity as a JSON number.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string; null is zero.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = 0
		return nil
	}
	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	parsed, err := ParseQuantity(s)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// MinQuantity returns the smaller of two quantities.
func MinQuantity(a, b Quantity) Quantity { return min(a, b) }

// MaxQuantity returns the larger of two quantities.
func MaxQuantity(a, b Quantity) Quantity { return max(a, b) }

// CheckedAdd returns q+other and false when the sum overflows int64.
func (q Quantity) CheckedAdd(other Quantity) (Quantity, bool) {
	sum := q + other
	if (other > 0 && sum < q) || (other < 0 && sum > q) {
		return 0, false
	}
	return sum, true
}
