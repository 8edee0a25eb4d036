// Package pricing computes authoritative order subtotals and totals from
// untrusted client line items.
//
// All money is carried as decimal.Decimal and rounded to cents only at the
// end of a computation. Malformed numbers degrade to zero in the lenient
// entry points (Coerce, NormalizeMoney, CalculateSubtotal, RecalculateTotals);
// callers that need to reject bad input use ParseAmount or ValidateItems.
package pricing

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Errors returned by ParseAmount.
var (
	ErrMissingAmount   = errors.New("amount is missing")
	ErrMalformedAmount = errors.New("amount is not a number")
	ErrAmountTooLarge  = errors.New("amount is too large")
)

// MaxAmount is the largest magnitude a stored money column (numeric(12,2))
// can hold.
var MaxAmount = decimal.RequireFromString("9999999999.99")

const (
	// maxAmountLen bounds the textual form of an amount before parsing.
	maxAmountLen = 32
	// maxExponent bounds the decimal exponent in either direction so that
	// rounding never expands a value into a huge integer.
	maxExponent = 12
)

// ParseAmount converts an arbitrary JSON-ish value into a decimal.
// Accepted: Go integer and float kinds, json.Number, numeric strings
// (a lone decimal comma is read as a decimal point), decimal.Decimal and
// fmt.Stringer. Negative values are returned as-is.
func ParseAmount(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, ErrMissingAmount
	case decimal.Decimal:
		return t, nil
	case *decimal.Decimal:
		if t == nil {
			return decimal.Zero, ErrMissingAmount
		}
		return *t, nil
	case float64:
		return fromFloat(t)
	case float32:
		return fromFloat(float64(t))
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int8:
		return decimal.NewFromInt(int64(t)), nil
	case int16:
		return decimal.NewFromInt(int64(t)), nil
	case int32:
		return decimal.NewFromInt32(t), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case uint:
		return decimal.NewFromUint64(uint64(t)), nil
	case uint8:
		return decimal.NewFromUint64(uint64(t)), nil
	case uint16:
		return decimal.NewFromUint64(uint64(t)), nil
	case uint32:
		return decimal.NewFromUint64(uint64(t)), nil
	case uint64:
		return decimal.NewFromUint64(t), nil
	case json.Number:
		return fromString(string(t))
	case string:
		return fromString(t)
	case bool:
		return decimal.Zero, ErrMalformedAmount
	case fmt.Stringer:
		return fromString(t.String())
	}
	return decimal.Zero, ErrMalformedAmount
}

// Coerce is the lenient form of ParseAmount: any failure yields zero.
// The result may be negative.
func Coerce(v any) decimal.Decimal {
	d, err := ParseAmount(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// NormalizeMoney coerces v, floors negatives to zero and rounds to cents.
func NormalizeMoney(v any) decimal.Decimal {
	return RoundCents(nonNegative(Coerce(v)))
}

// RoundCents rounds d to two decimal places, half away from zero.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func fromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, ErrMalformedAmount
	}
	if math.Abs(f) >= 1e12 {
		return decimal.Zero, ErrAmountTooLarge
	}
	if math.Abs(f) < 1e-12 {
		return decimal.Zero, nil
	}
	return decimal.NewFromFloat(f).Round(maxExponent), nil
}

// bounded checks the exponent before the magnitude: comparing a value with
// an extreme exponent would itself expand it.
func bounded(d decimal.Decimal) (decimal.Decimal, error) {
	if d.IsZero() {
		return decimal.Zero, nil
	}
	exp := d.Exponent()
	if exp > maxExponent {
		return decimal.Zero, ErrAmountTooLarge
	}
	if exp < -maxAmountLen {
		return decimal.Zero, ErrMalformedAmount
	}
	if exp < -maxExponent {
		d = d.Round(maxExponent)
	}
	if d.Abs().GreaterThan(MaxAmount) {
		return decimal.Zero, ErrAmountTooLarge
	}
	return d, nil
}

func fromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrMissingAmount
	}
	if len(s) > maxAmountLen {
		return decimal.Zero, ErrMalformedAmount
	}
	if strings.Contains(s, ",") && !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrMalformedAmount
	}
	return d, nil
}
