// Package core provides money parsing and handling utilities.
//
// This file contains the strict amount parser used on every calculation
// path and the lenient formatter reserved for display.
package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a store or form value into a non-negative decimal.
//
// It accepts decimal values, numeric kinds, json.Number and strings using
// either a dot (12.34) or a comma (12,34) as decimal separator. Unparsable
// and negative input is reported as a calculation error, never coerced to zero.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount(500)     -> 500, nil
//	ParseAmount("abc")   -> 0, error
func ParseAmount(v any) (decimal.Decimal, error) {
	d, err := toDecimal(v)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, Calculationf("amount %s cannot be negative", d).wrap(ErrInvalidAmount)
	}
	return d, nil
}

// ParseSignedAmount is ParseAmount without the sign check, used for
// balances which may legitimately be negative.
func ParseSignedAmount(v any) (decimal.Decimal, error) {
	return toDecimal(v)
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero, Calculationf("amount is missing").wrap(ErrInvalidAmount)
		}
		return *x, nil
	case string:
		return parseAmountString(x)
	case json.Number:
		return parseAmountString(x.String())
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, Calculationf("amount %v is not a finite number", x).wrap(ErrInvalidAmount)
		}
		return decimal.NewFromFloat(x), nil
	case float32:
		if f := float64(x); math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero, Calculationf("amount %v is not a finite number", x).wrap(ErrInvalidAmount)
		}
		return decimal.NewFromFloat32(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int32:
		return decimal.NewFromInt32(x), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case nil:
		return decimal.Zero, Calculationf("amount is missing").wrap(ErrInvalidAmount)
	}
	return decimal.Zero, Calculationf("unsupported amount type %T", v).wrap(ErrInvalidAmount)
}

func parseAmountString(s string) (decimal.Decimal, error) {
	clean := strings.TrimSpace(s)
	if clean == "" {
		return decimal.Zero, Calculationf("amount is empty").wrap(ErrInvalidAmount)
	}
	// Normalize decimal comma to dot
	if strings.Count(clean, ",") == 1 && !strings.Contains(clean, ".") {
		clean = strings.Replace(clean, ",", ".", 1)
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, Calculationf("cannot parse amount %q", s).wrap(ErrInvalidAmount)
	}
	return d, nil
}

// FormatAmount renders a value with two decimals for display. Values that do
// not parse are returned as their raw text; calculation code must use
// ParseAmount instead.
func FormatAmount(v any) string {
	d, err := toDecimal(v)
	if err != nil {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return d.StringFixed(2)
}
