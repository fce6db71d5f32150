package balance

import (
	"fmt"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// Epsilon absorbs decimal rounding when comparing balances.
var Epsilon = decimal.RequireFromString("0.01")

// Issue is one finding of the validator, tied to a date when it has one.
type Issue struct {
	Date    core.Date
	Message string
}

func (i Issue) String() string {
	if i.Date.IsZero() {
		return i.Message
	}
	return i.Date.String() + ": " + i.Message
}

// ValidationResult reports structural violations over a computed series.
type ValidationResult struct {
	IsValid bool
	Errors  []Issue
}

// Validate checks every snapshot for total == available + savings and every
// consecutive pair for a change in available matching the day's breakdown.
// Violations are reported, never corrected.
func Validate(calcs []core.DailyBalance) ValidationResult {
	var issues []Issue
	for i, d := range calcs {
		sum := d.AvailableBalance.Add(d.SavingsBalance)
		if !withinEpsilon(d.TotalBalance, sum) {
			issues = append(issues, Issue{
				Date:    d.Date,
				Message: fmt.Sprintf("total balance %s does not equal available %s plus savings %s", d.TotalBalance, d.AvailableBalance, d.SavingsBalance),
			})
		}
		if d.IsNegative != d.AvailableBalance.IsNegative() {
			issues = append(issues, Issue{
				Date:    d.Date,
				Message: fmt.Sprintf("negative flag %t does not match available balance %s", d.IsNegative, d.AvailableBalance),
			})
		}
		if i == 0 {
			continue
		}
		prev := calcs[i-1]
		if !prev.Date.Before(d.Date.Time) {
			issues = append(issues, Issue{
				Date:    d.Date,
				Message: fmt.Sprintf("date is not after previous date %s", prev.Date),
			})
		}
		delta := d.AvailableBalance.Sub(prev.AvailableBalance)
		b := d.Breakdown
		expected := b.Income.Sub(b.Expenses).Sub(b.Savings)
		if !withinEpsilon(delta, expected) {
			issues = append(issues, Issue{
				Date:    d.Date,
				Message: fmt.Sprintf("available balance changed by %s but transactions account for %s", delta, expected),
			})
		}
	}
	return ValidationResult{IsValid: len(issues) == 0, Errors: issues}
}

func withinEpsilon(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Epsilon)
}

// InputOptions tunes the pre-calculation checks.
type InputOptions struct {
	// RequireTransactions turns an empty transaction set from a warning into an error.
	RequireTransactions bool
	// Strict makes consistency violations fatal in CalculateWithValidation.
	Strict bool
	// TrackInvestments is forwarded to the calculator.
	TrackInvestments bool
}

// ValidateInputs checks the starting balance and the raw transactions
// before anything is computed. Valid transactions are returned normalized.
func ValidateInputs(start decimal.Decimal, raws []core.RawTransaction, opts InputOptions) (txs []core.Transaction, errs, warnings []Issue) {
	if start.IsNegative() {
		errs = append(errs, Issue{Message: "starting balance cannot be negative"})
	}
	if len(raws) == 0 {
		issue := Issue{Message: "no transactions to calculate"}
		if opts.RequireTransactions {
			errs = append(errs, issue)
		} else {
			warnings = append(warnings, issue)
		}
	}
	for i, raw := range raws {
		ref := raw.ID
		if ref == "" {
			ref = fmt.Sprintf("#%d", i)
		}
		if _, err := core.ParseISODate(raw.Date); err != nil {
			errs = append(errs, Issue{Message: fmt.Sprintf("transaction %s: date %q is not ISO (YYYY-MM-DD)", ref, raw.Date)})
		}
		if _, err := core.ParseTransactionType(raw.Type); err != nil {
			errs = append(errs, Issue{Message: fmt.Sprintf("transaction %s: unrecognized type %q", ref, raw.Type)})
		}
		if amount, err := core.ParseSignedAmount(raw.Amount); err != nil {
			errs = append(errs, Issue{Message: fmt.Sprintf("transaction %s: invalid amount %v", ref, raw.Amount)})
		} else if amount.IsNegative() {
			errs = append(errs, Issue{Message: fmt.Sprintf("transaction %s: amount %s cannot be negative", ref, amount)})
		}
	}
	if len(errs) > 0 {
		return nil, errs, warnings
	}
	txs = make([]core.Transaction, 0, len(raws))
	for _, raw := range raws {
		tx, err := raw.Normalize()
		if err != nil {
			errs = append(errs, Issue{Message: err.Error()})
			continue
		}
		txs = append(txs, tx)
	}
	if len(errs) > 0 {
		return nil, errs, warnings
	}
	return txs, nil, warnings
}

// CalculationResult is the outcome of CalculateWithValidation.
type CalculationResult struct {
	Calculations []core.DailyBalance
	Errors       []Issue
	Warnings     []Issue
	HasErrors    bool
	Validation   ValidationResult
}

// CalculateWithValidation validates the inputs, calculates, and validates the
// output. Input errors stop before any calculation. Consistency violations
// are reported as warnings unless opts.Strict is set.
func CalculateWithValidation(start decimal.Decimal, raws []core.RawTransaction, opts InputOptions) CalculationResult {
	txs, errs, warnings := ValidateInputs(start, raws, opts)
	if len(errs) > 0 {
		return CalculationResult{Errors: errs, Warnings: warnings, HasErrors: true}
	}

	calc := Calculator{TrackInvestments: opts.TrackInvestments}
	days, err := calc.Calculate(Seed{Available: start, Savings: decimal.Zero}, core.GroupByDate(txs))
	if err != nil {
		return CalculationResult{
			Errors:    []Issue{{Message: err.Error()}},
			Warnings:  warnings,
			HasErrors: true,
		}
	}

	result := CalculationResult{
		Calculations: days,
		Warnings:     warnings,
		Validation:   Validate(days),
	}
	if !result.Validation.IsValid {
		if opts.Strict {
			result.Errors = append(result.Errors, result.Validation.Errors...)
			result.HasErrors = true
			result.Calculations = nil
		} else {
			result.Warnings = append(result.Warnings, result.Validation.Errors...)
		}
	}
	return result
}
