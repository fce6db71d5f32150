// Package balance implements the daily balance projection engine: the
// transaction classifier, the sequential calculator, the incremental
// recalculator, the monthly and per-account aggregator, and the
// consistency validator. Everything here is synchronous and free of I/O
// except the Aggregator, which reads through the store ports.
package balance

import (
	"strings"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// Impact is the signed effect of one transaction on the three balances.
type Impact struct {
	Available decimal.Decimal
	Savings   decimal.Decimal
	Total     decimal.Decimal
}

// Add returns the component-wise sum.
func (i Impact) Add(o Impact) Impact {
	return Impact{
		Available: i.Available.Add(o.Available),
		Savings:   i.Savings.Add(o.Savings),
		Total:     i.Total.Add(o.Total),
	}
}

var zeroImpact = Impact{Available: decimal.Zero, Savings: decimal.Zero, Total: decimal.Zero}

// Classify maps a transaction onto its impact.
//
// Income adds to available and total, Expense removes from both, Saving
// moves money from available into savings and leaves the total unchanged.
// Unknown types and negative amounts yield a zero impact and a calculation error.
func Classify(tx core.Transaction) (Impact, error) {
	if tx.Amount.IsNegative() {
		return zeroImpact, core.Calculationf("transaction %s: negative amount %s", tx.ID, tx.Amount)
	}
	a := tx.Amount
	switch tx.Type {
	case core.Income:
		return Impact{Available: a, Savings: decimal.Zero, Total: a}, nil
	case core.Expense:
		return Impact{Available: a.Neg(), Savings: decimal.Zero, Total: a.Neg()}, nil
	case core.Saving:
		return Impact{Available: a.Neg(), Savings: a, Total: decimal.Zero}, nil
	}
	return zeroImpact, core.Calculationf("transaction %s: unrecognized type %q", tx.ID, string(tx.Type))
}

// ClassifyBestEffort is Classify for display paths: failures become a zero impact.
func ClassifyBestEffort(tx core.Transaction) Impact {
	impact, err := Classify(tx)
	if err != nil {
		return zeroImpact
	}
	return impact
}

var investmentMarkers = []string{"investiție", "investitie", "investiţie", "investment"}

// IsInvestment reports whether a saving belongs to the investments sub-bucket.
func IsInvestment(tx core.Transaction) bool {
	if tx.Type != core.Saving {
		return false
	}
	sub := strings.ToLower(tx.Subcategory)
	for _, m := range investmentMarkers {
		if strings.Contains(sub, m) {
			return true
		}
	}
	return false
}
