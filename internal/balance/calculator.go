package balance

import (
	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// Seed is the running state before the first processed day.
type Seed struct {
	Available decimal.Decimal
	Savings   decimal.Decimal
}

// Total returns available plus savings.
func (s Seed) Total() decimal.Decimal {
	return s.Available.Add(s.Savings)
}

// SeedFrom returns the post-day state of a snapshot as a seed.
func SeedFrom(d core.DailyBalance) Seed {
	return Seed{Available: d.AvailableBalance, Savings: d.SavingsBalance}
}

// Calculator turns grouped transactions into daily snapshots.
// The zero value is ready to use.
type Calculator struct {
	// TrackInvestments fills Breakdown.Investments for savings whose
	// subcategory marks them as investments.
	TrackInvestments bool
}

// Calculate processes the dates present in byDate in ascending order.
// A date mapped to an empty slice still yields a snapshot equal to the
// previous running totals.
func (c Calculator) Calculate(seed Seed, byDate core.TransactionsByDate) ([]core.DailyBalance, error) {
	dates := byDate.SortedDates()
	return c.run(seed, dates, byDate)
}

// CalculateRange yields one snapshot for every calendar day in [from, to].
// Transactions outside the range are ignored; the seed must already account
// for anything before from.
func (c Calculator) CalculateRange(seed Seed, from, to core.Date, byDate core.TransactionsByDate) ([]core.DailyBalance, error) {
	if from.IsZero() || to.IsZero() {
		return nil, core.InvalidDatef("calculation range needs both ends")
	}
	if to.Before(from.Time) {
		return nil, core.InvalidDatef("calculation range end %s is before start %s", to, from)
	}
	var dates []core.Date
	for d := from; !d.After(to.Time); d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return c.run(seed, dates, byDate)
}

func (c Calculator) run(seed Seed, dates []core.Date, byDate core.TransactionsByDate) ([]core.DailyBalance, error) {
	available := seed.Available
	savings := seed.Savings
	out := make([]core.DailyBalance, 0, len(dates))

	for _, date := range dates {
		txs := byDate[date]
		day := Impact{}
		breakdown := core.Breakdown{
			Income:      decimal.Zero,
			Expenses:    decimal.Zero,
			Savings:     decimal.Zero,
			Investments: decimal.Zero,
		}
		for _, tx := range txs {
			impact, err := Classify(tx)
			if err != nil {
				return nil, err
			}
			day = day.Add(impact)
			switch tx.Type {
			case core.Income:
				breakdown.Income = breakdown.Income.Add(tx.Amount)
			case core.Expense:
				breakdown.Expenses = breakdown.Expenses.Add(tx.Amount)
			case core.Saving:
				breakdown.Savings = breakdown.Savings.Add(tx.Amount)
				if c.TrackInvestments && IsInvestment(tx) {
					breakdown.Investments = breakdown.Investments.Add(tx.Amount)
				}
			}
		}

		available = available.Add(day.Available)
		savings = savings.Add(day.Savings)
		out = append(out, snapshot(date, available, savings, breakdown, txs))
	}
	return out, nil
}

func snapshot(date core.Date, available, savings decimal.Decimal, b core.Breakdown, txs []core.Transaction) core.DailyBalance {
	var carried []core.Transaction
	if len(txs) > 0 {
		carried = append([]core.Transaction(nil), txs...)
	}
	return core.DailyBalance{
		Date:             date,
		AvailableBalance: available,
		SavingsBalance:   savings,
		TotalBalance:     available.Add(savings),
		IsNegative:       available.IsNegative(),
		Breakdown:        b,
		Transactions:     carried,
	}
}

// Calculate runs the zero-value Calculator.
func Calculate(seed Seed, byDate core.TransactionsByDate) ([]core.DailyBalance, error) {
	return Calculator{}.Calculate(seed, byDate)
}

// CalculateRange runs the zero-value Calculator over every day of [from, to].
func CalculateRange(seed Seed, from, to core.Date, byDate core.TransactionsByDate) ([]core.DailyBalance, error) {
	return Calculator{}.CalculateRange(seed, from, to, byDate)
}

// ApplyTransactions folds txs into seed without emitting snapshots. It is
// the fast path for carry-over, where only the final state matters.
func ApplyTransactions(seed Seed, txs []core.Transaction) (Seed, error) {
	for _, tx := range txs {
		impact, err := Classify(tx)
		if err != nil {
			return Seed{}, err
		}
		seed.Available = seed.Available.Add(impact.Available)
		seed.Savings = seed.Savings.Add(impact.Savings)
	}
	return seed, nil
}
