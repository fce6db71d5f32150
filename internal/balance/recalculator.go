package balance

import (
	"sort"

	"saldo/internal/core"
)

// RecalculateFrom recomputes only the part of existing that a change on or
// after fromDate can affect.
//
// Snapshots strictly before fromDate are kept as they are. The running totals
// of the snapshot right before the cut seed the recomputation, which covers
// the dates of the old suffix plus every date in updated that is on or after
// fromDate. When the cut falls on the first snapshot, the original seed is
// recovered by backing that day's own movement out of it.
func (c Calculator) RecalculateFrom(existing []core.DailyBalance, fromDate core.Date, updated core.TransactionsByDate) ([]core.DailyBalance, error) {
	if fromDate.IsZero() {
		return nil, core.InvalidDatef("recalculation needs a start date")
	}
	cut := sort.Search(len(existing), func(i int) bool {
		return !existing[i].Date.Before(fromDate.Time)
	})

	seed := Seed{}
	switch {
	case cut > 0:
		seed = SeedFrom(existing[cut-1])
	case len(existing) > 0:
		seed = seedBefore(existing[0])
	}

	suffix := make(core.TransactionsByDate)
	for _, day := range existing[cut:] {
		suffix[day.Date] = nil
	}
	for date, txs := range updated {
		if date.Before(fromDate.Time) {
			continue
		}
		suffix[date] = txs
	}

	recomputed, err := c.Calculate(seed, suffix)
	if err != nil {
		return nil, err
	}

	out := make([]core.DailyBalance, 0, cut+len(recomputed))
	out = append(out, existing[:cut]...)
	return append(out, recomputed...), nil
}

// RecalculateFrom runs the zero-value Calculator.
func RecalculateFrom(existing []core.DailyBalance, fromDate core.Date, updated core.TransactionsByDate) ([]core.DailyBalance, error) {
	return Calculator{}.RecalculateFrom(existing, fromDate, updated)
}

// seedBefore reverses one snapshot's own day movement.
func seedBefore(first core.DailyBalance) Seed {
	b := first.Breakdown
	dayAvailable := b.Income.Sub(b.Expenses).Sub(b.Savings)
	return Seed{
		Available: first.AvailableBalance.Sub(dayAvailable),
		Savings:   first.SavingsBalance.Sub(b.Savings),
	}
}
