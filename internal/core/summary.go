package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Breakdown holds the unsigned per-day sums by transaction type.
// Investments is a subset of Savings, filled only when investment tracking is on.
type Breakdown struct {
	Income      decimal.Decimal
	Expenses    decimal.Decimal
	Savings     decimal.Decimal
	Investments decimal.Decimal
}

// DailyBalance is the computed state at the end of one calendar day.
type DailyBalance struct {
	Date             Date
	AvailableBalance decimal.Decimal
	SavingsBalance   decimal.Decimal
	TotalBalance     decimal.Decimal
	IsNegative       bool
	Breakdown        Breakdown
	Transactions     []Transaction
}

// MonthlyProjection is one DailyBalance per calendar day of a month.
type MonthlyProjection struct {
	Year              int
	Month             int // 1-12
	DailyBalances     []DailyBalance
	StartAvailable    decimal.Decimal
	StartSavings      decimal.Decimal
	MonthStartBalance decimal.Decimal
	MonthEndBalance   decimal.Decimal
	TotalIncome       decimal.Decimal
	TotalExpenses     decimal.Decimal
	TotalSavings      decimal.Decimal
}

// AccountDailyBalance is the per-account slice of a day in multi-account mode.
type AccountDailyBalance struct {
	AccountID        string
	AccountName      string
	Balance          decimal.Decimal
	AvailableBalance decimal.Decimal
	SavingsBalance   decimal.Decimal
	IsNegative       bool
}

// TransactionsByDate groups transactions by the day they happened.
type TransactionsByDate map[Date][]Transaction

// GroupByDate groups txs by day, keeping their input order within a day.
func GroupByDate(txs []Transaction) TransactionsByDate {
	out := make(TransactionsByDate)
	for _, tx := range txs {
		out[tx.Date] = append(out[tx.Date], tx)
	}
	return out
}

// SortedDates returns the distinct dates in ascending order.
func (m TransactionsByDate) SortedDates() []Date {
	dates := make([]Date, 0, len(m))
	for d := range m {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j].Time) })
	return dates
}

// Equal compares two breakdowns by value.
func (b Breakdown) Equal(o Breakdown) bool {
	return b.Income.Equal(o.Income) &&
		b.Expenses.Equal(o.Expenses) &&
		b.Savings.Equal(o.Savings) &&
		b.Investments.Equal(o.Investments)
}

// Equal compares two snapshots by value, including the transaction ids they carry.
func (d DailyBalance) Equal(o DailyBalance) bool {
	if d.Date != o.Date ||
		!d.AvailableBalance.Equal(o.AvailableBalance) ||
		!d.SavingsBalance.Equal(o.SavingsBalance) ||
		!d.TotalBalance.Equal(o.TotalBalance) ||
		d.IsNegative != o.IsNegative ||
		!d.Breakdown.Equal(o.Breakdown) ||
		len(d.Transactions) != len(o.Transactions) {
		return false
	}
	for i := range d.Transactions {
		if d.Transactions[i].ID != o.Transactions[i].ID {
			return false
		}
	}
	return true
}

// EqualSeries compares two series element by element.
func EqualSeries(a, b []DailyBalance) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// FindDay returns the snapshot for d, if the series contains it.
func FindDay(series []DailyBalance, d Date) (DailyBalance, bool) {
	i := sort.Search(len(series), func(i int) bool { return !series[i].Date.Before(d.Time) })
	if i < len(series) && series[i].Date == d {
		return series[i], true
	}
	return DailyBalance{}, false
}
