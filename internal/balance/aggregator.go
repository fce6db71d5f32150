package balance

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/store"
)

// MonthProjection computes one snapshot per calendar day of the month,
// starting from seed. Transactions outside the month are ignored.
func (c Calculator) MonthProjection(year, month int, txs []core.Transaction, seed Seed) (core.MonthlyProjection, error) {
	if err := core.ValidateYearMonth(year, month); err != nil {
		return core.MonthlyProjection{}, err
	}
	rng := core.MonthRange(year, month)
	inMonth := core.FilterTransactions(txs, rng, "")

	days, err := c.CalculateRange(seed, rng.From, rng.To, core.GroupByDate(inMonth))
	if err != nil {
		return core.MonthlyProjection{}, err
	}
	return summarizeMonth(year, month, seed, days), nil
}

// RecalculateMonth brings an existing month projection up to date after a
// change on or after from, reusing every snapshot before it. txs is the
// month's full transaction set after the change. The month-start seed is
// taken from p, so the change must not alter anything before the month.
func (c Calculator) RecalculateMonth(p core.MonthlyProjection, from core.Date, txs []core.Transaction) (core.MonthlyProjection, error) {
	rng := core.MonthRange(p.Year, p.Month)
	if len(p.DailyBalances) == 0 {
		return core.MonthlyProjection{}, core.Calculationf("no snapshots to recalculate for %04d-%02d", p.Year, p.Month)
	}
	if !rng.Contains(from) {
		return core.MonthlyProjection{}, core.InvalidDatef("recalculation start %s is outside %04d-%02d", from, p.Year, p.Month)
	}
	days, err := c.RecalculateFrom(p.DailyBalances, from, core.GroupByDate(core.FilterTransactions(txs, rng, "")))
	if err != nil {
		return core.MonthlyProjection{}, err
	}
	seed := Seed{Available: p.StartAvailable, Savings: p.StartSavings}
	return summarizeMonth(p.Year, p.Month, seed, days), nil
}

func summarizeMonth(year, month int, seed Seed, days []core.DailyBalance) core.MonthlyProjection {
	p := core.MonthlyProjection{
		Year:              year,
		Month:             month,
		DailyBalances:     days,
		StartAvailable:    seed.Available,
		StartSavings:      seed.Savings,
		MonthStartBalance: seed.Total(),
		TotalIncome:       decimal.Zero,
		TotalExpenses:     decimal.Zero,
		TotalSavings:      decimal.Zero,
	}
	for _, d := range days {
		p.TotalIncome = p.TotalIncome.Add(d.Breakdown.Income)
		p.TotalExpenses = p.TotalExpenses.Add(d.Breakdown.Expenses)
		p.TotalSavings = p.TotalSavings.Add(d.Breakdown.Savings)
	}
	p.MonthEndBalance = days[len(days)-1].TotalBalance
	return p
}

// MonthProjection runs the zero-value Calculator.
func MonthProjection(year, month int, txs []core.Transaction, seed Seed) (core.MonthlyProjection, error) {
	return Calculator{}.MonthProjection(year, month, txs, seed)
}

// AggregatorOptions selects carry-over and investment tracking.
type AggregatorOptions struct {
	EnableMonthlyTransfers bool
	TrackInvestments       bool
}

// Aggregator runs the calculator against the store ports: month-start
// carry-over per account and the per-account view of a single day.
type Aggregator struct {
	transactions store.TransactionLister
	accounts     store.AccountReader
	opts         AggregatorOptions
	calc         Calculator
	logger       *slog.Logger
}

// NewAggregator creates an Aggregator. A nil logger falls back to slog.Default.
func NewAggregator(transactions store.TransactionLister, accounts store.AccountReader, opts AggregatorOptions, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		transactions: transactions,
		accounts:     accounts,
		opts:         opts,
		calc:         Calculator{TrackInvestments: opts.TrackInvestments},
		logger:       logger,
	}
}

// Calculator returns the calculator configured for this aggregator.
func (a *Aggregator) Calculator() Calculator {
	return a.calc
}

// Options returns the aggregator options.
func (a *Aggregator) Options() AggregatorOptions {
	return a.opts
}

// ResolveAccount returns the active account with the given id.
func (a *Aggregator) ResolveAccount(ctx context.Context, id string) (core.Account, error) {
	acc, err := a.accounts.GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, core.WrapCalculation(err, "load account %s", id)
	}
	if acc == nil {
		return core.Account{}, core.AccountNotFoundf("account %q not found", id)
	}
	if !acc.IsActive {
		return core.Account{}, core.AccountNotFoundf("account %q is inactive", id)
	}
	return *acc, nil
}

// SeedBefore returns the balances at the end of the day before date: the
// account's initial balance plus every transaction strictly earlier.
func (a *Aggregator) SeedBefore(ctx context.Context, acc core.Account, date core.Date) (Seed, error) {
	seed := Seed{Available: acc.InitialBalance, Savings: decimal.Zero}
	rng := core.DateRange{To: date.AddDays(-1)}
	txs, err := a.transactions.ListTransactions(ctx, rng, acc.ID)
	if err != nil {
		return Seed{}, core.WrapCalculation(err, "list transactions for account %s", acc.ID)
	}
	return ApplyTransactions(seed, core.FilterTransactions(txs, rng, acc.ID))
}

// StartingSeed returns the month-start state of an account. With monthly
// transfers the previous month's end balance carries over; without, every
// month restarts from the initial balance.
func (a *Aggregator) StartingSeed(ctx context.Context, acc core.Account, year, month int) (Seed, error) {
	if err := core.ValidateYearMonth(year, month); err != nil {
		return Seed{}, err
	}
	if !a.opts.EnableMonthlyTransfers {
		return Seed{Available: acc.InitialBalance, Savings: decimal.Zero}, nil
	}
	return a.SeedBefore(ctx, acc, core.NewDate(year, month, 1))
}

// PreviousMonthEndBalance returns the total balance at the end of the month
// before (year, month) for the account.
func (a *Aggregator) PreviousMonthEndBalance(ctx context.Context, accountID string, year, month int) (decimal.Decimal, error) {
	acc, err := a.ResolveAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	if err := core.ValidateYearMonth(year, month); err != nil {
		return decimal.Zero, err
	}
	seed, err := a.SeedBefore(ctx, acc, core.NewDate(year, month, 1))
	if err != nil {
		return decimal.Zero, err
	}
	return seed.Total(), nil
}

// AccountMonth computes the month projection of a single account.
func (a *Aggregator) AccountMonth(ctx context.Context, acc core.Account, year, month int) (core.MonthlyProjection, error) {
	seed, err := a.StartingSeed(ctx, acc, year, month)
	if err != nil {
		return core.MonthlyProjection{}, err
	}
	txs, err := a.transactions.ListTransactions(ctx, core.MonthRange(year, month), acc.ID)
	if err != nil {
		return core.MonthlyProjection{}, core.WrapCalculation(err, "list transactions for account %s", acc.ID)
	}
	return a.calc.MonthProjection(year, month, core.FilterTransactions(txs, core.DateRange{}, acc.ID), seed)
}

// AllAccountsBalance runs the pipeline independently for every active
// account and returns that day's balance per account, ordered by display
// order. An account that fails is logged and left out.
func (a *Aggregator) AllAccountsBalance(ctx context.Context, date core.Date) ([]core.AccountDailyBalance, error) {
	if err := date.Validate(); err != nil {
		return nil, err
	}
	accounts, err := a.accounts.ListActiveAccounts(ctx)
	if err != nil {
		return nil, core.WrapCalculation(err, "list active accounts")
	}
	if len(accounts) == 0 {
		return nil, core.MissingDataf("no active accounts")
	}
	sort.SliceStable(accounts, func(i, j int) bool {
		if accounts[i].DisplayOrder != accounts[j].DisplayOrder {
			return accounts[i].DisplayOrder < accounts[j].DisplayOrder
		}
		return accounts[i].Name < accounts[j].Name
	})

	out := make([]core.AccountDailyBalance, 0, len(accounts))
	for _, acc := range accounts {
		if !acc.IsActive {
			continue
		}
		day, err := a.accountDay(ctx, acc, date)
		if err != nil {
			a.logger.WarnContext(ctx, "Skipping account in multi-account balance",
				"account_id", acc.ID,
				"date", date.String(),
				"error", err)
			continue
		}
		out = append(out, core.AccountDailyBalance{
			AccountID:        acc.ID,
			AccountName:      acc.Name,
			Balance:          day.TotalBalance,
			AvailableBalance: day.AvailableBalance,
			SavingsBalance:   day.SavingsBalance,
			IsNegative:       day.IsNegative,
		})
	}
	return out, nil
}

func (a *Aggregator) accountDay(ctx context.Context, acc core.Account, date core.Date) (core.DailyBalance, error) {
	p, err := a.AccountMonth(ctx, acc, date.Year(), date.Month())
	if err != nil {
		return core.DailyBalance{}, err
	}
	day, ok := core.FindDay(p.DailyBalances, date)
	if !ok {
		return core.DailyBalance{}, core.Calculationf("no snapshot for %s in account %s", date, acc.ID)
	}
	return day, nil
}
