package http

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/services"
)

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// Wire shapes. Amounts are encoded as decimal strings, dates as YYYY-MM-DD.

type transactionDTO struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	AccountID   string          `json:"account_id,omitempty"`
	Category    string          `json:"category,omitempty"`
	Subcategory string          `json:"subcategory,omitempty"`
}

type breakdownDTO struct {
	Income      decimal.Decimal `json:"income"`
	Expenses    decimal.Decimal `json:"expenses"`
	Savings     decimal.Decimal `json:"savings"`
	Investments decimal.Decimal `json:"investments"`
}

type dailyBalanceDTO struct {
	Date             string           `json:"date"`
	AvailableBalance decimal.Decimal  `json:"available_balance"`
	SavingsBalance   decimal.Decimal  `json:"savings_balance"`
	TotalBalance     decimal.Decimal  `json:"total_balance"`
	IsNegative       bool             `json:"is_negative"`
	Breakdown        breakdownDTO     `json:"breakdown"`
	Transactions     []transactionDTO `json:"transactions"`
}

type monthlyProjectionDTO struct {
	Year              int               `json:"year"`
	Month             int               `json:"month"`
	StartAvailable    decimal.Decimal   `json:"start_available"`
	StartSavings      decimal.Decimal   `json:"start_savings"`
	MonthStartBalance decimal.Decimal   `json:"month_start_balance"`
	MonthEndBalance   decimal.Decimal   `json:"month_end_balance"`
	TotalIncome       decimal.Decimal   `json:"total_income"`
	TotalExpenses     decimal.Decimal   `json:"total_expenses"`
	TotalSavings      decimal.Decimal   `json:"total_savings"`
	DailyBalances     []dailyBalanceDTO `json:"daily_balances"`
}

type projectionDTO struct {
	From          string            `json:"from"`
	To            string            `json:"to"`
	AccountID     string            `json:"account_id,omitempty"`
	DailyBalances []dailyBalanceDTO `json:"daily_balances"`
}

type accountBalanceDTO struct {
	AccountID        string          `json:"account_id"`
	AccountName      string          `json:"account_name"`
	Balance          decimal.Decimal `json:"balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	SavingsBalance   decimal.Decimal `json:"savings_balance"`
	IsNegative       bool            `json:"is_negative"`
}

type accountsBalanceDTO struct {
	Date     string              `json:"date"`
	Accounts []accountBalanceDTO `json:"accounts"`
}

type transactionPageDTO struct {
	Items   []transactionDTO `json:"items"`
	Total   int              `json:"total"`
	Offset  int              `json:"offset"`
	Limit   int              `json:"limit"`
	HasMore bool             `json:"has_more"`
}

type invalidationDTO struct {
	Removed int    `json:"removed"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
}

type cacheStatsDTO struct {
	Entries        int     `json:"entries"`
	MaxEntries     int     `json:"max_entries"`
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	HitRatio       float64 `json:"hit_ratio"`
	TimeoutSeconds float64 `json:"timeout_seconds"`
}

func toTransactionDTO(tx core.Transaction) transactionDTO {
	return transactionDTO{
		ID:          tx.ID,
		Type:        tx.Type.String(),
		Amount:      tx.Amount,
		Date:        tx.Date.String(),
		AccountID:   tx.AccountID,
		Category:    tx.Category,
		Subcategory: tx.Subcategory,
	}
}

func toTransactionDTOs(txs []core.Transaction) []transactionDTO {
	out := make([]transactionDTO, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionDTO(tx))
	}
	return out
}

func toDailyBalanceDTO(d core.DailyBalance) dailyBalanceDTO {
	return dailyBalanceDTO{
		Date:             d.Date.String(),
		AvailableBalance: d.AvailableBalance,
		SavingsBalance:   d.SavingsBalance,
		TotalBalance:     d.TotalBalance,
		IsNegative:       d.IsNegative,
		Breakdown: breakdownDTO{
			Income:      d.Breakdown.Income,
			Expenses:    d.Breakdown.Expenses,
			Savings:     d.Breakdown.Savings,
			Investments: d.Breakdown.Investments,
		},
		Transactions: toTransactionDTOs(d.Transactions),
	}
}

func toDailyBalanceDTOs(days []core.DailyBalance) []dailyBalanceDTO {
	out := make([]dailyBalanceDTO, 0, len(days))
	for _, d := range days {
		out = append(out, toDailyBalanceDTO(d))
	}
	return out
}

func toMonthlyProjectionDTO(p core.MonthlyProjection) monthlyProjectionDTO {
	return monthlyProjectionDTO{
		Year:              p.Year,
		Month:             p.Month,
		StartAvailable:    p.StartAvailable,
		StartSavings:      p.StartSavings,
		MonthStartBalance: p.MonthStartBalance,
		MonthEndBalance:   p.MonthEndBalance,
		TotalIncome:       p.TotalIncome,
		TotalExpenses:     p.TotalExpenses,
		TotalSavings:      p.TotalSavings,
		DailyBalances:     toDailyBalanceDTOs(p.DailyBalances),
	}
}

func toAccountBalanceDTOs(rows []core.AccountDailyBalance) []accountBalanceDTO {
	out := make([]accountBalanceDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, accountBalanceDTO{
			AccountID:        r.AccountID,
			AccountName:      r.AccountName,
			Balance:          r.Balance,
			AvailableBalance: r.AvailableBalance,
			SavingsBalance:   r.SavingsBalance,
			IsNegative:       r.IsNegative,
		})
	}
	return out
}

func toTransactionPageDTO(p services.TransactionPage) transactionPageDTO {
	return transactionPageDTO{
		Items:   toTransactionDTOs(p.Items),
		Total:   p.Total,
		Offset:  p.Offset,
		Limit:   p.Limit,
		HasMore: p.HasMore,
	}
}

func toCacheStatsDTO(s services.CacheStats) cacheStatsDTO {
	return cacheStatsDTO{
		Entries:        s.Entries,
		MaxEntries:     s.MaxEntries,
		Hits:           s.Hits,
		Misses:         s.Misses,
		HitRatio:       s.Ratio,
		TimeoutSeconds: s.Timeout.Round(time.Millisecond).Seconds(),
	}
}
