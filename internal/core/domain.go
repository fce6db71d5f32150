package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
	Saving  TransactionType = "saving"
)

type (
	TransactionType string

	// Transaction is read-only input to the engine. Amount is always
	// non-negative; the type decides the sign of its impact.
	Transaction struct {
		ID          string
		Type        TransactionType
		Amount      decimal.Decimal
		Date        Date
		AccountID   string // empty when the transaction is not bound to an account
		Category    string
		Subcategory string
	}

	// RawTransaction is the loosely typed shape handed over by data stores
	// and forms: the amount may be a string or a number and the date is text.
	RawTransaction struct {
		ID          string
		Type        string
		Amount      any
		Date        string
		AccountID   string
		Category    string
		Subcategory string
	}

	Account struct {
		ID             string
		Name           string
		InitialBalance decimal.Decimal
		IsActive       bool
		DisplayOrder   int
	}

	// DateRange is inclusive on both ends. A zero From means "since the beginning".
	DateRange struct {
		From Date
		To   Date
	}
)

// ParseTransactionType maps user and store labels onto a TransactionType.
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "venit":
		return Income, nil
	case "expense", "cheltuială", "cheltuiala":
		return Expense, nil
	case "saving", "savings", "economisire", "economii":
		return Saving, nil
	}
	return "", Validationf("unrecognized transaction type %q", s)
}

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case Income, Expense, Saving:
		return true
	}
	return false
}

func (t TransactionType) String() string {
	return string(t)
}

// Normalize resolves the raw shape into a Transaction. Dates must be ISO,
// amounts must parse and be non-negative.
func (r RawTransaction) Normalize() (Transaction, error) {
	typ, err := ParseTransactionType(r.Type)
	if err != nil {
		return Transaction{}, err
	}
	date, err := ParseISODate(r.Date)
	if err != nil {
		return Transaction{}, err
	}
	amount, err := ParseAmount(r.Amount)
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{
		ID:          strings.TrimSpace(r.ID),
		Type:        typ,
		Amount:      amount,
		Date:        date,
		AccountID:   strings.TrimSpace(r.AccountID),
		Category:    strings.TrimSpace(r.Category),
		Subcategory: strings.TrimSpace(r.Subcategory),
	}, nil
}

// Validate checks the invariants the engine relies on.
func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return Validationf("unrecognized transaction type %q", string(t.Type))
	}
	if t.Amount.IsNegative() {
		return Validationf("transaction %s has negative amount %s", t.ID, t.Amount)
	}
	if t.Date.IsZero() {
		return InvalidDatef("transaction %s has no date", t.ID)
	}
	return nil
}

// Contains reports whether d falls inside the range.
func (r DateRange) Contains(d Date) bool {
	if !r.From.IsZero() && d.Before(r.From.Time) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To.Time) {
		return false
	}
	return true
}

// Validate rejects ranges whose end precedes their start.
func (r DateRange) Validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From.Time) {
		return InvalidDatef("date range end %s is before start %s", r.To, r.From)
	}
	return nil
}

// FilterTransactions returns the transactions inside rng, optionally restricted
// to one account. The input slice is not modified.
func FilterTransactions(txs []Transaction, rng DateRange, accountID string) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if accountID != "" && tx.AccountID != accountID {
			continue
		}
		if !rng.Contains(tx.Date) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// nowFunc is swapped in tests.
var nowFunc = time.Now

// Today returns the current calendar day in UTC.
func Today() Date {
	t := nowFunc().UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day())
}
