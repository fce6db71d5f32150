package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{}, false}, // zero time
		{NewDate(1800, 1, 1), false},
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseTransactionType(t *testing.T) {
	cases := []struct {
		in   string
		want TransactionType
		ok   bool
	}{
		{"income", Income, true},
		{" Expense ", Expense, true},
		{"SAVING", Saving, true},
		{"venit", Income, true},
		{"cheltuială", Expense, true},
		{"economisire", Saving, true},
		{"transfer", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseTransactionType(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("%q expected %q, got %q (err=%v)", tc.in, tc.want, got, err)
			}
			continue
		}
		if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("%q expected validation error, got %v", tc.in, err)
		}
	}
}

func TestRawTransactionNormalize(t *testing.T) {
	raw := RawTransaction{
		ID:          " t1 ",
		Type:        "expense",
		Amount:      "12,50",
		Date:        "2024-03-05",
		AccountID:   "acc",
		Category:    "Casa",
		Subcategory: "Internet",
	}
	tx, err := raw.Normalize()
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if tx.ID != "t1" || tx.Type != Expense || tx.Date != NewDate(2024, 3, 5) {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
	if !tx.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected amount: %s", tx.Amount)
	}

	bads := []RawTransaction{
		{Type: "expense", Amount: "1", Date: "05/03/2024"}, // not ISO
		{Type: "expense", Amount: "-1", Date: "2024-03-05"},
		{Type: "expense", Amount: "abc", Date: "2024-03-05"},
		{Type: "gift", Amount: "1", Date: "2024-03-05"},
	}
	for i, r := range bads {
		if _, err := r.Normalize(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateRangeContains(t *testing.T) {
	rng := DateRange{From: NewDate(2024, 1, 10), To: NewDate(2024, 1, 20)}
	if !rng.Contains(NewDate(2024, 1, 10)) || !rng.Contains(NewDate(2024, 1, 20)) {
		t.Fatal("range must be inclusive")
	}
	if rng.Contains(NewDate(2024, 1, 9)) || rng.Contains(NewDate(2024, 1, 21)) {
		t.Fatal("range must exclude outside days")
	}
	open := DateRange{To: NewDate(2024, 1, 20)}
	if !open.Contains(NewDate(1990, 1, 1)) {
		t.Fatal("zero From must be unbounded")
	}
	if err := (DateRange{From: NewDate(2024, 2, 1), To: NewDate(2024, 1, 1)}).Validate(); err == nil {
		t.Fatal("expected inverted range to fail")
	}
}

func TestFilterTransactions(t *testing.T) {
	txs := []Transaction{
		{ID: "a", AccountID: "x", Date: NewDate(2024, 1, 1)},
		{ID: "b", AccountID: "y", Date: NewDate(2024, 1, 2)},
		{ID: "c", AccountID: "x", Date: NewDate(2024, 2, 1)},
	}
	got := FilterTransactions(txs, MonthRange(2024, 1), "x")
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("unexpected filter result: %+v", got)
	}
	if all := FilterTransactions(txs, DateRange{}, ""); len(all) != 3 {
		t.Fatalf("expected all transactions, got %d", len(all))
	}
}

func TestErrorKinds(t *testing.T) {
	err := AccountNotFoundf("account %s not found", "x")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatal("expected account not found kind")
	}
	if errors.Is(err, ErrInvalidDate) {
		t.Fatal("kinds must not match across types")
	}
	wrapped := WrapCalculation(errors.New("boom"), "month %d", 3)
	if KindOf(wrapped) != KindCalculation {
		t.Fatalf("expected calculation kind, got %q", KindOf(wrapped))
	}
	if KindOf(WrapCalculation(err, "ignored")) != KindAccountNotFound {
		t.Fatal("typed errors must pass through unchanged")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatal("untyped errors have no kind")
	}
}
