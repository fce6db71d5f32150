package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "saldo.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestMigrationsSeedMainAccount(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	acc, err := repo.GetAccount(ctx, "main")
	if err != nil || acc == nil {
		t.Fatalf("GetAccount(main) = %v, %v", acc, err)
	}
	if !acc.IsActive || !acc.InitialBalance.IsZero() {
		t.Errorf("main = %+v", acc)
	}

	// Running migrations again is a no-op.
	if err := RunMigrations(filepath.Join(t.TempDir(), "again.db")); err != nil {
		t.Fatalf("RunMigrations error = %v", err)
	}
}

func TestAccounts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SaveAccount(ctx, core.Account{ID: "save", Name: "Savings", InitialBalance: decimal.RequireFromString("250.75"), IsActive: true, DisplayOrder: 0}); err != nil {
		t.Fatal(err)
	}
	if err := repo.SaveAccount(ctx, core.Account{ID: "old", InitialBalance: decimal.NewFromInt(-10), IsActive: false, DisplayOrder: 3}); err != nil {
		t.Fatal(err)
	}
	if err := repo.SaveAccount(ctx, core.Account{}); core.KindOf(err) != core.KindValidation {
		t.Errorf("empty id error = %v", err)
	}

	active, err := repo.ListActiveAccounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 || active[0].ID != "save" || active[1].ID != "main" {
		t.Fatalf("active accounts = %+v", active)
	}
	if !active[0].InitialBalance.Equal(decimal.RequireFromString("250.75")) {
		t.Errorf("initial balance = %s", active[0].InitialBalance)
	}

	old, _ := repo.GetAccount(ctx, "old")
	if old == nil || old.IsActive || old.Name != "old" {
		t.Errorf("old = %+v", old)
	}
	if ghost, err := repo.GetAccount(ctx, "ghost"); ghost != nil || err != nil {
		t.Errorf("GetAccount(ghost) = %v, %v", ghost, err)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seed := []core.Transaction{
		{ID: "a", Type: core.Income, Amount: decimal.NewFromInt(1000), Date: core.NewDate(2024, 2, 1), AccountID: "main"},
		{ID: "b", Type: core.Expense, Amount: decimal.RequireFromString("19.99"), Date: core.NewDate(2024, 2, 14), AccountID: "main", Category: "Gifts"},
		{ID: "c", Type: core.Saving, Amount: decimal.NewFromInt(100), Date: core.NewDate(2024, 3, 1), AccountID: "other"},
	}
	for _, tx := range seed {
		if _, err := repo.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("CreateTransaction(%s) error = %v", tx.ID, err)
		}
	}
	if _, err := repo.CreateTransaction(ctx, seed[0]); core.KindOf(err) != core.KindValidation {
		t.Errorf("duplicate error = %v", err)
	}
	generated, err := repo.CreateTransaction(ctx, core.Transaction{Type: core.Expense, Amount: decimal.NewFromInt(5), Date: core.NewDate(2024, 2, 20)})
	if err != nil || generated.ID == "" {
		t.Fatalf("generated id: %+v, %v", generated, err)
	}

	feb, err := repo.ListTransactions(ctx, core.MonthRange(2024, 2), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(feb) != 3 {
		t.Fatalf("february = %+v", feb)
	}
	if !feb[1].Amount.Equal(decimal.RequireFromString("19.99")) || feb[1].Category != "Gifts" {
		t.Errorf("b round trip = %+v", feb[1])
	}

	other, _ := repo.ListTransactions(ctx, core.DateRange{}, "other")
	if len(other) != 1 || other[0].ID != "c" {
		t.Errorf("account filter = %+v", other)
	}
	upTo, _ := repo.ListTransactions(ctx, core.DateRange{To: core.NewDate(2024, 2, 14)}, "main")
	if len(upTo) != 2 {
		t.Errorf("open start range = %+v", upTo)
	}

	before, after, err := repo.UpdateTransactionAmount(ctx, "b", decimal.RequireFromString("24.5"))
	if err != nil {
		t.Fatal(err)
	}
	if !before.Amount.Equal(decimal.RequireFromString("19.99")) || !after.Amount.Equal(decimal.RequireFromString("24.5")) {
		t.Errorf("before=%s after=%s", before.Amount, after.Amount)
	}
	if _, _, err := repo.UpdateTransactionAmount(ctx, "zzz", decimal.NewFromInt(1)); core.KindOf(err) != core.KindMissingData {
		t.Errorf("missing update error = %v", err)
	}

	removed, err := repo.DeleteTransaction(ctx, "a")
	if err != nil || removed.ID != "a" {
		t.Fatalf("DeleteTransaction = %+v, %v", removed, err)
	}
	if _, err := repo.DeleteTransaction(ctx, "a"); core.KindOf(err) != core.KindMissingData {
		t.Errorf("second delete error = %v", err)
	}

	all, _ := repo.ListTransactions(ctx, core.DateRange{}, "")
	if len(all) != 3 {
		t.Errorf("remaining = %+v", all)
	}
}
