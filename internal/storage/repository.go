package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/store"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var (
	_ store.TransactionLister = (*SQLiteRepository)(nil)
	_ store.AccountReader     = (*SQLiteRepository)(nil)
	_ store.TransactionWriter = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer keeps SQLite from returning SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListTransactions implements store.TransactionLister
func (r *SQLiteRepository) ListTransactions(ctx context.Context, rng core.DateRange, accountID string) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactions(ctx, ListTransactionsParams{
		From:      rng.From.String(),
		To:        rng.To.String(),
		AccountID: accountID,
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := row.toCore()
		if err != nil {
			slog.WarnContext(ctx, "Skipping unreadable transaction row", "id", row.ID, "error", err)
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

// GetAccount implements store.AccountReader
func (r *SQLiteRepository) GetAccount(ctx context.Context, id string) (*core.Account, error) {
	row, err := r.queries.GetAccount(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	acc, err := row.toCore()
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// ListActiveAccounts implements store.AccountReader
func (r *SQLiteRepository) ListActiveAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.queries.ListActiveAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active accounts: %w", err)
	}
	out := make([]core.Account, 0, len(rows))
	for _, row := range rows {
		acc, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, nil
}

// SaveAccount inserts or replaces an account.
func (r *SQLiteRepository) SaveAccount(ctx context.Context, acc core.Account) error {
	if acc.ID == "" {
		return core.Validationf("account id is required")
	}
	name := acc.Name
	if name == "" {
		name = acc.ID
	}
	err := r.queries.UpsertAccount(ctx, Account{
		ID:             acc.ID,
		Name:           name,
		InitialBalance: acc.InitialBalance.String(),
		IsActive:       acc.IsActive,
		DisplayOrder:   int64(acc.DisplayOrder),
	})
	if err != nil {
		return fmt.Errorf("save account %s: %w", acc.ID, err)
	}
	return nil
}

// CreateTransaction implements store.TransactionWriter
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}

	if _, err := r.queries.GetTransaction(ctx, tx.ID); err == nil {
		return core.Transaction{}, core.Validationf("transaction %s already exists", tx.ID)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("check transaction %s: %w", tx.ID, err)
	}

	if err := r.queries.CreateTransaction(ctx, fromCore(tx)); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"type", tx.Type,
		"amount", tx.Amount.String(),
		"date", tx.Date.String())
	return tx, nil
}

// UpdateTransactionAmount implements store.TransactionWriter
func (r *SQLiteRepository) UpdateTransactionAmount(ctx context.Context, id string, amount decimal.Decimal) (core.Transaction, core.Transaction, error) {
	if amount.IsNegative() {
		return core.Transaction{}, core.Transaction{}, core.Validationf("amount %s cannot be negative", amount)
	}

	var before, after core.Transaction
	err := r.inTx(ctx, func(q *Queries) error {
		row, err := q.GetTransaction(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return core.MissingDataf("transaction %s not found", id)
		}
		if err != nil {
			return fmt.Errorf("get transaction %s: %w", id, err)
		}
		if before, err = row.toCore(); err != nil {
			return err
		}
		if _, err := q.UpdateTransactionAmount(ctx, id, amount.String()); err != nil {
			return fmt.Errorf("update transaction %s: %w", id, err)
		}
		after = before
		after.Amount = amount
		return nil
	})
	if err != nil {
		return core.Transaction{}, core.Transaction{}, err
	}
	return before, after, nil
}

// DeleteTransaction implements store.TransactionWriter
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) (core.Transaction, error) {
	var removed core.Transaction
	err := r.inTx(ctx, func(q *Queries) error {
		row, err := q.GetTransaction(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return core.MissingDataf("transaction %s not found", id)
		}
		if err != nil {
			return fmt.Errorf("get transaction %s: %w", id, err)
		}
		if removed, err = row.toCore(); err != nil {
			return err
		}
		if _, err := q.DeleteTransaction(ctx, id); err != nil {
			return fmt.Errorf("delete transaction %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return removed, nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func fromCore(tx core.Transaction) Transaction {
	return Transaction{
		ID:          tx.ID,
		Type:        string(tx.Type),
		Amount:      tx.Amount.String(),
		Date:        tx.Date.String(),
		AccountID:   tx.AccountID,
		Category:    tx.Category,
		Subcategory: tx.Subcategory,
	}
}

func (t Transaction) toCore() (core.Transaction, error) {
	return core.RawTransaction{
		ID:          t.ID,
		Type:        t.Type,
		Amount:      t.Amount,
		Date:        t.Date,
		AccountID:   t.AccountID,
		Category:    t.Category,
		Subcategory: t.Subcategory,
	}.Normalize()
}

func (a Account) toCore() (core.Account, error) {
	initial, err := core.ParseSignedAmount(a.InitialBalance)
	if err != nil {
		return core.Account{}, fmt.Errorf("account %s initial balance: %w", a.ID, err)
	}
	return core.Account{
		ID:             a.ID,
		Name:           a.Name,
		InitialBalance: initial,
		IsActive:       a.IsActive,
		DisplayOrder:   int(a.DisplayOrder),
	}, nil
}
