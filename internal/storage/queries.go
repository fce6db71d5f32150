package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Account and Transaction mirror the table rows. Amounts and dates are
// kept as text so no precision is lost on the way in or out.
type Account struct {
	ID             string
	Name           string
	InitialBalance string
	IsActive       bool
	DisplayOrder   int64
}

type Transaction struct {
	ID          string
	Type        string
	Amount      string
	Date        string
	AccountID   string
	Category    string
	Subcategory string
}

const transactionColumns = `id, type, amount, date, account_id, category, subcategory`

const getAccount = `SELECT id, name, initial_balance, is_active, display_order FROM accounts WHERE id = ?`

func (q *Queries) GetAccount(ctx context.Context, id string) (Account, error) {
	row := q.db.QueryRowContext(ctx, getAccount, id)
	var a Account
	err := row.Scan(&a.ID, &a.Name, &a.InitialBalance, &a.IsActive, &a.DisplayOrder)
	return a, err
}

const listActiveAccounts = `SELECT id, name, initial_balance, is_active, display_order
FROM accounts WHERE is_active = 1 ORDER BY display_order, id`

func (q *Queries) ListActiveAccounts(ctx context.Context) ([]Account, error) {
	rows, err := q.db.QueryContext(ctx, listActiveAccounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Name, &a.InitialBalance, &a.IsActive, &a.DisplayOrder); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertAccount = `INSERT INTO accounts (id, name, initial_balance, is_active, display_order)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    initial_balance = excluded.initial_balance,
    is_active = excluded.is_active,
    display_order = excluded.display_order`

func (q *Queries) UpsertAccount(ctx context.Context, a Account) error {
	_, err := q.db.ExecContext(ctx, upsertAccount, a.ID, a.Name, a.InitialBalance, a.IsActive, a.DisplayOrder)
	return err
}

// Dates are ISO text, so lexical comparison matches calendar order.
const listTransactions = `SELECT ` + transactionColumns + ` FROM transactions
WHERE (? = '' OR date >= ?)
  AND (? = '' OR date <= ?)
  AND (? = '' OR account_id = ?)
ORDER BY date, id`

type ListTransactionsParams struct {
	From      string
	To        string
	AccountID string
}

func (q *Queries) ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions,
		arg.From, arg.From, arg.To, arg.To, arg.AccountID, arg.AccountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var t Transaction
		if err := scanTransaction(rows, &t); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	var t Transaction
	err := scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id), &t)
	return t, err
}

const createTransaction = `INSERT INTO transactions (` + transactionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateTransaction(ctx context.Context, t Transaction) error {
	_, err := q.db.ExecContext(ctx, createTransaction,
		t.ID, t.Type, t.Amount, t.Date, t.AccountID, t.Category, t.Subcategory)
	return err
}

const updateTransactionAmount = `UPDATE transactions
SET amount = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

func (q *Queries) UpdateTransactionAmount(ctx context.Context, id, amount string) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTransactionAmount, amount, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(s scanner, t *Transaction) error {
	return s.Scan(&t.ID, &t.Type, &t.Amount, &t.Date, &t.AccountID, &t.Category, &t.Subcategory)
}
