package store

import (
	"context"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionLister returns the transactions inside rng, already filtered
	// to accountID when it is not empty. Order is not significant.
	TransactionLister interface {
		ListTransactions(ctx context.Context, rng core.DateRange, accountID string) ([]core.Transaction, error)
	}

	// AccountReader exposes the account settings. GetAccount returns
	// (nil, nil) when the id is unknown.
	AccountReader interface {
		GetAccount(ctx context.Context, id string) (*core.Account, error)
		ListActiveAccounts(ctx context.Context) ([]core.Account, error)
	}

	// TransactionWriter is implemented by backends that accept edits.
	TransactionWriter interface {
		CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		// UpdateTransactionAmount returns the transaction before and after the change.
		UpdateTransactionAmount(ctx context.Context, id string, amount decimal.Decimal) (before, after core.Transaction, err error)
		DeleteTransaction(ctx context.Context, id string) (core.Transaction, error)
	}
)
