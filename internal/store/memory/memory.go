package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/store"
)

const (
	AccountsFile     = "accounts.csv"
	TransactionsFile = "transactions.csv"
)

// Store keeps accounts and transactions in memory.
type Store struct {
	mu       sync.Mutex
	accounts []core.Account
	txs      []core.Transaction
	newID    func() string
}

var (
	_ store.TransactionLister = (*Store)(nil)
	_ store.AccountReader     = (*Store)(nil)
	_ store.TransactionWriter = (*Store)(nil)
)

// DefaultAccount is used when no account data is provided.
func DefaultAccount() core.Account {
	return core.Account{ID: "main", Name: "Main", InitialBalance: decimal.Zero, IsActive: true, DisplayOrder: 1}
}

func New(accounts []core.Account, txs []core.Transaction) *Store {
	if len(accounts) == 0 {
		accounts = []core.Account{DefaultAccount()}
	}
	return &Store{
		accounts: append([]core.Account(nil), accounts...),
		txs:      append([]core.Transaction(nil), txs...),
		newID:    func() string { return uuid.NewString() },
	}
}

// NewFromFiles seeds the store from accounts.csv and transactions.csv in
// base. Missing files leave that part empty; bad rows are logged and skipped.
func NewFromFiles(base string) (*Store, error) {
	accTable, err := readCSV(filepath.Join(base, AccountsFile))
	if err != nil {
		return nil, err
	}
	accounts, accErrs, err := store.ParseAccounts(accTable)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", AccountsFile, err)
	}

	txTable, err := readCSV(filepath.Join(base, TransactionsFile))
	if err != nil {
		return nil, err
	}
	txs, txErrs, err := store.ParseTransactions(txTable)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", TransactionsFile, err)
	}

	for _, e := range accErrs {
		slog.Warn("Skipping account row", "file", AccountsFile, "row", e.Row, "error", e.Err)
	}
	for _, e := range txErrs {
		slog.Warn("Skipping transaction row", "file", TransactionsFile, "row", e.Row, "error", e.Err)
	}
	return New(accounts, txs), nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comment = '#'
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

func (s *Store) ListTransactions(_ context.Context, rng core.DateRange, accountID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.FilterTransactions(s.txs, rng, accountID), nil
}

func (s *Store) GetAccount(_ context.Context, id string) (*core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.ID == id {
			acc := a
			return &acc, nil
		}
	}
	return nil, nil
}

func (s *Store) ListActiveAccounts(_ context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

// CreateTransaction stores tx, assigning a UUID when it has no id.
func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ID == "" {
		tx.ID = s.newID()
	}
	if s.indexOf(tx.ID) >= 0 {
		return core.Transaction{}, core.Validationf("transaction %s already exists", tx.ID)
	}
	s.txs = append(s.txs, tx)
	return tx, nil
}

func (s *Store) UpdateTransactionAmount(_ context.Context, id string, amount decimal.Decimal) (core.Transaction, core.Transaction, error) {
	if amount.IsNegative() {
		return core.Transaction{}, core.Transaction{}, core.Validationf("amount %s cannot be negative", amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Transaction{}, core.Transaction{}, core.MissingDataf("transaction %s not found", id)
	}
	before := s.txs[i]
	s.txs[i].Amount = amount
	return before, s.txs[i], nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Transaction{}, core.MissingDataf("transaction %s not found", id)
	}
	removed := s.txs[i]
	s.txs = append(s.txs[:i], s.txs[i+1:]...)
	return removed, nil
}

func (s *Store) indexOf(id string) int {
	for i, tx := range s.txs {
		if tx.ID == id {
			return i
		}
	}
	return -1
}
