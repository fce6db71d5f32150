package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"saldo/internal/cache"
	"saldo/internal/core"
	"saldo/internal/store"
)

const (
	DefaultTransactionsSheet = "Transactions"
	DefaultAccountsSheet     = "Accounts"
	DefaultSnapshotTTL       = 15 * time.Second

	snapshotKey = "snapshot"
)

// Config selects the spreadsheet and the tabs to read.
type Config struct {
	SpreadsheetID     string
	TransactionsSheet string
	AccountsSheet     string
	// SnapshotTTL bounds how long one read of both tabs is reused. Zero
	// disables reuse.
	SnapshotTTL time.Duration
}

// valuesReader returns the cells of an A1 range.
type valuesReader interface {
	Values(ctx context.Context, a1 string) ([][]interface{}, error)
}

// Client reads transactions and accounts from a Google Sheet. It does not
// implement store.TransactionWriter: edits belong in the sheet itself.
type Client struct {
	values            valuesReader
	transactionsSheet string
	accountsSheet     string
	snapshots         *cache.LRUCache[snapshot]
	logger            *slog.Logger
}

type snapshot struct {
	accounts []core.Account
	txs      []core.Transaction
}

var (
	_ store.TransactionLister = (*Client)(nil)
	_ store.AccountReader     = (*Client)(nil)
)

// NewFromEnv reads GOOGLE_SPREADSHEET_ID, GOOGLE_TRANSACTIONS_SHEET and
// GOOGLE_ACCOUNTS_SHEET, then connects with service account credentials.
func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, Config{
		SpreadsheetID:     strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		TransactionsSheet: strings.TrimSpace(os.Getenv("GOOGLE_TRANSACTIONS_SHEET")),
		AccountsSheet:     strings.TrimSpace(os.Getenv("GOOGLE_ACCOUNTS_SHEET")),
		SnapshotTTL:       DefaultSnapshotTTL,
	})
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(&serviceReader{svc: svc, spreadsheetID: cfg.SpreadsheetID}, cfg), nil
}

func newClient(values valuesReader, cfg Config) *Client {
	if cfg.TransactionsSheet == "" {
		cfg.TransactionsSheet = DefaultTransactionsSheet
	}
	if cfg.AccountsSheet == "" {
		cfg.AccountsSheet = DefaultAccountsSheet
	}
	c := &Client{
		values:            values,
		transactionsSheet: cfg.TransactionsSheet,
		accountsSheet:     cfg.AccountsSheet,
		logger:            slog.Default().With("component", "sheets"),
	}
	if cfg.SnapshotTTL > 0 {
		c.snapshots = cache.NewLRUCache[snapshot](1, cfg.SnapshotTTL)
	}
	return c
}

type serviceReader struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (r *serviceReader) Values(ctx context.Context, a1 string) ([][]interface{}, error) {
	resp, err := r.svc.Spreadsheets.Values.Get(r.spreadsheetID, a1).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// newSheetsService initializes a read-only Sheets service using service
// account credentials from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// newHTTPClientWithPooling keeps a small pool of connections to the Sheets API.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

func (c *Client) ListTransactions(ctx context.Context, rng core.DateRange, accountID string) ([]core.Transaction, error) {
	snap, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return core.FilterTransactions(snap.txs, rng, accountID), nil
}

func (c *Client) GetAccount(ctx context.Context, id string) (*core.Account, error) {
	snap, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range snap.accounts {
		if a.ID == id {
			acc := a
			return &acc, nil
		}
	}
	return nil, nil
}

func (c *Client) ListActiveAccounts(ctx context.Context) ([]core.Account, error) {
	snap, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Account, 0, len(snap.accounts))
	for _, a := range snap.accounts {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

// Refresh drops the current snapshot so the next call reads the sheet again.
func (c *Client) Refresh() {
	if c.snapshots != nil {
		c.snapshots.Clear()
	}
}

func (c *Client) snapshot(ctx context.Context) (snapshot, error) {
	if c.snapshots == nil {
		return c.read(ctx)
	}
	return c.snapshots.GetOrCompute(snapshotKey, 0, func() (snapshot, error) {
		return c.read(ctx)
	})
}

func (c *Client) read(ctx context.Context) (snapshot, error) {
	txRows, err := c.values.Values(ctx, c.transactionsSheet+"!A:G")
	if err != nil {
		return snapshot{}, fmt.Errorf("read %s: %w", c.transactionsSheet, err)
	}
	txs, txErrs, err := store.ParseTransactions(toTable(txRows))
	if err != nil {
		return snapshot{}, fmt.Errorf("sheet %s: %w", c.transactionsSheet, err)
	}

	accRows, err := c.values.Values(ctx, c.accountsSheet+"!A:E")
	if err != nil {
		return snapshot{}, fmt.Errorf("read %s: %w", c.accountsSheet, err)
	}
	accounts, accErrs, err := store.ParseAccounts(toTable(accRows))
	if err != nil {
		return snapshot{}, fmt.Errorf("sheet %s: %w", c.accountsSheet, err)
	}

	for _, e := range append(txErrs, accErrs...) {
		c.logger.WarnContext(ctx, "Skipping sheet row", "row", e.Row, "error", e.Err)
	}
	c.logger.DebugContext(ctx, "Read sheet snapshot",
		"transactions", len(txs),
		"accounts", len(accounts))
	return snapshot{accounts: accounts, txs: txs}, nil
}

func toTable(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		out[i] = toStrings(row)
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
