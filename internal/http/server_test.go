package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saldo/internal/core"
	"saldo/internal/services"
	"saldo/internal/store/memory"
)

func testAccounts() []core.Account {
	return []core.Account{
		{ID: "main", Name: "Main", InitialBalance: decimal.NewFromInt(1000), IsActive: true, DisplayOrder: 1},
		{ID: "vault", Name: "Vault", InitialBalance: decimal.NewFromInt(50), IsActive: true, DisplayOrder: 2},
	}
}

func testTransactions() []core.Transaction {
	return []core.Transaction{
		{ID: "t1", Type: core.Income, Amount: decimal.NewFromInt(500), Date: core.NewDate(2024, 1, 10), AccountID: "main", Category: "Salary"},
		{ID: "t2", Type: core.Expense, Amount: decimal.NewFromInt(200), Date: core.NewDate(2024, 1, 15), AccountID: "main", Category: "Food"},
		{ID: "t3", Type: core.Saving, Amount: decimal.NewFromInt(100), Date: core.NewDate(2024, 1, 20), AccountID: "main"},
	}
}

type testEnv struct {
	server *Server
	store  *memory.Store
	svc    *services.BalanceService
}

func newTestEnv(t *testing.T, mutate func(*services.Options, *Options)) testEnv {
	t.Helper()
	st := memory.New(testAccounts(), testTransactions())
	svcOpts := services.DefaultOptions()
	srvOpts := Options{}
	if mutate != nil {
		mutate(&svcOpts, &srvOpts)
	}
	svc := services.NewBalanceService(st, st, svcOpts, nil).WithWriter(st)
	srv := NewServer(":0", svc, srvOpts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return testEnv{server: srv, store: st, svc: svc}
}

func (e testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func requireErrorKind(t *testing.T, w *httptest.ResponseRecorder, status int, kind string) {
	t.Helper()
	require.Equal(t, status, w.Code, "body: %s", w.Body.String())
	body := decode[errorBody](t, w)
	assert.Equal(t, kind, body.Error.Kind)
	assert.NotEmpty(t, body.Error.Message)
	assert.NotEmpty(t, body.Error.RequestID)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestHealthAndHeaders(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.True(t, strings.HasPrefix(w.Header().Get("X-Request-ID"), "req_"))

	w = env.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadinessFailure(t *testing.T) {
	env := newTestEnv(t, func(_ *services.Options, o *Options) {
		o.Ready = func(context.Context) error { return errors.New("database is locked") }
	})

	w := env.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unavailable", decode[map[string]string](t, w)["status"])
}

func TestDailyBalance(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/balance/daily?date=2024-01-15&account=main", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	day := decode[dailyBalanceDTO](t, w)
	assert.Equal(t, "2024-01-15", day.Date)
	assertAmount(t, "1300", day.AvailableBalance)
	assertAmount(t, "0", day.SavingsBalance)
	assertAmount(t, "1300", day.TotalBalance)
	assertAmount(t, "200", day.Breakdown.Expenses)
	require.Len(t, day.Transactions, 1)
	assert.Equal(t, "t2", day.Transactions[0].ID)

	// Localized dates are accepted too.
	w = env.do(t, http.MethodGet, "/api/balance/daily?date=31/01/2024&account=main", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	day = decode[dailyBalanceDTO](t, w)
	assertAmount(t, "1200", day.AvailableBalance)
	assertAmount(t, "100", day.SavingsBalance)
	assertAmount(t, "1300", day.TotalBalance)
	assert.False(t, day.IsNegative)
}

func TestDailyBalanceErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		target string
		status int
		kind   string
	}{
		{"malformed date", "/api/balance/daily?date=yesterday", http.StatusBadRequest, "invalid_date"},
		{"impossible day", "/api/balance/daily?date=2024-02-30", http.StatusBadRequest, "invalid_date"},
		{"unknown account", "/api/balance/daily?date=2024-01-15&account=ghost", http.StatusNotFound, "account_not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireErrorKind(t, env.do(t, http.MethodGet, tt.target, ""), tt.status, tt.kind)
		})
	}
}

func TestMonthlyBalance(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/balance/monthly?year=2024&month=1&account=main", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	p := decode[monthlyProjectionDTO](t, w)
	assert.Equal(t, 2024, p.Year)
	assert.Equal(t, 1, p.Month)
	require.Len(t, p.DailyBalances, 31)
	assertAmount(t, "1000", p.MonthStartBalance)
	assertAmount(t, "1300", p.MonthEndBalance)
	assertAmount(t, "500", p.TotalIncome)
	assertAmount(t, "200", p.TotalExpenses)
	assertAmount(t, "100", p.TotalSavings)

	// February carries January's end balance over.
	w = env.do(t, http.MethodGet, "/api/balance/monthly?year=2024&month=2&account=main", "")
	require.Equal(t, http.StatusOK, w.Code)
	feb := decode[monthlyProjectionDTO](t, w)
	require.Len(t, feb.DailyBalances, 29)
	assertAmount(t, "1300", feb.MonthStartBalance)
	assertAmount(t, "1200", feb.StartAvailable)
	assertAmount(t, "100", feb.StartSavings)

	requireErrorKind(t, env.do(t, http.MethodGet, "/api/balance/monthly?year=2024&month=13", ""), http.StatusBadRequest, "invalid_date")
	requireErrorKind(t, env.do(t, http.MethodGet, "/api/balance/monthly?year=abc&month=1", ""), http.StatusBadRequest, "validation_error")
}

func TestCombinedViewSumsActiveAccounts(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/balance/daily?date=2024-01-01", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assertAmount(t, "1050", decode[dailyBalanceDTO](t, w).TotalBalance)
}

func TestProjection(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/balance/projection?from=2024-01-30&to=2024-02-02&account=main", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	p := decode[projectionDTO](t, w)
	require.Len(t, p.DailyBalances, 4)
	assert.Equal(t, "2024-01-30", p.DailyBalances[0].Date)
	assert.Equal(t, "2024-02-02", p.DailyBalances[3].Date)
	for _, d := range p.DailyBalances {
		assertAmount(t, "1300", d.TotalBalance)
	}

	w = env.do(t, http.MethodGet, "/api/balance/projection?from=2024-01-01&account=main", "")
	require.Equal(t, http.StatusOK, w.Code)
	p = decode[projectionDTO](t, w)
	assert.Len(t, p.DailyBalances, 30)
	assert.Equal(t, "2024-01-30", p.To)

	requireErrorKind(t, env.do(t, http.MethodGet, "/api/balance/projection?from=2024-02-01&to=2024-01-01", ""), http.StatusBadRequest, "invalid_date")
}

func TestAccountsBalance(t *testing.T) {
	disabled := newTestEnv(t, nil)
	requireErrorKind(t, disabled.do(t, http.MethodGet, "/api/balance/accounts?date=2024-01-31", ""), http.StatusBadRequest, "validation_error")

	env := newTestEnv(t, func(o *services.Options, _ *Options) { o.EnableMultiAccount = true })
	w := env.do(t, http.MethodGet, "/api/balance/accounts?date=2024-01-31", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[accountsBalanceDTO](t, w)
	assert.Equal(t, "2024-01-31", res.Date)
	require.Len(t, res.Accounts, 2)
	assert.Equal(t, "main", res.Accounts[0].AccountID)
	assertAmount(t, "1300", res.Accounts[0].Balance)
	assert.Equal(t, "vault", res.Accounts[1].AccountID)
	assertAmount(t, "50", res.Accounts[1].Balance)
}

func TestListTransactions(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/transactions?from=2024-01-01&to=2024-01-31&account=main&limit=2", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page := decode[transactionPageDTO](t, w)
	assert.Equal(t, 3, page.Total)
	assert.True(t, page.HasMore)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "t3", page.Items[0].ID, "newest first")
	assertAmount(t, "100", page.Items[0].Amount)

	w = env.do(t, http.MethodGet, "/api/transactions?offset=2&limit=2&account=main", "")
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[transactionPageDTO](t, w)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "t1", page.Items[0].ID)
	assert.False(t, page.HasMore)

	requireErrorKind(t, env.do(t, http.MethodGet, "/api/transactions?offset=abc", ""), http.StatusBadRequest, "validation_error")
	requireErrorKind(t, env.do(t, http.MethodGet, "/api/transactions?offset=-1", ""), http.StatusBadRequest, "validation_error")
}

func TestUpdateAmountInvalidatesBalances(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/balance/daily?date=2024-01-31&account=main", "")
	require.Equal(t, http.StatusOK, w.Code)
	assertAmount(t, "1300", decode[dailyBalanceDTO](t, w).TotalBalance)

	w = env.do(t, http.MethodPatch, "/api/transactions/t2/amount", `{"amount": "250,50"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tx := decode[transactionDTO](t, w)
	assert.Equal(t, "t2", tx.ID)
	assertAmount(t, "250.5", tx.Amount)

	w = env.do(t, http.MethodGet, "/api/balance/daily?date=2024-01-31&account=main", "")
	require.Equal(t, http.StatusOK, w.Code)
	assertAmount(t, "1249.5", decode[dailyBalanceDTO](t, w).TotalBalance)

	// Numbers are accepted as well as strings.
	w = env.do(t, http.MethodPatch, "/api/transactions/t2/amount", `{"amount": 0.1}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assertAmount(t, "0.1", decode[transactionDTO](t, w).Amount)
}

func TestUpdateAmountErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		target string
		body   string
		status int
		kind   string
	}{
		{"negative amount", "/api/transactions/t2/amount", `{"amount": "-5"}`, http.StatusBadRequest, "validation_error"},
		{"not a number", "/api/transactions/t2/amount", `{"amount": "lots"}`, http.StatusBadRequest, "validation_error"},
		{"missing amount", "/api/transactions/t2/amount", `{}`, http.StatusBadRequest, "validation_error"},
		{"unknown field", "/api/transactions/t2/amount", `{"amount": 1, "note": "x"}`, http.StatusBadRequest, "validation_error"},
		{"malformed body", "/api/transactions/t2/amount", `{"amount":`, http.StatusBadRequest, "validation_error"},
		{"unknown transaction", "/api/transactions/zzz/amount", `{"amount": 1}`, http.StatusUnprocessableEntity, "missing_data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireErrorKind(t, env.do(t, http.MethodPatch, tt.target, tt.body), tt.status, tt.kind)
		})
	}
}

func TestCreateAndDeleteTransaction(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/transactions",
		`{"type": "expense", "amount": "10.25", "date": "16/01/2024", "account_id": "main", "category": " Books "}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[transactionDTO](t, w)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "/api/transactions/"+created.ID, w.Header().Get("Location"))
	assert.Equal(t, "2024-01-16", created.Date)
	assert.Equal(t, "Books", created.Category)

	w = env.do(t, http.MethodGet, "/api/balance/daily?date=2024-01-16&account=main", "")
	require.Equal(t, http.StatusOK, w.Code)
	assertAmount(t, "1289.75", decode[dailyBalanceDTO](t, w).TotalBalance)

	w = env.do(t, http.MethodDelete, "/api/transactions/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, created.ID, decode[transactionDTO](t, w).ID)

	w = env.do(t, http.MethodGet, "/api/balance/daily?date=2024-01-16&account=main", "")
	assertAmount(t, "1300", decode[dailyBalanceDTO](t, w).TotalBalance)

	requireErrorKind(t, env.do(t, http.MethodDelete, "/api/transactions/"+created.ID, ""), http.StatusUnprocessableEntity, "missing_data")
	requireErrorKind(t, env.do(t, http.MethodPost, "/api/transactions", `{"type": "gift", "amount": 1, "date": "2024-01-16"}`), http.StatusBadRequest, "validation_error")
	requireErrorKind(t, env.do(t, http.MethodPost, "/api/transactions", `{"type": "income", "amount": 1, "date": "2024-13-01"}`), http.StatusBadRequest, "invalid_date")
	requireErrorKind(t, env.do(t, http.MethodPost, "/api/transactions", `{"type": "income", "amount": 1, "account_id": "ghost"}`), http.StatusNotFound, "account_not_found")
}

func TestCacheEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/balance/monthly?year=2024&month=1&account=main", "").Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/balance/monthly?year=2024&month=3&account=main", "").Code)

	w := env.do(t, http.MethodGet, "/api/cache/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[cacheStatsDTO](t, w)
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, 50, stats.MaxEntries)
	assert.Equal(t, 30.0, stats.TimeoutSeconds)

	// A change in March cannot affect January.
	w = env.do(t, http.MethodPost, "/api/cache/invalidate?from=2024-03-01&to=2024-03-31", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	inv := decode[invalidationDTO](t, w)
	assert.Equal(t, 1, inv.Removed)
	assert.Equal(t, "2024-03-01", inv.From)

	w = env.do(t, http.MethodPost, "/api/cache/invalidate", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[invalidationDTO](t, w).Removed)

	w = env.do(t, http.MethodPost, "/api/cache/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[invalidationDTO](t, w).Removed)

	requireErrorKind(t, env.do(t, http.MethodPost, "/api/cache/invalidate?from=junk", ""), http.StatusBadRequest, "invalid_date")
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(_ *services.Options, o *Options) { o.RateLimitPerMinute = 2 })

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/cache/stats", "").Code)
	}
	w := env.do(t, http.MethodGet, "/api/cache/stats", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decode[errorBody](t, w).Error.Kind)

	// Probes are never limited.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", "").Code)
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodPut, "/api/cache/stats", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestReadOnlyBackendRejectsEdits(t *testing.T) {
	st := memory.New(testAccounts(), testTransactions())
	svc := services.NewBalanceService(st, st, services.DefaultOptions(), nil)
	srv := NewServer(":0", svc, Options{})
	env := testEnv{server: srv, store: st, svc: svc}

	requireErrorKind(t, env.do(t, http.MethodPatch, "/api/transactions/t2/amount", `{"amount": 1}`), http.StatusBadRequest, "validation_error")
}
