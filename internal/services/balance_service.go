package services

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/amqp"
	"saldo/internal/balance"
	"saldo/internal/cache"
	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/store"
)

const (
	defaultPageSize   = 50
	maxPageSize       = 500
	maxProjectionDays = 3660
)

// Options mirrors the engine configuration.
type Options struct {
	EnableMultiAccount     bool
	EnableMonthlyTransfers bool
	CacheTimeout           time.Duration
	DefaultAccountID       string
	MaxCacheEntries        int
	TrackInvestments       bool
	// Debug runs every freshly computed series through the validator.
	Debug bool
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		EnableMonthlyTransfers: true,
		CacheTimeout:           30 * time.Second,
		MaxCacheEntries:        50,
	}
}

// ChangePublisher broadcasts transaction changes to other instances.
type ChangePublisher interface {
	PublishTransactionChanged(ctx context.Context, msg amqp.TransactionChangedMessage) error
}

// CacheStats extends the cache counters with the configured limits.
type CacheStats struct {
	cache.Stats
	MaxEntries int
	Timeout    time.Duration
}

// TransactionPage is one page of a transaction listing, newest first.
type TransactionPage struct {
	Items   []core.Transaction
	Total   int
	Offset  int
	Limit   int
	HasMore bool
}

type entryKind int

const (
	entryBalance entryKind = iota
	entryPage
)

// cacheEntry wraps every cached value with what it depends on, so
// mutations can drop exactly the entries they affect.
type cacheEntry struct {
	kind   entryKind
	rng    core.DateRange
	scope  scope
	offset int
	ids    map[string]struct{}
	value  any
}

// dependsOnDate reports whether a change on d can alter the entry. Balance
// entries depend on every transaction up to their last day.
func (e cacheEntry) dependsOnDate(d core.Date) bool {
	return e.rng.To.IsZero() || !e.rng.To.Before(d.Time)
}

func (e cacheEntry) overlaps(rng core.DateRange) bool {
	if !rng.To.IsZero() && !e.rng.From.IsZero() && e.rng.From.After(rng.To.Time) {
		return false
	}
	return rng.From.IsZero() || e.dependsOnDate(rng.From)
}

func (e cacheEntry) hasTransaction(id string) bool {
	_, ok := e.ids[id]
	return ok
}

// BalanceService is the public surface of the projection engine: it resolves
// accounts, reads through the store ports, caches results and keeps the
// cache consistent with transaction changes.
type BalanceService struct {
	transactions store.TransactionLister
	accounts     store.AccountReader
	writer       store.TransactionWriter
	publisher    ChangePublisher

	agg    *balance.Aggregator
	cache  *cache.LRUCache[cacheEntry]
	opts   Options
	logger *log.Logger
	events *log.StructuredLogger
}

// NewBalanceService wires the engine over the given ports.
func NewBalanceService(transactions store.TransactionLister, accounts store.AccountReader, opts Options, logger *log.Logger, cacheOpts ...cache.Option) *BalanceService {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentBalance)
	if opts.MaxCacheEntries <= 0 {
		opts.MaxCacheEntries = DefaultOptions().MaxCacheEntries
	}
	if opts.CacheTimeout <= 0 {
		opts.CacheTimeout = DefaultOptions().CacheTimeout
	}
	agg := balance.NewAggregator(transactions, accounts, balance.AggregatorOptions{
		EnableMonthlyTransfers: opts.EnableMonthlyTransfers,
		TrackInvestments:       opts.TrackInvestments,
	}, logger.Slog())

	return &BalanceService{
		transactions: transactions,
		accounts:     accounts,
		agg:          agg,
		cache:        cache.NewLRUCache[cacheEntry](opts.MaxCacheEntries, opts.CacheTimeout, cacheOpts...),
		opts:         opts,
		logger:       logger,
		events:       log.NewStructuredLogger(logger),
	}
}

// WithWriter enables the edit operations.
func (s *BalanceService) WithWriter(w store.TransactionWriter) *BalanceService {
	s.writer = w
	return s
}

// WithPublisher broadcasts every local edit.
func (s *BalanceService) WithPublisher(p ChangePublisher) *BalanceService {
	s.publisher = p
	return s
}

// Cache exposes the cache for the periodic sweeper.
func (s *BalanceService) Cache() cache.Cleaner {
	return s.cache
}

// Options returns the effective options.
func (s *BalanceService) Options() Options {
	return s.opts
}

// scope is the account view a query runs against. The combined view has an
// empty account id and is seeded with the sum of active initial balances.
type scope struct {
	account core.Account
}

func (sc scope) key() string {
	if sc.account.ID == "" {
		return "all"
	}
	return sc.account.ID
}

func (s *BalanceService) resolveScope(ctx context.Context, accountID string) (scope, error) {
	id := strings.TrimSpace(accountID)
	if id == "" {
		id = s.opts.DefaultAccountID
	}
	if id != "" {
		acc, err := s.agg.ResolveAccount(ctx, id)
		if err != nil {
			return scope{}, err
		}
		return scope{account: acc}, nil
	}

	accounts, err := s.accounts.ListActiveAccounts(ctx)
	if err != nil {
		return scope{}, core.WrapCalculation(err, "list active accounts")
	}
	initial := decimal.Zero
	for _, a := range accounts {
		if a.IsActive {
			initial = initial.Add(a.InitialBalance)
		}
	}
	return scope{account: core.Account{Name: "All accounts", InitialBalance: initial, IsActive: true}}, nil
}

// CalculateDailyBalance returns the snapshot at the end of date. The date
// may be ISO or DD/MM/YYYY.
func (s *BalanceService) CalculateDailyBalance(ctx context.Context, date string, accountID string) (core.DailyBalance, error) {
	d, err := core.ParseDate(date)
	if err != nil {
		return core.DailyBalance{}, err
	}
	p, err := s.MonthlyProjection(ctx, d.Month(), d.Year(), accountID)
	if err != nil {
		return core.DailyBalance{}, err
	}
	day, ok := core.FindDay(p.DailyBalances, d)
	if !ok {
		return core.DailyBalance{}, core.Calculationf("no snapshot for %s", d)
	}
	return day, nil
}

// CalculateMonthlyBalance returns one snapshot per calendar day of the month.
func (s *BalanceService) CalculateMonthlyBalance(ctx context.Context, month, year int, accountID string) ([]core.DailyBalance, error) {
	p, err := s.MonthlyProjection(ctx, month, year, accountID)
	if err != nil {
		return nil, err
	}
	return p.DailyBalances, nil
}

// MonthlyProjection returns the full projection of a month, cached by
// month, account, month-start seed and the fingerprint of the month's
// transactions. The seed is part of the key so that changes in earlier
// months, edits made behind the service included, never serve a stale
// carry-over.
func (s *BalanceService) MonthlyProjection(ctx context.Context, month, year int, accountID string) (core.MonthlyProjection, error) {
	if err := core.ValidateYearMonth(year, month); err != nil {
		return core.MonthlyProjection{}, err
	}
	sc, err := s.resolveScope(ctx, accountID)
	if err != nil {
		return core.MonthlyProjection{}, err
	}

	rng := core.MonthRange(year, month)
	txs, err := s.transactions.ListTransactions(ctx, rng, sc.account.ID)
	if err != nil {
		return core.MonthlyProjection{}, core.WrapCalculation(err, "list transactions for %04d-%02d", year, month)
	}
	txs = core.FilterTransactions(txs, rng, sc.account.ID)
	seed, err := s.agg.StartingSeed(ctx, sc.account, year, month)
	if err != nil {
		return core.MonthlyProjection{}, err
	}

	key := monthKey(year, month, sc, seed, txs)
	entry, err := s.cache.GetOrCompute(key, s.opts.CacheTimeout, func() (cacheEntry, error) {
		p, err := s.agg.Calculator().MonthProjection(year, month, txs, seed)
		if err != nil {
			return cacheEntry{}, err
		}
		s.checkConsistency(ctx, p.DailyBalances, log.NewFields().WithMonth(year, month).WithAccount(sc.account.ID))
		s.logger.DebugContext(ctx, "Month projection computed",
			log.NewFields().WithMonth(year, month).WithAccount(sc.account.ID).WithCacheKey(key).ToSlice()...)
		return cacheEntry{kind: entryBalance, rng: rng, scope: sc, value: p}, nil
	})
	if err != nil {
		return core.MonthlyProjection{}, err
	}
	return cloneProjection(entry.value.(core.MonthlyProjection)), nil
}

func monthKey(year, month int, sc scope, seed balance.Seed, txs []core.Transaction) string {
	return cache.Key("balance", "month", year, month, sc.key(), seed.Available, seed.Savings, cache.Fingerprint(txs))
}

// cloneProjection copies the slices of a cached projection so callers
// cannot change the cached value.
func cloneProjection(p core.MonthlyProjection) core.MonthlyProjection {
	days := make([]core.DailyBalance, len(p.DailyBalances))
	for i, d := range p.DailyBalances {
		d.Transactions = slices.Clone(d.Transactions)
		days[i] = d
	}
	p.DailyBalances = days
	return p
}

// GetBalanceProjection returns one snapshot per day of [from, to], assembled
// from the month projections it spans.
func (s *BalanceService) GetBalanceProjection(ctx context.Context, from, to string, accountID string) ([]core.DailyBalance, error) {
	start, err := core.ParseDate(from)
	if err != nil {
		return nil, err
	}
	end, err := core.ParseDate(to)
	if err != nil {
		return nil, err
	}
	rng := core.DateRange{From: start, To: end}
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	if days := int(end.Sub(start.Time).Hours()/24) + 1; days > maxProjectionDays {
		return nil, core.Validationf("projection spans %d days, at most %d allowed", days, maxProjectionDays)
	}

	var out []core.DailyBalance
	for m := start.MonthStart(); !m.After(end.Time); m = m.MonthEnd().AddDays(1) {
		p, err := s.MonthlyProjection(ctx, m.Month(), m.Year(), accountID)
		if err != nil {
			return nil, err
		}
		for _, d := range p.DailyBalances {
			if rng.Contains(d.Date) {
				out = append(out, d)
			}
		}
	}
	return out, nil
}

// GetAllAccountsBalance returns the balance of every active account on date.
func (s *BalanceService) GetAllAccountsBalance(ctx context.Context, date string) ([]core.AccountDailyBalance, error) {
	if !s.opts.EnableMultiAccount {
		return nil, core.Validationf("multi-account balances are disabled")
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return nil, err
	}
	accounts, err := s.accounts.ListActiveAccounts(ctx)
	if err != nil {
		return nil, core.WrapCalculation(err, "list active accounts")
	}
	upTo := core.DateRange{To: d}
	txs, err := s.transactions.ListTransactions(ctx, upTo, "")
	if err != nil {
		return nil, core.WrapCalculation(err, "list transactions up to %s", d)
	}
	txs = core.FilterTransactions(txs, upTo, "")

	key := cache.Key("balance", "accounts", d, cache.AccountsFingerprint(accounts), cache.Fingerprint(txs))
	// Callers joining the flight must not inherit the first caller's cancellation.
	flightCtx := context.WithoutCancel(ctx)
	entry, err := s.cache.GetOrCompute(key, s.opts.CacheTimeout, func() (cacheEntry, error) {
		rows, err := s.agg.AllAccountsBalance(flightCtx, d)
		if err != nil {
			return cacheEntry{}, err
		}
		return cacheEntry{kind: entryBalance, rng: core.DateRange{To: d}, value: rows}, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(entry.value.([]core.AccountDailyBalance)), nil
}

// ListTransactions returns one page of the transactions in rng, newest first.
func (s *BalanceService) ListTransactions(ctx context.Context, rng core.DateRange, accountID string, offset, limit int) (TransactionPage, error) {
	if err := rng.Validate(); err != nil {
		return TransactionPage{}, err
	}
	if offset < 0 {
		return TransactionPage{}, core.Validationf("offset cannot be negative")
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	sc, err := s.resolveScope(ctx, accountID)
	if err != nil {
		return TransactionPage{}, err
	}

	key := cache.Key("tx", "page", rng.From, rng.To, sc.key(), offset, limit)
	flightCtx := context.WithoutCancel(ctx)
	entry, err := s.cache.GetOrCompute(key, s.opts.CacheTimeout, func() (cacheEntry, error) {
		txs, err := s.transactions.ListTransactions(flightCtx, rng, sc.account.ID)
		if err != nil {
			return cacheEntry{}, core.WrapCalculation(err, "list transactions")
		}
		txs = core.FilterTransactions(txs, rng, sc.account.ID)
		sort.SliceStable(txs, func(i, j int) bool {
			if txs[i].Date != txs[j].Date {
				return txs[i].Date.After(txs[j].Date.Time)
			}
			return txs[i].ID < txs[j].ID
		})

		page := TransactionPage{Total: len(txs), Offset: offset, Limit: limit}
		if offset < len(txs) {
			end := min(offset+limit, len(txs))
			page.Items = txs[offset:end]
			page.HasMore = end < len(txs)
		}
		ids := make(map[string]struct{}, len(page.Items))
		for _, tx := range page.Items {
			ids[tx.ID] = struct{}{}
		}
		return cacheEntry{kind: entryPage, rng: rng, offset: offset, ids: ids, value: page}, nil
	})
	if err != nil {
		return TransactionPage{}, err
	}
	page := entry.value.(TransactionPage)
	page.Items = slices.Clone(page.Items)
	return page, nil
}

// InvalidateCache drops the entries a change inside rng can affect, or
// everything when rng is nil. It returns how many entries were removed.
func (s *BalanceService) InvalidateCache(ctx context.Context, rng *core.DateRange) int {
	if rng == nil {
		n := s.cache.Clear()
		s.events.LogInvalidation(ctx, "manual clear", n, log.NewFields())
		return n
	}
	r := *rng
	n := s.cache.InvalidateWhere(func(_ string, e cacheEntry) bool {
		if e.kind == entryBalance {
			return r.From.IsZero() || e.dependsOnDate(r.From)
		}
		return e.overlaps(r)
	})
	s.events.LogInvalidation(ctx, "date range", n, log.NewFields().WithRange(r))
	return n
}

// RefreshBalances drops every cached balance, keeps transaction pages, and
// recomputes the current month of the default view.
func (s *BalanceService) RefreshBalances(ctx context.Context) int {
	n := s.cache.InvalidateWhere(func(_ string, e cacheEntry) bool {
		return e.kind == entryBalance
	})
	s.events.LogInvalidation(ctx, "refresh", n, log.NewFields())

	today := core.Today()
	if _, err := s.MonthlyProjection(ctx, today.Month(), today.Year(), ""); err != nil {
		s.logger.WarnContext(ctx, "Failed to warm current month after refresh",
			log.NewFields().WithMonth(today.Year(), today.Month()).WithError(err).ToSlice()...)
	}
	return n
}

// GetCacheStats returns a snapshot of the cache counters.
func (s *BalanceService) GetCacheStats() CacheStats {
	return CacheStats{
		Stats:      s.cache.Stats(),
		MaxEntries: s.opts.MaxCacheEntries,
		Timeout:    s.opts.CacheTimeout,
	}
}

// TransactionCreated drops the first page of every listing and the balances
// on or after the transaction's date.
func (s *BalanceService) TransactionCreated(ctx context.Context, tx core.Transaction) int {
	n := s.cache.InvalidateWhere(func(_ string, e cacheEntry) bool {
		if e.kind == entryPage {
			return e.offset == 0
		}
		return e.dependsOnDate(tx.Date)
	})
	s.events.LogInvalidation(ctx, "transaction created", n, log.NewFields().WithTransaction(tx))
	return n
}

// TransactionUpdated drops the pages holding the transaction and the
// balances on or after the earlier of its old and new dates.
func (s *BalanceService) TransactionUpdated(ctx context.Context, before, after core.Transaction) int {
	n, _ := s.transactionUpdated(ctx, before, after)
	return n
}

// staleMonth is a month projection dropped by an edit, kept with its key
// so the edit can patch it instead of recomputing the month.
type staleMonth struct {
	key   string
	entry cacheEntry
}

func (s *BalanceService) transactionUpdated(ctx context.Context, before, after core.Transaction) (int, []staleMonth) {
	earliest := after.Date
	if !before.Date.IsZero() && (earliest.IsZero() || before.Date.Before(earliest.Time)) {
		earliest = before.Date
	}
	var stale []staleMonth
	n := s.cache.InvalidateWhere(func(key string, e cacheEntry) bool {
		if e.kind == entryPage {
			return e.hasTransaction(after.ID)
		}
		if !earliest.IsZero() && !e.dependsOnDate(earliest) {
			return false
		}
		if _, ok := e.value.(core.MonthlyProjection); ok && e.rng.Contains(before.Date) && e.rng.Contains(after.Date) &&
			(e.scope.account.ID == "" || e.scope.account.ID == after.AccountID) {
			stale = append(stale, staleMonth{key: key, entry: e})
		}
		return true
	})
	s.events.LogInvalidation(ctx, "transaction updated", n, log.NewFields().WithTransaction(after))
	return n, stale
}

// patchMonths recalculates the dropped projections of the edited month from
// the edit's day onward and caches them under their new key. A projection
// that no longer matches the store apart from the edit is left to the next
// read.
func (s *BalanceService) patchMonths(ctx context.Context, stale []staleMonth, before, after core.Transaction) {
	from := after.Date
	if before.Date.Before(from.Time) {
		from = before.Date
	}
	for _, sm := range stale {
		p := sm.entry.value.(core.MonthlyProjection)
		sc := sm.entry.scope
		fields := log.NewFields().WithMonth(p.Year, p.Month).WithAccount(sc.account.ID)

		txs, err := s.transactions.ListTransactions(ctx, sm.entry.rng, sc.account.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to list transactions for month patch", fields.WithError(err).ToSlice()...)
			continue
		}
		txs = core.FilterTransactions(txs, sm.entry.rng, sc.account.ID)

		seed := balance.Seed{Available: p.StartAvailable, Savings: p.StartSavings}
		if monthKey(p.Year, p.Month, sc, seed, withTransaction(txs, before)) != sm.key {
			continue
		}
		patched, err := s.agg.Calculator().RecalculateMonth(p, from, txs)
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to patch month projection", fields.WithError(err).ToSlice()...)
			continue
		}
		s.checkConsistency(ctx, patched.DailyBalances, fields)
		s.cache.Set(monthKey(p.Year, p.Month, sc, seed, txs), cacheEntry{kind: entryBalance, rng: sm.entry.rng, scope: sc, value: patched})
		s.logger.DebugContext(ctx, "Month projection patched", fields.WithDate(from).ToSlice()...)
	}
}

// withTransaction returns a copy of txs with the transaction sharing tx's id
// replaced by tx.
func withTransaction(txs []core.Transaction, tx core.Transaction) []core.Transaction {
	out := slices.Clone(txs)
	for i := range out {
		if out[i].ID == tx.ID {
			out[i] = tx
		}
	}
	return out
}

// TransactionDeleted drops the pages holding the transaction and the
// balances on or after its date.
func (s *BalanceService) TransactionDeleted(ctx context.Context, tx core.Transaction) int {
	n := s.cache.InvalidateWhere(func(_ string, e cacheEntry) bool {
		if e.kind == entryPage {
			return e.hasTransaction(tx.ID)
		}
		return tx.Date.IsZero() || e.dependsOnDate(tx.Date)
	})
	s.events.LogInvalidation(ctx, "transaction deleted", n, log.NewFields().WithTransaction(tx))
	return n
}

func (s *BalanceService) requireWriter() error {
	if s.writer == nil {
		return core.Validationf("the configured backend is read-only")
	}
	return nil
}

// SaveTransactionAmount changes the amount of one transaction. The amount is
// parsed strictly and must not be negative.
func (s *BalanceService) SaveTransactionAmount(ctx context.Context, id string, amount any) (core.Transaction, error) {
	if err := s.requireWriter(); err != nil {
		return core.Transaction{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Transaction{}, core.Validationf("transaction id is required")
	}
	amt, err := core.ParseAmount(amount)
	if err != nil {
		return core.Transaction{}, &core.Error{Kind: core.KindValidation, Message: "invalid amount", Err: err}
	}

	before, after, err := s.writer.UpdateTransactionAmount(ctx, id, amt)
	if err != nil {
		return core.Transaction{}, err
	}
	_, stale := s.transactionUpdated(ctx, before, after)
	s.patchMonths(ctx, stale, before, after)
	s.publish(ctx, amqp.NewTransactionChanged(amqp.EventUpdated, after, before.Date))
	return after, nil
}

// CreateTransaction validates and stores a new transaction.
func (s *BalanceService) CreateTransaction(ctx context.Context, raw core.RawTransaction) (core.Transaction, error) {
	if err := s.requireWriter(); err != nil {
		return core.Transaction{}, err
	}
	tx, err := raw.Normalize()
	if err != nil {
		if core.KindOf(err) == core.KindCalculation {
			return core.Transaction{}, &core.Error{Kind: core.KindValidation, Message: "invalid transaction", Err: err}
		}
		return core.Transaction{}, err
	}
	if tx.AccountID == "" {
		tx.AccountID = s.opts.DefaultAccountID
	}
	if tx.AccountID != "" {
		if _, err := s.agg.ResolveAccount(ctx, tx.AccountID); err != nil {
			return core.Transaction{}, err
		}
	}

	created, err := s.writer.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, err
	}
	s.TransactionCreated(ctx, created)
	s.publish(ctx, amqp.NewTransactionChanged(amqp.EventCreated, created, core.Date{}))
	return created, nil
}

// DeleteTransaction removes a transaction.
func (s *BalanceService) DeleteTransaction(ctx context.Context, id string) (core.Transaction, error) {
	if err := s.requireWriter(); err != nil {
		return core.Transaction{}, err
	}
	removed, err := s.writer.DeleteTransaction(ctx, strings.TrimSpace(id))
	if err != nil {
		return core.Transaction{}, err
	}
	s.TransactionDeleted(ctx, removed)
	s.publish(ctx, amqp.NewTransactionChanged(amqp.EventDeleted, removed, core.Date{}))
	return removed, nil
}

// publish never fails the edit; the change is already stored locally.
func (s *BalanceService) publish(ctx context.Context, msg amqp.TransactionChangedMessage) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionChanged(ctx, msg); err != nil {
		s.events.LogError(ctx, "Failed to publish transaction change", err, log.OpPublish,
			log.NewFields().WithTransaction(core.Transaction{ID: msg.TransactionID}))
	}
}

func (s *BalanceService) checkConsistency(ctx context.Context, days []core.DailyBalance, fields log.LogFields) {
	if !s.opts.Debug {
		return
	}
	res := balance.Validate(days)
	for _, issue := range res.Errors {
		s.logger.WarnContext(ctx, "Balance consistency violation",
			append(fields.ToSlice(), log.FieldDate, issue.Date.String(), "issue", issue.Message)...)
	}
}
