package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/middleware/ratelimit"
	"saldo/internal/middleware/security"
	"saldo/internal/middleware/trace"
	"saldo/internal/services"
)

// BalanceAPI is the part of the balance service the handlers consume.
type BalanceAPI interface {
	CalculateDailyBalance(ctx context.Context, date string, accountID string) (core.DailyBalance, error)
	MonthlyProjection(ctx context.Context, month, year int, accountID string) (core.MonthlyProjection, error)
	GetBalanceProjection(ctx context.Context, from, to string, accountID string) ([]core.DailyBalance, error)
	GetAllAccountsBalance(ctx context.Context, date string) ([]core.AccountDailyBalance, error)
	ListTransactions(ctx context.Context, rng core.DateRange, accountID string, offset, limit int) (services.TransactionPage, error)

	CreateTransaction(ctx context.Context, raw core.RawTransaction) (core.Transaction, error)
	SaveTransactionAmount(ctx context.Context, id string, amount any) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) (core.Transaction, error)

	InvalidateCache(ctx context.Context, rng *core.DateRange) int
	RefreshBalances(ctx context.Context) int
	GetCacheStats() services.CacheStats
}

var _ BalanceAPI = (*services.BalanceService)(nil)

// ReadinessCheck reports whether the data backend can serve requests.
type ReadinessCheck func(ctx context.Context) error

// Options configures the server beyond its routes.
type Options struct {
	Logger *log.Logger
	// RateLimitPerMinute caps /api requests per client; 0 disables limiting.
	RateLimitPerMinute int
	Ready              ReadinessCheck
	// ProjectionDays is the length of a projection when "to" is omitted.
	ProjectionDays int
}

type Server struct {
	http.Server
	api         BalanceAPI
	logger      *log.Logger
	ready       ReadinessCheck
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware

	projectionDays int
	shutdownOnce   sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, api BalanceAPI, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	if opts.ProjectionDays <= 0 {
		opts.ProjectionDays = 30
	}

	resolver := security.NewClientIPResolver()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		api:            api,
		logger:         logger,
		ready:          opts.Ready,
		tracer:         trace.NewMiddleware(resolver.ExtractClientIP, logger),
		projectionDays: opts.ProjectionDays,
	}

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/balance/daily", s.handleDailyBalance)
	apiMux.HandleFunc("GET /api/balance/monthly", s.handleMonthlyBalance)
	apiMux.HandleFunc("GET /api/balance/projection", s.handleProjection)
	apiMux.HandleFunc("GET /api/balance/accounts", s.handleAccountsBalance)
	apiMux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	apiMux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	apiMux.HandleFunc("PATCH /api/transactions/{id}/amount", s.handleUpdateAmount)
	apiMux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	apiMux.HandleFunc("POST /api/cache/invalidate", s.handleInvalidateCache)
	apiMux.HandleFunc("POST /api/cache/refresh", s.handleRefreshCache)
	apiMux.HandleFunc("GET /api/cache/stats", s.handleCacheStats)

	var apiHandler http.Handler = apiMux
	if opts.RateLimitPerMinute > 0 {
		s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
		apiHandler = s.rateLimiter.Middleware(resolver.ExtractClientIP, s.handleRateLimited)(apiHandler)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("/api/", apiHandler)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Handler = headers.Middleware(s.tracer.Middleware(mux))
	return s
}

// Shutdown gracefully shuts down the server and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError().Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
			NewJSONResponse().
				Status(http.StatusServiceUnavailable).
				Body(map[string]string{"status": "unavailable"}).
				Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}
