package http

import (
	"net/http"

	"saldo/internal/log"
)

// handleDailyBalance returns the snapshot at the end of one day.
// Query: date (ISO or DD/MM/YYYY, default today), account.
func (s *Server) handleDailyBalance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := ParseDateOrToday(q, "date")
	if err != nil {
		writeError(w, r, err)
		return
	}

	day, err := s.api.CalculateDailyBalance(r.Context(), date.String(), sanitizeInput(q.Get("account")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(toDailyBalanceDTO(day)).Write(w)
}

// handleMonthlyBalance returns the projection of a whole month.
// Query: year, month (default current), account.
func (s *Server) handleMonthlyBalance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params, err := ParseMonthParams(q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := s.api.MonthlyProjection(r.Context(), params.Month, params.Year, sanitizeInput(q.Get("account")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(toMonthlyProjectionDTO(p)).Write(w)
}

// handleProjection returns one snapshot per day of [from, to]. A missing
// from is today; a missing to extends the window by the configured length.
func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := ParseDateOrToday(q, "from")
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := optionalDate(q, "to")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if to.IsZero() {
		to = from.AddDays(s.projectionDays - 1)
	}
	account := sanitizeInput(q.Get("account"))

	days, err := s.api.GetBalanceProjection(r.Context(), from.String(), to.String(), account)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Projection served",
		log.FieldFrom, from.String(),
		log.FieldTo, to.String(),
		log.FieldDays, len(days))

	NewJSONResponse().Body(projectionDTO{
		From:          from.String(),
		To:            to.String(),
		AccountID:     account,
		DailyBalances: toDailyBalanceDTOs(days),
	}).Write(w)
}

// handleAccountsBalance returns every active account's balance on a day.
func (s *Server) handleAccountsBalance(w http.ResponseWriter, r *http.Request) {
	date, err := ParseDateOrToday(r.URL.Query(), "date")
	if err != nil {
		writeError(w, r, err)
		return
	}

	rows, err := s.api.GetAllAccountsBalance(r.Context(), date.String())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(accountsBalanceDTO{
		Date:     date.String(),
		Accounts: toAccountBalanceDTOs(rows),
	}).Write(w)
}
