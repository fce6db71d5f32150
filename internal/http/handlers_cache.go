package http

import (
	"net/http"

	"saldo/internal/core"
	"saldo/internal/log"
)

// handleInvalidateCache drops the entries a change between from and to can
// affect. Without bounds the whole cache is cleared.
func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	rng, err := ParseDateRange(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var target *core.DateRange
	if !rng.From.IsZero() || !rng.To.IsZero() {
		target = &rng
	}
	removed := s.api.InvalidateCache(r.Context(), target)

	log.FromContext(r.Context()).InfoContext(r.Context(), "Cache invalidated via API",
		log.NewFields().WithRange(rng).WithOperation(log.OpInvalidate).ToSlice()...)

	NewJSONResponse().Body(invalidationDTO{
		Removed: removed,
		From:    rng.From.String(),
		To:      rng.To.String(),
	}).Write(w)
}

func (s *Server) handleRefreshCache(w http.ResponseWriter, r *http.Request) {
	removed := s.api.RefreshBalances(r.Context())
	NewJSONResponse().Body(invalidationDTO{Removed: removed}).Write(w)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(toCacheStatsDTO(s.api.GetCacheStats())).Write(w)
}
