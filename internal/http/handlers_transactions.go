package http

import (
	"net/http"

	"saldo/internal/core"
	"saldo/internal/log"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := ParseDateRange(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := ParsePageParams(q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.api.ListTransactions(r.Context(), rng, sanitizeInput(q.Get("account")), page.Offset, page.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(toTransactionPageDTO(result)).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	raw, err := req.toRaw()
	if err != nil {
		writeError(w, r, err)
		return
	}

	tx, err := s.api.CreateTransaction(r.Context(), raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		log.NewFields().WithTransaction(tx).WithOperation(log.OpCreate).ToSlice()...)

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+tx.ID).
		Body(toTransactionDTO(tx)).
		Write(w)
}

// handleUpdateAmount changes the amount of one transaction. The body is
// {"amount": <number or decimal string>}.
func (s *Server) handleUpdateAmount(w http.ResponseWriter, r *http.Request) {
	id := sanitizeInput(r.PathValue("id"))
	var req amountRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Amount == nil {
		writeError(w, r, core.Validationf("amount is required"))
		return
	}

	tx, err := s.api.SaveTransactionAmount(r.Context(), id, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction amount updated",
		log.FieldTransactionID, tx.ID,
		log.FieldAmount, describeAmount(req.Amount))

	NewJSONResponse().Body(toTransactionDTO(tx)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := sanitizeInput(r.PathValue("id"))
	tx, err := s.api.DeleteTransaction(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction deleted",
		log.NewFields().WithTransaction(tx).WithOperation(log.OpDelete).ToSlice()...)

	NewJSONResponse().Body(toTransactionDTO(tx)).Write(w)
}
