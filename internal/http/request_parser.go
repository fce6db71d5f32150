// Package http exposes the balance engine as a JSON API.
//
// This file implements utilities for parsing and validating query strings
// and JSON request bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"saldo/internal/core"
)

const maxBodyBytes = 1 << 20

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// PageParams holds the offset and limit of a listing.
type PageParams struct {
	Offset int
	Limit  int
}

// ParseMonthParams extracts year and month from query parameters, using the
// current month as default. Malformed values are rejected.
func ParseMonthParams(query url.Values) (MonthParams, error) {
	today := core.Today()
	params := MonthParams{Year: today.Year(), Month: today.Month()}

	var err error
	if params.Year, err = intParam(query, "year", params.Year); err != nil {
		return MonthParams{}, err
	}
	if params.Month, err = intParam(query, "month", params.Month); err != nil {
		return MonthParams{}, err
	}
	if err := core.ValidateYearMonth(params.Year, params.Month); err != nil {
		return MonthParams{}, err
	}
	return params, nil
}

// ParsePageParams extracts offset and limit. A missing limit stays 0 and
// is resolved by the service.
func ParsePageParams(query url.Values) (PageParams, error) {
	offset, err := intParam(query, "offset", 0)
	if err != nil {
		return PageParams{}, err
	}
	if offset < 0 {
		return PageParams{}, core.Validationf("offset cannot be negative")
	}
	limit, err := intParam(query, "limit", 0)
	if err != nil {
		return PageParams{}, err
	}
	if limit < 0 {
		return PageParams{}, core.Validationf("limit cannot be negative")
	}
	return PageParams{Offset: offset, Limit: limit}, nil
}

// ParseDateRange reads the optional from/to parameters. Missing bounds stay
// open.
func ParseDateRange(query url.Values) (core.DateRange, error) {
	var rng core.DateRange
	var err error
	if rng.From, err = optionalDate(query, "from"); err != nil {
		return core.DateRange{}, err
	}
	if rng.To, err = optionalDate(query, "to"); err != nil {
		return core.DateRange{}, err
	}
	if err := rng.Validate(); err != nil {
		return core.DateRange{}, err
	}
	return rng, nil
}

// ParseDateOrToday reads a date parameter, defaulting to today.
func ParseDateOrToday(query url.Values, key string) (core.Date, error) {
	d, err := optionalDate(query, key)
	if err != nil {
		return core.Date{}, err
	}
	if d.IsZero() {
		return core.Today(), nil
	}
	return d, nil
}

func optionalDate(query url.Values, key string) (core.Date, error) {
	v := sanitizeInput(query.Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(v)
}

func intParam(query url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, core.Validationf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

// DecodeJSONBody decodes a JSON object from the request body into dst.
// Numbers are kept as json.Number so amounts are parsed without float
// rounding. Unknown fields are rejected.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return core.Validationf("content type %q is not supported, use application/json", ct)
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return core.Validationf("request body is empty")
		case errors.As(err, &maxErr):
			return core.Validationf("request body exceeds %d bytes", maxErr.Limit)
		default:
			return &core.Error{Kind: core.KindValidation, Message: "malformed JSON body", Err: err}
		}
	}
	if dec.More() {
		return core.Validationf("request body must contain a single JSON object")
	}
	return nil
}

// amountRequest is the body of PATCH /api/transactions/{id}/amount.
type amountRequest struct {
	Amount any `json:"amount"`
}

// createTransactionRequest is the body of POST /api/transactions.
type createTransactionRequest struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Amount      any    `json:"amount"`
	Date        string `json:"date"`
	AccountID   string `json:"account_id"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
}

// toRaw sanitizes the text fields and resolves the date, which may be ISO
// or DD/MM/YYYY and defaults to today.
func (req createTransactionRequest) toRaw() (core.RawTransaction, error) {
	if req.Amount == nil {
		return core.RawTransaction{}, core.Validationf("amount is required")
	}
	date := core.Today()
	if v := sanitizeInput(req.Date); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return core.RawTransaction{}, err
		}
		date = d
	}
	return core.RawTransaction{
		ID:          sanitizeInput(req.ID),
		Type:        sanitizeInput(req.Type),
		Amount:      req.Amount,
		Date:        date.String(),
		AccountID:   sanitizeInput(req.AccountID),
		Category:    sanitizeInput(req.Category),
		Subcategory: sanitizeInput(req.Subcategory),
	}, nil
}

func describeAmount(v any) string {
	switch a := v.(type) {
	case json.Number:
		return a.String()
	case string:
		return a
	default:
		return fmt.Sprint(a)
	}
}
