package store

import (
	"fmt"
	"strconv"
	"strings"

	"saldo/internal/core"
)

// Column aliases accepted in table headers, compared case-insensitively.
var (
	txColumns = map[string][]string{
		"id":          {"id", "ref"},
		"date":        {"date", "data"},
		"type":        {"type", "tip"},
		"amount":      {"amount", "suma", "sumă"},
		"account":     {"account", "account_id", "cont"},
		"category":    {"category", "categorie"},
		"subcategory": {"subcategory", "subcategorie"},
	}
	accountColumns = map[string][]string{
		"id":      {"id"},
		"name":    {"name", "nume"},
		"initial": {"initial_balance", "initial balance", "sold initial", "sold_initial"},
		"active":  {"active", "is_active", "activ"},
		"order":   {"display_order", "order", "ordine"},
	}
)

// RowError records why one row of a table was skipped.
type RowError struct {
	Row int // 1-based, counting the header
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

type header map[string]int

func parseHeader(row []string, aliases map[string][]string) header {
	h := header{}
	for i, cell := range row {
		name := strings.ToLower(strings.TrimSpace(cell))
		for key, names := range aliases {
			for _, alias := range names {
				if name == alias {
					if _, seen := h[key]; !seen {
						h[key] = i
					}
				}
			}
		}
	}
	return h
}

func (h header) get(row []string, key string) string {
	i, ok := h[key]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (h header) require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if _, ok := h[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing columns: %s", strings.Join(missing, ","))
	}
	return nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ParseTransactions converts a table whose first row is a header into
// transactions. Dates may be ISO or DD/MM/YYYY and are normalized here, so
// the engine only ever sees canonical values. Rows without an id get
// "row-<n>". Bad rows are skipped and reported.
func ParseTransactions(table [][]string) ([]core.Transaction, []RowError, error) {
	if len(table) == 0 {
		return nil, nil, nil
	}
	h := parseHeader(table[0], txColumns)
	if err := h.require("date", "type", "amount"); err != nil {
		return nil, nil, fmt.Errorf("unexpected transactions header %v: %w", table[0], err)
	}

	var (
		out  []core.Transaction
		errs []RowError
	)
	for i := 1; i < len(table); i++ {
		row := table[i]
		if blank(row) {
			continue
		}
		date, err := core.ParseDate(h.get(row, "date"))
		if err != nil {
			errs = append(errs, RowError{Row: i + 1, Err: err})
			continue
		}
		id := h.get(row, "id")
		if id == "" {
			id = "row-" + strconv.Itoa(i+1)
		}
		raw := core.RawTransaction{
			ID:          id,
			Type:        h.get(row, "type"),
			Amount:      h.get(row, "amount"),
			Date:        date.String(),
			AccountID:   h.get(row, "account"),
			Category:    h.get(row, "category"),
			Subcategory: h.get(row, "subcategory"),
		}
		tx, err := raw.Normalize()
		if err != nil {
			errs = append(errs, RowError{Row: i + 1, Err: err})
			continue
		}
		out = append(out, tx)
	}
	return out, errs, nil
}

// ParseAccounts converts a header-led table into accounts. A missing active
// column means active; a missing display order falls back to the row order.
func ParseAccounts(table [][]string) ([]core.Account, []RowError, error) {
	if len(table) == 0 {
		return nil, nil, nil
	}
	h := parseHeader(table[0], accountColumns)
	if err := h.require("id"); err != nil {
		return nil, nil, fmt.Errorf("unexpected accounts header %v: %w", table[0], err)
	}

	var (
		out  []core.Account
		errs []RowError
	)
	for i := 1; i < len(table); i++ {
		row := table[i]
		if blank(row) {
			continue
		}
		acc := core.Account{
			ID:           h.get(row, "id"),
			Name:         h.get(row, "name"),
			IsActive:     true,
			DisplayOrder: i,
		}
		if acc.ID == "" {
			errs = append(errs, RowError{Row: i + 1, Err: fmt.Errorf("missing account id")})
			continue
		}
		if acc.Name == "" {
			acc.Name = acc.ID
		}
		initial, err := core.ParseSignedAmount(orZero(h.get(row, "initial")))
		if err != nil {
			errs = append(errs, RowError{Row: i + 1, Err: err})
			continue
		}
		acc.InitialBalance = initial
		if v := h.get(row, "active"); v != "" {
			acc.IsActive = parseBool(v)
		}
		if v := h.get(row, "order"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, RowError{Row: i + 1, Err: fmt.Errorf("display order %q: %w", v, err)})
				continue
			}
			acc.DisplayOrder = n
		}
		out = append(out, acc)
	}
	return out, errs, nil
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "da", "x", "active", "activ":
		return true
	}
	return false
}
