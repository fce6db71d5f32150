package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"saldo/internal/core"
)

func TestParseMonthParams(t *testing.T) {
	today := core.Today()

	tests := []struct {
		name      string
		query     url.Values
		wantYear  int
		wantMonth int
		wantKind  core.ErrorKind
	}{
		{
			name:      "both values provided",
			query:     url.Values{"year": {"2024"}, "month": {"12"}},
			wantYear:  2024,
			wantMonth: 12,
		},
		{
			name:      "only year",
			query:     url.Values{"year": {"2023"}},
			wantYear:  2023,
			wantMonth: today.Month(),
		},
		{
			name:      "empty query uses current month",
			query:     url.Values{},
			wantYear:  today.Year(),
			wantMonth: today.Month(),
		},
		{
			name:     "non-numeric month",
			query:    url.Values{"month": {"june"}},
			wantKind: core.KindValidation,
		},
		{
			name:     "month out of range",
			query:    url.Values{"year": {"2024"}, "month": {"0"}},
			wantKind: core.KindInvalidDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseMonthParams(tt.query)
			if tt.wantKind != "" {
				if core.KindOf(err) != tt.wantKind {
					t.Fatalf("error = %v, want kind %s", err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Year != tt.wantYear || result.Month != tt.wantMonth {
				t.Errorf("got %d-%d, want %d-%d", result.Year, result.Month, tt.wantYear, tt.wantMonth)
			}
		})
	}
}

func TestParsePageParams(t *testing.T) {
	p, err := ParsePageParams(url.Values{"offset": {"20"}, "limit": {" 10 "}})
	if err != nil || p.Offset != 20 || p.Limit != 10 {
		t.Errorf("ParsePageParams = %+v, %v", p, err)
	}

	p, err = ParsePageParams(url.Values{})
	if err != nil || p.Offset != 0 || p.Limit != 0 {
		t.Errorf("defaults = %+v, %v", p, err)
	}

	for _, q := range []url.Values{
		{"offset": {"-1"}},
		{"limit": {"-5"}},
		{"limit": {"ten"}},
	} {
		if _, err := ParsePageParams(q); core.KindOf(err) != core.KindValidation {
			t.Errorf("ParsePageParams(%v) error = %v, want validation", q, err)
		}
	}
}

func TestParseDateRange(t *testing.T) {
	rng, err := ParseDateRange(url.Values{"from": {"01/02/2024"}, "to": {"2024-02-29"}})
	if err != nil {
		t.Fatal(err)
	}
	if rng.From != core.NewDate(2024, 2, 1) || rng.To != core.NewDate(2024, 2, 29) {
		t.Errorf("range = %s..%s", rng.From, rng.To)
	}

	open, err := ParseDateRange(url.Values{"to": {"2024-02-29"}})
	if err != nil || !open.From.IsZero() {
		t.Errorf("open range = %+v, %v", open, err)
	}

	if _, err := ParseDateRange(url.Values{"from": {"2024-03-01"}, "to": {"2024-02-01"}}); core.KindOf(err) != core.KindInvalidDate {
		t.Errorf("reversed range error = %v", err)
	}
}

func TestParseDateOrToday(t *testing.T) {
	d, err := ParseDateOrToday(url.Values{}, "date")
	if err != nil || d != core.Today() {
		t.Errorf("default = %s, %v", d, err)
	}
	if _, err := ParseDateOrToday(url.Values{"date": {"2024-02-30"}}, "date"); core.KindOf(err) != core.KindInvalidDate {
		t.Errorf("impossible date error = %v", err)
	}
}

func TestDecodeJSONBody(t *testing.T) {
	newReq := func(body, contentType string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		return req
	}

	var req amountRequest
	if err := DecodeJSONBody(httptest.NewRecorder(), newReq(`{"amount": 42.50}`, "application/json; charset=utf-8"), &req); err != nil {
		t.Fatalf("DecodeJSONBody error = %v", err)
	}
	n, ok := req.Amount.(json.Number)
	if !ok || n.String() != "42.50" {
		t.Errorf("amount = %#v, want json.Number 42.50", req.Amount)
	}

	tests := []struct {
		name        string
		body        string
		contentType string
	}{
		{"empty body", "", "application/json"},
		{"form encoded", "amount=1", "application/x-www-form-urlencoded"},
		{"trailing object", `{"amount": 1}{"amount": 2}`, "application/json"},
		{"too large", `{"amount": "` + strings.Repeat("9", maxBodyBytes) + `"}`, "application/json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst amountRequest
			err := DecodeJSONBody(httptest.NewRecorder(), newReq(tt.body, tt.contentType), &dst)
			if core.KindOf(err) != core.KindValidation {
				t.Errorf("error = %v, want validation", err)
			}
		})
	}
}

func TestCreateTransactionRequestToRaw(t *testing.T) {
	raw, err := createTransactionRequest{
		Type:     " income\x00",
		Amount:   json.Number("12.5"),
		Date:     "05/03/2024",
		Category: "Salary",
	}.toRaw()
	if err != nil {
		t.Fatal(err)
	}
	if raw.Type != "income" || raw.Date != "2024-03-05" || raw.Category != "Salary" {
		t.Errorf("raw = %+v", raw)
	}

	raw, err = createTransactionRequest{Type: "expense", Amount: "1"}.toRaw()
	if err != nil || raw.Date != core.Today().String() {
		t.Errorf("default date = %+v, %v", raw, err)
	}

	if _, err := (createTransactionRequest{Type: "expense"}).toRaw(); core.KindOf(err) != core.KindValidation {
		t.Errorf("missing amount error = %v", err)
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  a\x01b\tc\n "); got != "ab\tc" {
		t.Errorf("sanitizeInput = %q", got)
	}
}
