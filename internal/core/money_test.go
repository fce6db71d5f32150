package core

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  any
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{" 2.50 ", "2.5", true},
		{"0", "0", true},
		{500, "500", true},
		{int64(7), "7", true},
		{12.5, "12.5", true},
		{json.Number("3.75"), "3.75", true},
		{decimal.NewFromInt(9), "9", true},
		{"-1", "", false},
		{-3, "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
		{nil, "", false},
		{true, "", false},
		{math.NaN(), "", false},
		{math.Inf(1), "", false},
		{float32(math.Inf(-1)), "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%v expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
			continue
		}
		if err == nil {
			t.Fatalf("%v expected error", tc.in)
		}
		if !errors.Is(err, ErrCalculation) {
			t.Fatalf("%v expected calculation error, got %v", tc.in, err)
		}
	}
}

func TestParseSignedAmount(t *testing.T) {
	got, err := ParseSignedAmount("-100")
	if err != nil || !got.Equal(decimal.NewFromInt(-100)) {
		t.Fatalf("expected -100, got %s (err=%v)", got, err)
	}
	if _, err := ParseSignedAmount(math.Inf(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount for -Inf, got %v", err)
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount("12,5"); got != "12.50" {
		t.Fatalf("expected 12.50, got %q", got)
	}
	if got := FormatAmount(3); got != "3.00" {
		t.Fatalf("expected 3.00, got %q", got)
	}
	// display fallback keeps the raw text
	if got := FormatAmount("n/a"); got != "n/a" {
		t.Fatalf("expected raw text, got %q", got)
	}
}
