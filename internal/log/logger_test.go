package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"saldo/internal/core"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentBalance, Output: &buf})

	l.InfoContext(context.Background(), "computed", FieldDays, 31)
	out := buf.String()
	if !strings.Contains(out, "component=balance") {
		t.Errorf("missing component in %q", out)
	}
	if !strings.Contains(out, "days=31") {
		t.Errorf("missing field in %q", out)
	}

	buf.Reset()
	l.WithComponent(ComponentCache).Debug("swept")
	if !strings.Contains(buf.String(), "component=cache") {
		t.Errorf("missing component in %q", buf.String())
	}
	if strings.Count(buf.String(), "component=") != 1 {
		t.Errorf("component repeated in %q", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Output: &buf})
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info record written at warn level: %q", buf.String())
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithAccount("").
		WithDate(core.NewDate(2024, 2, 29)).
		WithError(core.AccountNotFoundf("account %q not found", "x"))

	if f[FieldAccountID] != "all" {
		t.Errorf("account = %v, want all", f[FieldAccountID])
	}
	if f[FieldDate] != "2024-02-29" {
		t.Errorf("date = %v", f[FieldDate])
	}
	if f[FieldErrorKind] != string(core.KindAccountNotFound) {
		t.Errorf("error kind = %v", f[FieldErrorKind])
	}
	if len(f.ToSlice()) != 2*len(f) {
		t.Errorf("ToSlice length mismatch")
	}
}

func TestFromContextFallback(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil || l.Component() != "unknown" {
		t.Fatalf("unexpected fallback logger %+v", l)
	}
	own := Discard()
	if got := FromContext(NewContext(context.Background(), own)); got != own {
		t.Errorf("logger not read back from context")
	}
}
