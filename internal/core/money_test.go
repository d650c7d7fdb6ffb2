package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"0", "", false},
		{"abc", "", false},
		{"1e3", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestParseBalance(t *testing.T) {
	if d, err := ParseBalance(""); err != nil || !d.IsZero() {
		t.Fatalf("empty balance should be zero, got %s err=%v", d, err)
	}
	if d, err := ParseBalance("-12,5"); err != nil || !d.Equal(decimal.RequireFromString("-12.5")) {
		t.Fatalf("negative balance: got %s err=%v", d, err)
	}
	if _, err := ParseBalance("--1"); err == nil {
		t.Fatal("expected error for malformed balance")
	}
}

func TestMoneyFormatter(t *testing.T) {
	en := NewMoneyFormatter("en-US")
	cases := []struct {
		amount string
		code   string
		want   string
	}{
		{"1234.5", "USD", "$1,234.50"},
		{"0", "USD", "$0.00"},
		{"150", "", "$150.00"},
		{"-12", "USD", "-$12.00"},
	}
	for _, tc := range cases {
		got := en.Format(decimal.RequireFromString(tc.amount), tc.code)
		if got != tc.want {
			t.Errorf("Format(%s, %q) = %q, want %q", tc.amount, tc.code, got, tc.want)
		}
	}

	de := NewMoneyFormatter("de-DE")
	if got := de.Number(decimal.RequireFromString("1234.5")); got != "1.234,50" {
		t.Errorf("de number = %q", got)
	}

	// 2^53 cents and beyond stay exact.
	if got := en.Number(decimal.RequireFromString("90071992547409.93")); got != "90,071,992,547,409.93" {
		t.Errorf("large number = %q", got)
	}
	if got := en.Number(decimal.RequireFromString("-0.5")); got != "-0.50" {
		t.Errorf("negative number = %q", got)
	}

	fallback := NewMoneyFormatter("not a locale!")
	if got := fallback.Number(decimal.NewFromInt(2)); got != "2.00" {
		t.Errorf("fallback number = %q", got)
	}
}
