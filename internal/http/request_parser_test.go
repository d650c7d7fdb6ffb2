package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"name": "Main", "balance": 42.5, "archived": false}`
	req := httptest.NewRequest(http.MethodPost, "/wallets", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}
	if name := parser.Get("name"); name != "Main" {
		t.Errorf("Get('name') = %q, want 'Main'", name)
	}
	if balance := parser.Get("balance"); balance != "42.5" {
		t.Errorf("Get('balance') = %q, want '42.5'", balance)
	}
	if archived := parser.Get("archived"); archived != "false" {
		t.Errorf("Get('archived') = %q, want 'false'", archived)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "description=++Coffee+beans++&amount=4.20"
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}
	if desc := parser.Get("description"); desc != "Coffee beans" {
		t.Errorf("Get('description') = %q, want 'Coffee beans'", desc)
	}
	if raw := parser.GetRaw("description"); raw != "  Coffee beans  " {
		t.Errorf("GetRaw('description') = %q, want untrimmed value", raw)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/logout", strings.NewReader(""))

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
}

func TestRequestBodyParser_TooLarge(t *testing.T) {
	body := "name=" + strings.Repeat("a", maxBodyBytes)
	req := httptest.NewRequest(http.MethodPost, "/wallets", strings.NewReader(body))

	if err := NewRequestBodyParser(req).Parse(); err == nil {
		t.Fatal("expected an error for an oversized body")
	}
}

func TestParseBody_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/wallets", strings.NewReader(`{"name":`))
	w := httptest.NewRecorder()

	if p := ParseBody(w, req); p != nil {
		t.Fatal("expected nil parser for malformed JSON")
	}
	if w.Code != http.StatusBadRequest {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"tab\there", "tab\there"},
		{"line\nbreak", "line\nbreak"},
		{"bell\x07gone", "bellgone"},
		{"null\x00byte", "nullbyte"},
	}

	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsHTMX(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if isHTMX(req) {
		t.Error("plain request reported as htmx")
	}
	req.Header.Set("HX-Request", "true")
	if !isHTMX(req) {
		t.Error("htmx request not detected")
	}
}
