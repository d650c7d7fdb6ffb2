package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// fakeSheets records the Sheets API calls the client makes.
type fakeSheets struct {
	mu      sync.Mutex
	titles  []string
	calls   []string
	updated [][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/spreadsheets/sheet-1"):
		f.calls = append(f.calls, "get")
		var sheets []map[string]any
		for _, t := range f.titles {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": t}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req struct {
			Requests []struct {
				AddSheet struct {
					Properties struct{ Title string } `json:"properties"`
				} `json:"addSheet"`
			} `json:"requests"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			f.titles = append(f.titles, rq.AddSheet.Properties.Title)
		}
		f.calls = append(f.calls, "add")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		f.calls = append(f.calls, "clear")
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		if r.URL.Query().Get("valueInputOption") != "RAW" {
			http.Error(w, `{"error":{"code":400,"message":"bad option"}}`, http.StatusBadRequest)
			return
		}
		var vr struct {
			Values [][]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.updated = vr.Values
		f.calls = append(f.calls, "update")
		_, _ = w.Write([]byte(`{}`))
	default:
		http.Error(w, `{"error":{"code":404,"message":"unexpected call"}}`, http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := New(context.Background(), Config{SpreadsheetID: "sheet-1"}, log.Discard(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewRequiresSpreadsheetAndCredentials(t *testing.T) {
	if _, err := New(context.Background(), Config{}, log.Discard()); err == nil {
		t.Fatal("expected error for missing spreadsheet ID")
	}
	_, err := New(context.Background(), Config{SpreadsheetID: "x"}, log.Discard())
	if err == nil || !strings.Contains(err.Error(), "credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestWriteLedgerCreatesTabOnce(t *testing.T) {
	f := &fakeSheets{titles: []string{"Sheet1"}}
	c := newTestClient(t, f)
	ctx := context.Background()
	txs := []core.Transaction{{
		ID: "t1", Type: core.Expense, Amount: decimal.RequireFromString("9.99"),
		Date: core.NewDate(2024, 2, 29), Description: "Book",
	}}

	if err := c.WriteLedger(ctx, "u1", txs); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := c.WriteLedger(ctx, "u1", nil); err != nil {
		t.Fatalf("second write: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	want := "get,add,clear,update,clear,update"
	if got := strings.Join(f.calls, ","); got != want {
		t.Fatalf("calls = %s, want %s", got, want)
	}
	if len(f.titles) != 2 || f.titles[1] != "ledger u1" {
		t.Fatalf("titles = %v", f.titles)
	}
	if len(f.updated) != 1 || f.updated[0][0] != "Date" {
		t.Fatalf("last write should hold only the header: %v", f.updated)
	}
}

func TestWriteLedgerReusesExistingTab(t *testing.T) {
	f := &fakeSheets{titles: []string{"ledger u2"}}
	c := newTestClient(t, f)
	tx := core.Transaction{ID: "t9", Type: core.Income, Amount: decimal.NewFromInt(3), Date: core.NewDate(2024, 1, 1)}
	if err := c.WriteLedger(context.Background(), "u2", []core.Transaction{tx}); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.Join(f.calls, ",") != "get,clear,update" {
		t.Fatalf("existing tab must not be re-added: %v", f.calls)
	}
	if len(f.updated) != 2 || f.updated[1][2] != "3.00" || f.updated[1][7] != "t9" {
		t.Fatalf("rows = %v", f.updated)
	}
}

func TestQuoteTab(t *testing.T) {
	if got := quoteTab("Bob's ledger"); got != "'Bob''s ledger'" {
		t.Errorf("quoteTab = %s", got)
	}
}
