package http

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/assistant"
	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/store"
	"fintrack/internal/store/memory"
)

type testEnv struct {
	srv      *Server
	mem      *memory.Store
	sessions *auth.Manager
	id       core.Identity
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := log.Discard()

	mem := memory.New(store.DefaultCategories())
	id, err := mem.SignUp(ctx, "ada@example.com", "secret123")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}

	cats, lru := services.NewCategoryCache(mem, 16, time.Minute)
	money := core.NewMoneyFormatter("en-US")
	svc := Services{
		Accounts:     services.NewAccountService(mem, cats, logger),
		Wallets:      services.NewWalletService(mem, logger),
		Transactions: services.NewTransactionService(mem, cats, nil, logger),
		Loader:       services.NewLoader(mem, mem, "USD", logger),
		Assistant: assistant.NewService(mem, mem, mem,
			assistant.NewResponder(money, rand.New(rand.NewSource(1))), "USD", logger),
	}
	sessions := auth.NewManager([]byte("test-secret-with-enough-entropy!"), time.Hour, false)
	srv, err := NewServer(svc, sessions, Options{
		Money:                  money,
		Currency:               "USD",
		RateLimitPerMinute:     1000,
		AuthRateLimitPerMinute: 1000,
		Caches:                 map[string]cache.StatsReporter{"categories": lru},
		Logger:                 logger,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, mem: mem, sessions: sessions, id: id}
}

// do sends a request, signed in when authed is true. Bodies are form
// encoded and marked as htmx requests.
func (e *testEnv) do(t *testing.T, method, path string, form url.Values, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("HX-Request", "true")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authed {
		token, _, err := e.sessions.Issue(e.id)
		if err != nil {
			t.Fatalf("issue session: %v", err)
		}
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) wallet(t *testing.T, name string, balance string) core.Wallet {
	t.Helper()
	w, err := e.mem.CreateWallet(context.Background(), e.id, core.Wallet{
		Name:     name,
		Balance:  decimal.RequireFromString(balance),
		Type:     core.WalletPersonal,
		Color:    core.DefaultWalletColor,
		Currency: "USD",
	})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	return w
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(t, http.MethodGet, path, nil, false)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
		var body map[string]any
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: invalid json: %v", path, err)
		}
		if body["status"] != "ok" && body["status"] != "ready" {
			t.Errorf("%s status field = %v", path, body["status"])
		}
	}
}

func TestReadyReportsBackendFailure(t *testing.T) {
	env := newTestEnv(t)
	env.srv.ping = func(context.Context) error { return context.DeadlineExceeded }

	rr := env.do(t, http.MethodGet, "/readyz", nil, false)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", rr.Code)
	}
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/healthz", nil, false)

	rr := env.do(t, http.MethodGet, "/metrics", nil, false)
	body := rr.Body.String()
	for _, want := range []string{"http_requests_total", "rate_limit_rejected_total", `cache_entries{cache="categories"}`, "uptime_seconds"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestPagesRequireSession(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/", "/wallets", "/transactions", "/reports", "/settings"} {
		rr := env.do(t, http.MethodGet, path, nil, false)
		if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login" {
			t.Errorf("%s: status=%d location=%q", path, rr.Code, rr.Header().Get("Location"))
		}
	}

	rr := env.do(t, http.MethodPost, "/wallets", url.Values{"name": {"x"}}, false)
	if rr.Code != http.StatusUnauthorized || rr.Header().Get("HX-Redirect") != "/login" {
		t.Errorf("htmx request: status=%d redirect=%q", rr.Code, rr.Header().Get("HX-Redirect"))
	}
}

func TestPagesRender(t *testing.T) {
	env := newTestEnv(t)
	env.wallet(t, "Checking", "250.00")

	tests := map[string]string{
		"/":             "Total balance",
		"/wallets":      "Checking",
		"/transactions": "New transaction",
		"/reports":      "Monthly overview",
		"/settings":     "ada@example.com",
	}
	for path, want := range tests {
		rr := env.do(t, http.MethodGet, path, nil, true)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("%s body missing %q", path, want)
		}
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/login", nil, false)
	if rr.Code != http.StatusOK {
		t.Fatalf("login page status=%d", rr.Code)
	}

	bad := url.Values{"email": {"ada@example.com"}, "password": {"wrong-password"}}
	rr = env.do(t, http.MethodPost, "/login", bad, false)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "banner-error") {
		t.Error("expected an error banner")
	}
	if !strings.Contains(rr.Body.String(), `value="ada@example.com"`) {
		t.Error("email should be kept in the form")
	}

	good := url.Values{"email": {"ada@example.com"}, "password": {"secret123"}}
	rr = env.do(t, http.MethodPost, "/login", good, false)
	if rr.Header().Get("HX-Redirect") != "/" {
		t.Fatalf("expected redirect home, got status=%d headers=%v", rr.Code, rr.Header())
	}
	var found bool
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.CookieName && c.Value != "" && c.HttpOnly {
			found = true
		}
	}
	if !found {
		t.Error("session cookie not set")
	}
}

func TestGuestPagesRedirectSignedInUsers(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/login", nil, true)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Errorf("status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	mismatch := url.Values{"email": {"new@example.com"}, "password": {"secret123"}, "confirm": {"secret124"}}
	if rr := env.do(t, http.MethodPost, "/register", mismatch, false); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("mismatch status=%d", rr.Code)
	}

	taken := url.Values{"email": {"ada@example.com"}, "password": {"secret123"}, "confirm": {"secret123"}}
	if rr := env.do(t, http.MethodPost, "/register", taken, false); rr.Code != http.StatusConflict {
		t.Errorf("taken status=%d", rr.Code)
	}

	ok := url.Values{"email": {"new@example.com"}, "password": {"secret123"}, "confirm": {"secret123"}}
	if rr := env.do(t, http.MethodPost, "/register", ok, false); rr.Header().Get("HX-Redirect") != "/" {
		t.Errorf("register did not start a session: status=%d", rr.Code)
	}
}

func TestForgotPasswordIsNeutral(t *testing.T) {
	env := newTestEnv(t)

	for _, email := range []string{"ada@example.com", "nobody@example.com"} {
		rr := env.do(t, http.MethodPost, "/forgot-password", url.Values{"email": {email}}, false)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", email, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "If an account exists") {
			t.Errorf("%s: expected the neutral message", email)
		}
	}
	got := env.mem.ResetRequests()
	if len(got) != 2 || got[0] != "ada@example.com" || got[1] != "nobody@example.com" {
		t.Errorf("reset requests = %v", got)
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/logout", url.Values{}, true)
	if rr.Header().Get("HX-Redirect") != "/login" {
		t.Fatalf("status=%d headers=%v", rr.Code, rr.Header())
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.CookieName && c.MaxAge >= 0 {
			t.Errorf("session cookie not cleared: %+v", c)
		}
	}
}

func TestWalletCRUD(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{
		"name":     {"Main"},
		"balance":  {"100"},
		"type":     {"personal"},
		"color":    {"#112233"},
		"currency": {"USD"},
	}
	rr := env.do(t, http.MethodPost, "/wallets", form, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Main") || !strings.Contains(body, "$100.00") {
		t.Errorf("list missing new wallet: %s", body)
	}
	if !strings.Contains(body, `hx-swap-oob="true"`) {
		t.Error("expected the form to be reset out of band")
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventWalletsChanged) {
		t.Errorf("HX-Trigger = %s", rr.Header().Get("HX-Trigger"))
	}

	wallets, _ := env.mem.ListWallets(context.Background(), env.id)
	if len(wallets) != 1 {
		t.Fatalf("wallets = %d, want 1", len(wallets))
	}
	walletID := wallets[0].ID

	rr = env.do(t, http.MethodGet, "/wallets/"+walletID+"/edit", nil, true)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Edit wallet") {
		t.Fatalf("edit status=%d", rr.Code)
	}

	form.Set("name", "Everyday")
	rr = env.do(t, http.MethodPost, "/wallets/"+walletID, form, true)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Everyday") {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/wallets/"+walletID+"/confirm-delete", nil, true)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Everyday") {
		t.Fatalf("confirm status=%d", rr.Code)
	}

	rr = env.do(t, http.MethodDelete, "/wallets/"+walletID, nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "No wallets yet") {
		t.Error("expected the empty list after delete")
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventDialogClose) {
		t.Error("expected the dialog to close")
	}
}

func TestWalletValidationKeepsInput(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"name": {""}, "balance": {"12.5"}, "type": {"personal"}, "currency": {"USD"}}
	rr := env.do(t, http.MethodPost, "/wallets", form, true)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr.Header().Get("HX-Retarget") != "#wallet-form" {
		t.Errorf("HX-Retarget = %q", rr.Header().Get("HX-Retarget"))
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Name is required") {
		t.Errorf("missing validation message: %s", body)
	}
	if !strings.Contains(body, `value="12.5"`) {
		t.Error("typed balance should be kept")
	}

	form = url.Values{"name": {"Main"}, "balance": {"lots"}}
	if rr := env.do(t, http.MethodPost, "/wallets", form, true); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad balance status=%d", rr.Code)
	}
}

func TestMissingRecords(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/wallets/missing/edit", "/transactions/missing/confirm-delete"} {
		if rr := env.do(t, http.MethodGet, path, nil, true); rr.Code != http.StatusNotFound {
			t.Errorf("%s status=%d", path, rr.Code)
		}
	}
	if rr := env.do(t, http.MethodDelete, "/wallets/missing", nil, true); rr.Code != http.StatusNotFound {
		t.Errorf("delete missing wallet status=%d", rr.Code)
	}
}

func TestTransactionCreateAndExport(t *testing.T) {
	env := newTestEnv(t)
	w := env.wallet(t, "Checking", "0")
	today := time.Now().Format(time.DateOnly)

	form := url.Values{
		"type":        {"expense"},
		"amount":      {"12.50"},
		"description": {"Lunch"},
		"date":        {today},
		"wallet_id":   {w.ID},
		"category_id": {"cat-food"},
	}
	rr := env.do(t, http.MethodPost, "/transactions", form, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{"Lunch", "Food &amp; Dining", "-$12.50", "Checking"} {
		if !strings.Contains(body, want) {
			t.Errorf("list missing %q", want)
		}
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventTransactionsChanged) {
		t.Errorf("HX-Trigger = %s", rr.Header().Get("HX-Trigger"))
	}

	rr = env.do(t, http.MethodGet, "/reports/export.csv", nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("export status=%d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") || !strings.Contains(cd, "financial-report-") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	csv := rr.Body.String()
	if !strings.HasPrefix(csv, "Month,Income,Expense,Net\n") {
		t.Errorf("unexpected header: %q", csv)
	}
	if !strings.Contains(csv, ",0.00,12.50,-12.50") {
		t.Errorf("current month row missing: %q", csv)
	}
	if lines := strings.Count(csv, "\n"); lines != 7 {
		t.Errorf("csv lines = %d, want 7", lines)
	}
}

func TestTransactionValidation(t *testing.T) {
	env := newTestEnv(t)
	w := env.wallet(t, "Checking", "0")

	form := url.Values{
		"type":      {"income"},
		"amount":    {"-5"},
		"date":      {"2024-06-01"},
		"wallet_id": {w.ID},
	}
	rr := env.do(t, http.MethodPost, "/transactions", form, true)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr.Header().Get("HX-Retarget") != "#transaction-form" {
		t.Errorf("HX-Retarget = %q", rr.Header().Get("HX-Retarget"))
	}
	if !strings.Contains(rr.Body.String(), "Checking") {
		t.Error("wallet choices should be rendered with the error")
	}
}

func TestCategoryOptionsFilterByType(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/transactions/categories?type=income&category_id=cat-food", nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Salary") {
		t.Error("income categories missing")
	}
	if strings.Contains(body, "cat-food") {
		t.Error("expense category offered for income")
	}
	if strings.Contains(body, "selected") {
		t.Error("mismatched category should not stay selected")
	}
}

func TestAssistant(t *testing.T) {
	env := newTestEnv(t)
	env.wallet(t, "Checking", "80")

	rr := env.do(t, http.MethodPost, "/assistant", url.Values{"message": {"What's my balance?"}}, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "$80.00") {
		t.Errorf("reply missing balance: %s", rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/assistant", url.Values{"message": {"   "}}, true)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty message status=%d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/assistant", url.Values{"message": {strings.Repeat("é", 501)}}, true)
	if rr.Code != http.StatusUnprocessableEntity || !strings.Contains(rr.Body.String(), "under 500 characters") {
		t.Errorf("long message status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/", nil, true)
	if !strings.Contains(rr.Body.String(), "What&#39;s my balance?") {
		t.Error("dashboard should show chat history")
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/settings/password", url.Values{"password": {"abc"}, "confirm": {"abc"}}, true)
	if rr.Code != http.StatusUnprocessableEntity || !strings.Contains(rr.Body.String(), "banner-error") {
		t.Errorf("short password: status=%d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/settings/password", url.Values{"password": {"brand-new-1"}, "confirm": {"brand-new-1"}}, true)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "banner-success") {
		t.Fatalf("change: status=%d body=%s", rr.Code, rr.Body.String())
	}
	if _, err := env.mem.SignIn(context.Background(), "ada@example.com", "brand-new-1"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestCharts(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/reports/chart.png", nil, true)
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("monthly chart status=%d type=%q", rr.Code, rr.Header().Get("Content-Type"))
	}

	rr = env.do(t, http.MethodGet, "/reports/categories.png", nil, true)
	if rr.Code != http.StatusNotFound {
		t.Errorf("empty category chart status=%d, want 404", rr.Code)
	}
}

func TestUnknownPathRedirectsHome(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/does/not/exist", nil, true)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Errorf("status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}
}

func TestProbesAreRejected(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/wp-admin/setup.php", nil, false)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status=%d, want 404", rr.Code)
	}
	if env.srv.detector.Probes() != 1 {
		t.Errorf("probes = %d, want 1", env.srv.detector.Probes())
	}
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/static/app.js", nil, false)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "show-notification") {
		t.Error("unexpected app.js content")
	}
}

func TestBarWidth(t *testing.T) {
	d := decimal.RequireFromString
	tests := []struct {
		value, top string
		want       int
	}{
		{"50", "100", 50},
		{"0", "100", 0},
		{"0.1", "100", 2},
		{"150", "100", 100},
		{"10", "0", 0},
	}
	for _, tt := range tests {
		if got := barWidth(d(tt.value), d(tt.top)); got != tt.want {
			t.Errorf("barWidth(%s, %s) = %d, want %d", tt.value, tt.top, got, tt.want)
		}
	}
}
