package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/store"
	"fintrack/internal/store/memory"
)

type fixedRand int

func (f fixedRand) Intn(n int) int { return int(f) % n }

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var scenario = NewSnapshot(
	[]core.Wallet{{Balance: d("100.00"), Currency: "USD"}, {Balance: d("50.00"), Currency: "EUR"}},
	[]core.Transaction{
		{Type: core.Income, Amount: d("200")},
		{Type: core.Expense, Amount: d("75")},
	},
	"USD",
)

func newResponder(r Rand) *Responder {
	return NewResponder(core.NewMoneyFormatter("en-US"), r)
}

func TestNewSnapshot(t *testing.T) {
	if scenario.WalletCount != 2 || !scenario.TotalBalance.Equal(d("150")) {
		t.Fatalf("wallets: %+v", scenario)
	}
	if !scenario.RecentIncome.Equal(d("200")) || !scenario.RecentExpenses.Equal(d("75")) {
		t.Fatalf("recent: %+v", scenario)
	}
	if scenario.Currency != "USD" {
		t.Fatalf("currency follows the first wallet: %s", scenario.Currency)
	}
	if empty := NewSnapshot(nil, nil, "EUR"); empty.Currency != "EUR" || !empty.TotalBalance.IsZero() {
		t.Fatalf("empty snapshot: %+v", empty)
	}
}

func TestReplyTopics(t *testing.T) {
	r := newResponder(fixedRand(0))
	tests := []struct {
		input string
		want  string
	}{
		{"What's my BALANCE?", "$150.00"},
		{"total please", "across 2 wallets"},
		{"how much income", "$200.00"},
		{"my spending", "$75.00"},
		{"Expenses?", "$75.00"},
		{"can I save more", "you kept $125.00 of $200.00"},
		{"wallet count", "You have 2 wallets"},
		{"give me advice", Tips()[0]},
		// balance outranks income when both appear
		{"income vs balance", "total balance"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := r.Reply(tt.input, scenario)
			if !strings.Contains(got, tt.want) {
				t.Fatalf("reply %q does not contain %q", got, tt.want)
			}
		})
	}
}

func TestReplySavingsDeficit(t *testing.T) {
	r := newResponder(fixedRand(0))
	s := Snapshot{RecentIncome: d("10"), RecentExpenses: d("25.5"), Currency: "USD"}
	if got := r.Reply("saving", s); !strings.Contains(got, "spent $15.50 more") {
		t.Fatalf("deficit reply: %q", got)
	}
}

func TestReplyTipUsesRandomSource(t *testing.T) {
	for i, tip := range Tips() {
		if got := newResponder(fixedRand(i)).Reply("tip", scenario); got != "Here's a tip: "+tip {
			t.Fatalf("tip %d: %q", i, got)
		}
	}
	if len(Tips()) != 5 {
		t.Fatalf("expected five tips")
	}
}

func TestReplySharedRandConcurrent(t *testing.T) {
	r := newResponder(SharedRand{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if got := r.Reply("any tip?", scenario); !strings.HasPrefix(got, "Here's a tip: ") {
					t.Errorf("unexpected reply %q", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestReplyFallbackQuotesInput(t *testing.T) {
	input := `What's the "weather" like?`
	got := newResponder(fixedRand(0)).Reply(input, scenario)
	if !strings.Contains(got, `"`+input+`"`) {
		t.Fatalf("fallback should quote input verbatim: %q", got)
	}
}

type failingWallets struct{ store.WalletStore }

func (failingWallets) ListWallets(context.Context, core.Identity) ([]core.Wallet, error) {
	return nil, errors.New("backend down")
}

func TestServiceAsk(t *testing.T) {
	ctx := context.Background()
	mem := memory.New(store.DefaultCategories())
	id, err := mem.SignUp(ctx, "a@example.com", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	w, _ := mem.CreateWallet(ctx, id, core.Wallet{Name: "Main", Balance: d("100"), Type: core.WalletPersonal, Color: "#000000", Currency: "USD"})
	_, _ = mem.CreateWallet(ctx, id, core.Wallet{Name: "Side", Balance: d("50"), Type: core.WalletPersonal, Color: "#000000", Currency: "USD"})
	_, _ = mem.CreateTransaction(ctx, id, core.Transaction{Type: core.Income, Amount: d("200"), Date: core.NewDate(2024, 1, 1), WalletID: w.ID})

	svc := NewService(mem, mem, mem, newResponder(fixedRand(0)), "USD", log.Discard())

	msg, err := svc.Ask(ctx, id, "  balance  ")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if msg.Message != "balance" || !strings.Contains(msg.Response, "$150.00") {
		t.Fatalf("unexpected exchange: %+v", msg)
	}
	if _, err := svc.Ask(ctx, id, "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}

	hist := svc.History(ctx, id, 10)
	if len(hist) != 1 || hist[0].Response != msg.Response {
		t.Fatalf("history: %+v", hist)
	}

	// Anonymous questions are answered but not recorded.
	if _, err := svc.Ask(ctx, core.Identity{}, "income"); err != nil {
		t.Fatalf("anonymous ask: %v", err)
	}
	if got := svc.History(ctx, core.Identity{}, 10); got != nil {
		t.Fatalf("anonymous history: %+v", got)
	}
}

func TestServiceAskDegradesOnFetchFailure(t *testing.T) {
	ctx := context.Background()
	mem := memory.New(nil)
	id, _ := mem.SignUp(ctx, "a@example.com", "secret1")
	svc := NewService(failingWallets{mem}, mem, mem, newResponder(fixedRand(0)), "USD", log.Discard())

	msg, err := svc.Ask(ctx, id, "balance")
	if err != nil {
		t.Fatalf("ask should not fail: %v", err)
	}
	if !strings.Contains(msg.Response, "$0.00") || !strings.Contains(msg.Response, "0 wallets") {
		t.Fatalf("expected zero snapshot reply, got %q", msg.Response)
	}
}

func TestServiceAskMessageLength(t *testing.T) {
	ctx := context.Background()
	mem := memory.New(nil)
	id, _ := mem.SignUp(ctx, "a@example.com", "secret1")
	svc := NewService(mem, mem, mem, newResponder(fixedRand(0)), "USD", log.Discard())

	// 500 characters, 501 bytes: the accent straddles byte 500.
	input := strings.Repeat("x", 499) + "é"
	msg, err := svc.Ask(ctx, id, input)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if msg.Message != input || !utf8.ValidString(msg.Response) || !strings.Contains(msg.Response, input) {
		t.Fatalf("message should be kept verbatim, got %d bytes", len(msg.Message))
	}
	hist := svc.History(ctx, id, 10)
	if len(hist) != 1 || !utf8.ValidString(hist[0].Message) || hist[0].Message != input {
		t.Fatalf("history: %+v", hist)
	}

	if _, err := svc.Ask(ctx, id, input+"x"); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}
	if got := svc.History(ctx, id, 10); len(got) != 1 {
		t.Fatalf("rejected message should not be recorded: %d entries", len(got))
	}
}
