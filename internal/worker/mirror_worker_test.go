package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/sheets"
	sheetsmem "fintrack/internal/sheets/memory"
	"fintrack/internal/store"
	"fintrack/internal/store/memory"
)

func seed(t *testing.T) (*memory.Store, core.Identity, core.Identity) {
	t.Helper()
	ctx := context.Background()
	mem := memory.New(store.DefaultCategories())
	alice, err := mem.SignUp(ctx, "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	bob, _ := mem.SignUp(ctx, "bob@example.com", "secret1")
	w, _ := mem.CreateWallet(ctx, alice, core.Wallet{Name: "Main", Type: core.WalletPersonal, Color: "#112233", Currency: "USD"})
	_, err = mem.CreateTransaction(ctx, alice, core.Transaction{
		Type: core.Expense, Amount: decimal.RequireFromString("4.20"), Date: core.NewDate(2024, 3, 9),
		WalletID: w.ID, CategoryID: "cat-food", Description: "Coffee",
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return mem, alice, bob
}

func TestHandleLedgerChangedMirrorsUser(t *testing.T) {
	mem, alice, _ := seed(t)
	out := sheetsmem.New()
	w := NewMirrorWorker(mem, out, 0, log.Discard())

	msg := amqp.NewLedgerChangedMessage(alice.UserID, "tx", amqp.ActionCreated)
	if err := w.HandleLedgerChanged(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	rows, ok := out.Tab(alice.UserID)
	if !ok || len(rows) != 2 {
		t.Fatalf("expected header plus one row, got %v", rows)
	}
	if got := strings.Join(rows[1][:7], "|"); got != "2024-03-09|expense|4.20|USD|Coffee|Main|Food & Dining" {
		t.Fatalf("row = %s", got)
	}
}

func TestStaleMessagesAreSkipped(t *testing.T) {
	mem, alice, _ := seed(t)
	out := sheetsmem.New()
	w := NewMirrorWorker(mem, out, 0, log.Discard())
	synced := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return synced }

	if err := w.SyncUser(context.Background(), alice.UserID); err != nil {
		t.Fatalf("sync: %v", err)
	}
	old := amqp.LedgerChangedMessage{UserID: alice.UserID, Action: amqp.ActionUpdated, Timestamp: synced.Add(-time.Second)}
	if err := w.HandleLedgerChanged(context.Background(), old); err != nil || out.Writes() != 1 {
		t.Fatalf("stale message should be a no-op: writes=%d err=%v", out.Writes(), err)
	}
	old.Action = amqp.ActionResync
	if err := w.HandleLedgerChanged(context.Background(), old); err != nil || out.Writes() != 2 {
		t.Fatalf("resync always rewrites: writes=%d err=%v", out.Writes(), err)
	}
	fresh := amqp.LedgerChangedMessage{UserID: alice.UserID, Action: amqp.ActionDeleted, Timestamp: synced.Add(time.Second)}
	if err := w.HandleLedgerChanged(context.Background(), fresh); err != nil || out.Writes() != 3 {
		t.Fatalf("newer message should rewrite: writes=%d err=%v", out.Writes(), err)
	}
}

type flakyWriter struct {
	sheets.LedgerWriter
	failFor string
}

func (f flakyWriter) WriteLedger(ctx context.Context, userID string, txs []core.Transaction) error {
	if userID == f.failFor {
		return errors.New("quota exceeded")
	}
	return f.LedgerWriter.WriteLedger(ctx, userID, txs)
}

func TestResyncAllContinuesPastFailures(t *testing.T) {
	mem, alice, bob := seed(t)
	out := sheetsmem.New()
	w := NewMirrorWorker(mem, flakyWriter{LedgerWriter: out, failFor: alice.UserID}, 0, log.Discard())

	synced, err := w.ResyncAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected joined failure, got %v", err)
	}
	if synced != 1 {
		t.Fatalf("synced = %d, want 1", synced)
	}
	if rows, ok := out.Tab(bob.UserID); !ok || len(rows) != 1 {
		t.Fatalf("bob's empty ledger should still be mirrored: %v", rows)
	}
}

type oneShotConsumer struct {
	msg     amqp.LedgerChangedMessage
	handled chan error
}

func (c oneShotConsumer) ConsumeLedgerChanges(ctx context.Context, handler amqp.Handler) error {
	c.handled <- handler(ctx, c.msg)
	<-ctx.Done()
	return ctx.Err()
}

func TestRunConsumesUntilCanceled(t *testing.T) {
	mem, alice, bob := seed(t)
	out := sheetsmem.New()
	w := NewMirrorWorker(mem, out, time.Hour, log.Discard())
	consumer := oneShotConsumer{
		msg:     amqp.NewLedgerChangedMessage(alice.UserID, "", amqp.ActionResync),
		handled: make(chan error, 1),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, consumer) }()

	select {
	case err := <-consumer.handled:
		if err != nil {
			t.Fatalf("handler: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("consumer never invoked")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run should stop cleanly, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// Startup resync covers both users; the message rewrites alice once more.
	if out.Writes() != 3 || len(out.Tabs()) != 2 {
		t.Fatalf("writes=%d tabs=%v", out.Writes(), out.Tabs())
	}
	if _, ok := out.Tab(bob.UserID); !ok {
		t.Fatal("bob missing after startup resync")
	}
}
