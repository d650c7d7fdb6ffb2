package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/log"
	"fintrack/internal/sheets"
	"fintrack/internal/store"
)

// Consumer delivers ledger change messages until ctx ends.
type Consumer interface {
	ConsumeLedgerChanges(ctx context.Context, handler amqp.Handler) error
}

// MirrorWorker keeps one spreadsheet tab per user in step with the ledger.
// Every message rewrites the whole tab from a fresh read, so redelivered or
// reordered messages converge on the same result.
type MirrorWorker struct {
	source   store.LedgerSource
	sheets   sheets.LedgerWriter
	interval time.Duration
	logger   *log.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastSync map[string]time.Time
}

func NewMirrorWorker(source store.LedgerSource, writer sheets.LedgerWriter, interval time.Duration, logger *log.Logger) *MirrorWorker {
	return &MirrorWorker{
		source:   source,
		sheets:   writer,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
		now:      time.Now,
		lastSync: map[string]time.Time{},
	}
}

// HandleLedgerChanged rewrites the user's tab. Messages published before the
// tab was last written are already reflected there and are skipped.
func (w *MirrorWorker) HandleLedgerChanged(ctx context.Context, msg amqp.LedgerChangedMessage) error {
	if msg.Action != amqp.ActionResync && !msg.Timestamp.IsZero() {
		w.mu.Lock()
		last, ok := w.lastSync[msg.UserID]
		w.mu.Unlock()
		if ok && msg.Timestamp.Before(last) {
			w.logger.DebugContext(ctx, "Skipping stale ledger message",
				log.FieldUserID, msg.UserID,
				log.FieldTransactionID, msg.TransactionID)
			return nil
		}
	}

	w.logger.InfoContext(ctx, "Processing ledger message",
		log.FieldUserID, msg.UserID,
		log.FieldTransactionID, msg.TransactionID,
		log.FieldOperation, msg.Action)
	return w.SyncUser(ctx, msg.UserID)
}

// SyncUser mirrors one user's full ledger.
func (w *MirrorWorker) SyncUser(ctx context.Context, userID string) error {
	started := w.now()
	txs, err := w.source.ListAllTransactions(ctx, userID)
	if err != nil {
		return fmt.Errorf("load ledger for %s: %w", userID, err)
	}
	if err := w.sheets.WriteLedger(ctx, userID, txs); err != nil {
		return fmt.Errorf("write ledger for %s: %w", userID, err)
	}

	w.mu.Lock()
	w.lastSync[userID] = started
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Ledger mirrored",
		log.FieldUserID, userID,
		log.FieldCount, len(txs))
	return nil
}

// ResyncAll mirrors every user. A failing user does not stop the others;
// all failures are returned joined.
func (w *MirrorWorker) ResyncAll(ctx context.Context) (int, error) {
	ids, err := w.source.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}
	synced := 0
	var errs []error
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := w.SyncUser(ctx, id); err != nil {
			w.logger.ErrorContext(ctx, "Failed to mirror ledger",
				log.FieldUserID, id,
				log.FieldError, err.Error())
			errs = append(errs, err)
			continue
		}
		synced++
	}
	w.logger.InfoContext(ctx, "Full resync completed",
		"total", len(ids),
		"synced", synced,
		"errors", len(errs))
	return synced, errors.Join(errs...)
}

// Run resyncs everything once, then consumes change messages while resyncing
// on every interval tick. It returns when ctx ends or the consumer gives up.
func (w *MirrorWorker) Run(ctx context.Context, consumer Consumer) error {
	if _, err := w.ResyncAll(ctx); err != nil {
		w.logger.WarnContext(ctx, "Startup resync incomplete", log.FieldError, err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.ConsumeLedgerChanges(gctx, w.HandleLedgerChanged)
	})
	g.Go(func() error {
		w.resyncLoop(gctx)
		return nil
	})
	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (w *MirrorWorker) resyncLoop(ctx context.Context) {
	if w.interval <= 0 {
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.ResyncAll(ctx); err != nil && ctx.Err() == nil {
				w.logger.WarnContext(ctx, "Periodic resync incomplete", log.FieldError, err.Error())
			}
		}
	}
}
