package services

import (
	"context"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/store"
)

// LedgerPublisher announces transaction changes to the mirror worker.
type LedgerPublisher interface {
	PublishLedgerChanged(ctx context.Context, msg amqp.LedgerChangedMessage) error
}

// TransactionService edits transactions and publishes a ledger change after
// each successful mutation. Publishing is best effort.
type TransactionService struct {
	txs        store.TransactionStore
	categories store.CategoryReader
	publisher  LedgerPublisher
	logger     *log.Logger
	events     *log.StructuredLogger
}

// NewTransactionService builds the editor; publisher may be nil.
func NewTransactionService(txs store.TransactionStore, categories store.CategoryReader, publisher LedgerPublisher, logger *log.Logger) *TransactionService {
	l := logger.WithComponent(log.ComponentTransaction)
	return &TransactionService{
		txs:        txs,
		categories: categories,
		publisher:  publisher,
		logger:     l,
		events:     log.NewStructuredLogger(l),
	}
}

// List returns transactions newest first with wallet and category joined.
func (s *TransactionService) List(ctx context.Context, id core.Identity) ([]core.Transaction, error) {
	txs, err := s.txs.ListTransactions(ctx, id, store.TransactionQuery{})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *TransactionService) Get(ctx context.Context, id core.Identity, txID string) (core.Transaction, error) {
	txs, err := s.List(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	for _, t := range txs {
		if t.ID == txID {
			return t, nil
		}
	}
	return core.Transaction{}, store.ErrNotFound
}

// Categories returns the categories the user can pick from.
func (s *TransactionService) Categories(ctx context.Context, id core.Identity) ([]core.Category, error) {
	cats, err := s.categories.ListCategories(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

func (s *TransactionService) Create(ctx context.Context, id core.Identity, t core.Transaction) (Reloaded[[]core.Transaction], error) {
	return MutateAndReload(ctx, s.logger, log.OpCreate, func(ctx context.Context) error {
		if err := s.prepare(ctx, id, &t); err != nil {
			return err
		}
		created, err := s.txs.CreateTransaction(ctx, id, t)
		if err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		s.changed(ctx, id, created, amqp.ActionCreated, log.OpCreate)
		return nil
	}, s.reload(id))
}

// Update replaces every editable field of the transaction with t.ID.
func (s *TransactionService) Update(ctx context.Context, id core.Identity, t core.Transaction) (Reloaded[[]core.Transaction], error) {
	return MutateAndReload(ctx, s.logger, log.OpUpdate, func(ctx context.Context) error {
		if t.ID == "" {
			return store.ErrNotFound
		}
		if err := s.prepare(ctx, id, &t); err != nil {
			return err
		}
		if err := s.txs.UpdateTransaction(ctx, id, t); err != nil {
			return fmt.Errorf("update transaction %s: %w", t.ID, err)
		}
		s.changed(ctx, id, t, amqp.ActionUpdated, log.OpUpdate)
		return nil
	}, s.reload(id))
}

func (s *TransactionService) Delete(ctx context.Context, id core.Identity, txID string) (Reloaded[[]core.Transaction], error) {
	return MutateAndReload(ctx, s.logger, log.OpDelete, func(ctx context.Context) error {
		if err := s.txs.DeleteTransaction(ctx, id, txID); err != nil {
			return fmt.Errorf("delete transaction %s: %w", txID, err)
		}
		s.changed(ctx, id, core.Transaction{ID: txID}, amqp.ActionDeleted, log.OpDelete)
		return nil
	}, s.reload(id))
}

func (s *TransactionService) reload(id core.Identity) func(context.Context) ([]core.Transaction, error) {
	return func(ctx context.Context) ([]core.Transaction, error) { return s.List(ctx, id) }
}

// prepare normalizes and validates t. A chosen category must exist and share
// the transaction's type.
func (s *TransactionService) prepare(ctx context.Context, id core.Identity, t *core.Transaction) error {
	t.Normalize()
	if err := t.Validate(); err != nil {
		return invalid("transaction", err)
	}
	if t.CategoryID == "" {
		return nil
	}
	cats, err := s.Categories(ctx, id)
	if err != nil {
		return err
	}
	c, ok := findCategory(cats, t.CategoryID)
	if !ok {
		return invalid("category", store.ErrNotFound)
	}
	if c.Type != t.Type {
		return invalid("category", core.ErrCategoryTypeMismatch)
	}
	return nil
}

func (s *TransactionService) changed(ctx context.Context, id core.Identity, t core.Transaction, action, op string) {
	amount := ""
	if !t.Amount.IsZero() {
		amount = t.Amount.StringFixed(2)
	}
	s.events.LogTransactionChanged(ctx, op, id.UserID, t.ID, string(t.Type), amount)

	if s.publisher == nil {
		return
	}
	msg := amqp.NewLedgerChangedMessage(id.UserID, t.ID, action)
	if err := s.publisher.PublishLedgerChanged(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish ledger change",
			log.FieldUserID, id.UserID,
			log.FieldTransactionID, t.ID,
			log.FieldError, err.Error())
	}
}
