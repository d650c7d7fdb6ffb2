package assistant

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/store"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message is too long")
)

// MaxMessageLength bounds, in characters, what a user can send in one message.
const MaxMessageLength = 500

type Service struct {
	wallets   store.WalletStore
	txs       store.TransactionStore
	chat      store.ChatLog
	responder *Responder
	currency  string
	logger    *log.Logger
	now       func() time.Time
}

func NewService(wallets store.WalletStore, txs store.TransactionStore, chat store.ChatLog,
	responder *Responder, currency string, logger *log.Logger) *Service {
	return &Service{
		wallets:   wallets,
		txs:       txs,
		chat:      chat,
		responder: responder,
		currency:  currency,
		logger:    logger.WithComponent(log.ComponentAssistant),
		now:       time.Now,
	}
}

// Snapshot fetches all wallets and the RecentWindow newest transactions.
func (s *Service) Snapshot(ctx context.Context, id core.Identity) (Snapshot, error) {
	var (
		wallets []core.Wallet
		recent  []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		wallets, err = s.wallets.ListWallets(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.txs.ListTransactions(gctx, id, store.TransactionQuery{Limit: RecentWindow})
		return err
	})
	if err := g.Wait(); err != nil {
		return NewSnapshot(nil, nil, s.currency), err
	}
	return NewSnapshot(wallets, recent, s.currency), nil
}

// Ask answers input from a fresh snapshot and records the exchange when a
// user is signed in. Fetch and log failures are logged; the reply is still
// returned.
func (s *Service) Ask(ctx context.Context, id core.Identity, input string) (core.ChatMessage, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return core.ChatMessage{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(input) > MaxMessageLength {
		return core.ChatMessage{}, ErrMessageTooLong
	}

	snap, err := s.Snapshot(ctx, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load assistant context",
			log.FieldUserID, id.UserID,
			log.FieldError, err.Error())
	}

	msg := core.ChatMessage{
		UserID:    id.UserID,
		Message:   input,
		Response:  s.responder.Reply(input, snap),
		CreatedAt: s.now(),
	}
	if id.IsZero() {
		return msg, nil
	}
	if err := s.chat.AppendChat(ctx, id, msg); err != nil {
		s.logger.WarnContext(ctx, "Failed to record chat exchange",
			log.FieldUserID, id.UserID,
			log.FieldError, err.Error())
	}
	return msg, nil
}

// History returns the newest limit exchanges, oldest first. Failures yield
// an empty history.
func (s *Service) History(ctx context.Context, id core.Identity, limit int) []core.ChatMessage {
	if id.IsZero() {
		return nil
	}
	msgs, err := s.chat.ListChat(ctx, id, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load chat history",
			log.FieldUserID, id.UserID,
			log.FieldError, err.Error())
		return nil
	}
	return msgs
}
