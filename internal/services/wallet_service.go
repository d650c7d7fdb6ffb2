package services

import (
	"context"
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/store"
)

// WalletService edits wallets. Every change is followed by a fresh listing.
type WalletService struct {
	store  store.WalletStore
	logger *log.Logger
}

func NewWalletService(s store.WalletStore, logger *log.Logger) *WalletService {
	return &WalletService{store: s, logger: logger.WithComponent(log.ComponentWallet)}
}

// List returns the user's wallets, oldest first.
func (s *WalletService) List(ctx context.Context, id core.Identity) ([]core.Wallet, error) {
	ws, err := s.store.ListWallets(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	return ws, nil
}

func (s *WalletService) Get(ctx context.Context, id core.Identity, walletID string) (core.Wallet, error) {
	ws, err := s.List(ctx, id)
	if err != nil {
		return core.Wallet{}, err
	}
	for _, w := range ws {
		if w.ID == walletID {
			return w, nil
		}
	}
	return core.Wallet{}, store.ErrNotFound
}

func (s *WalletService) Create(ctx context.Context, id core.Identity, w core.Wallet) (Reloaded[[]core.Wallet], error) {
	return MutateAndReload(ctx, s.logger, log.OpCreate, func(ctx context.Context) error {
		if err := prepareWallet(&w); err != nil {
			return err
		}
		created, err := s.store.CreateWallet(ctx, id, w)
		if err != nil {
			return fmt.Errorf("create wallet: %w", err)
		}
		s.logger.InfoContext(ctx, "Wallet created", log.FieldUserID, id.UserID, log.FieldWalletID, created.ID)
		return nil
	}, s.reload(id))
}

// Update replaces every editable field of the wallet with w.ID.
func (s *WalletService) Update(ctx context.Context, id core.Identity, w core.Wallet) (Reloaded[[]core.Wallet], error) {
	return MutateAndReload(ctx, s.logger, log.OpUpdate, func(ctx context.Context) error {
		if w.ID == "" {
			return store.ErrNotFound
		}
		if err := prepareWallet(&w); err != nil {
			return err
		}
		if err := s.store.UpdateWallet(ctx, id, w); err != nil {
			return fmt.Errorf("update wallet %s: %w", w.ID, err)
		}
		s.logger.InfoContext(ctx, "Wallet updated", log.FieldUserID, id.UserID, log.FieldWalletID, w.ID)
		return nil
	}, s.reload(id))
}

// Delete removes the wallet; the store drops its transactions with it.
func (s *WalletService) Delete(ctx context.Context, id core.Identity, walletID string) (Reloaded[[]core.Wallet], error) {
	return MutateAndReload(ctx, s.logger, log.OpDelete, func(ctx context.Context) error {
		if err := s.store.DeleteWallet(ctx, id, walletID); err != nil {
			return fmt.Errorf("delete wallet %s: %w", walletID, err)
		}
		s.logger.InfoContext(ctx, "Wallet deleted", log.FieldUserID, id.UserID, log.FieldWalletID, walletID)
		return nil
	}, s.reload(id))
}

func (s *WalletService) reload(id core.Identity) func(context.Context) ([]core.Wallet, error) {
	return func(ctx context.Context) ([]core.Wallet, error) { return s.List(ctx, id) }
}

func prepareWallet(w *core.Wallet) error {
	w.Normalize()
	if err := w.Validate(); err != nil {
		return invalid("wallet", err)
	}
	return nil
}
