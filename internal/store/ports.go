// Package store defines the data access ports the application consumes.
//
// Every call carries the caller's identity explicitly; implementations scope
// reads and writes to that user.
package store

import (
	"context"
	"errors"

	"fintrack/internal/core"
)

// Sentinel errors shared by every backend. ErrConfirmationPending means the
// account exists but its email must be confirmed before a session is issued.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailTaken          = errors.New("email already registered")
	ErrUnauthenticated     = errors.New("not signed in")
	ErrConfirmationPending = errors.New("email confirmation pending")
)

// TransactionQuery narrows a transaction listing.
type TransactionQuery struct {
	// Ascending orders by date oldest first; the default is newest first.
	Ascending bool
	// Limit caps the number of rows; zero means no limit.
	Limit int
}

// Ports for outbound adapters.
type (
	WalletStore interface {
		ListWallets(ctx context.Context, id core.Identity) ([]core.Wallet, error)
		CreateWallet(ctx context.Context, id core.Identity, w core.Wallet) (core.Wallet, error)
		UpdateWallet(ctx context.Context, id core.Identity, w core.Wallet) error
		DeleteWallet(ctx context.Context, id core.Identity, walletID string) error
	}

	TransactionStore interface {
		// ListTransactions returns transactions joined with wallet and category.
		ListTransactions(ctx context.Context, id core.Identity, q TransactionQuery) ([]core.Transaction, error)
		CreateTransaction(ctx context.Context, id core.Identity, t core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, id core.Identity, t core.Transaction) error
		DeleteTransaction(ctx context.Context, id core.Identity, txID string) error
	}

	CategoryReader interface {
		// ListCategories returns the user's categories plus shared defaults.
		ListCategories(ctx context.Context, id core.Identity) ([]core.Category, error)
	}

	ChatLog interface {
		AppendChat(ctx context.Context, id core.Identity, m core.ChatMessage) error
		ListChat(ctx context.Context, id core.Identity, limit int) ([]core.ChatMessage, error)
	}

	// Authenticator is the session collaborator: it establishes and ends
	// identities and manages passwords.
	Authenticator interface {
		SignIn(ctx context.Context, email, password string) (core.Identity, error)
		SignUp(ctx context.Context, email, password string) (core.Identity, error)
		// RequestPasswordReset never reveals whether the email exists.
		RequestPasswordReset(ctx context.Context, email string) error
		UpdatePassword(ctx context.Context, id core.Identity, password string) error
		SignOut(ctx context.Context, id core.Identity) error
	}

	// LedgerSource reads transactions without a user session. Only trusted
	// processes such as the mirror worker use it.
	LedgerSource interface {
		ListUserIDs(ctx context.Context) ([]string, error)
		ListAllTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
	}

	// Store bundles every port a backend provides.
	Store interface {
		WalletStore
		TransactionStore
		CategoryReader
		ChatLog
		Authenticator
	}
)
