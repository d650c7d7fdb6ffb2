package http

import (
	"errors"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/store"
)

// walletForm keeps what the user typed so a rejected form re-renders intact.
type walletForm struct {
	ID       string
	Name     string
	Balance  string
	Type     string
	Color    string
	Currency string
	Error    string
	// OOB marks a form swapped out of band next to a refreshed list.
	OOB bool
}

func walletFormFrom(p *RequestBodyParser, id string) walletForm {
	return walletForm{
		ID:       id,
		Name:     p.Get("name"),
		Balance:  p.Get("balance"),
		Type:     p.Get("type"),
		Color:    p.Get("color"),
		Currency: p.Get("currency"),
	}
}

func walletFormOf(w core.Wallet) walletForm {
	return walletForm{
		ID:       w.ID,
		Name:     w.Name,
		Balance:  w.Balance.StringFixed(2),
		Type:     string(w.Type),
		Color:    w.Color,
		Currency: w.Currency,
	}
}

func newWalletForm(currency string) walletForm {
	return walletForm{
		Balance:  "0.00",
		Type:     string(core.WalletPersonal),
		Color:    core.DefaultWalletColor,
		Currency: currency,
	}
}

// IsEdit selects the update endpoint in the template.
func (f walletForm) IsEdit() bool { return f.ID != "" }

func (f walletForm) wallet() (core.Wallet, error) {
	balance, err := core.ParseBalance(f.Balance)
	if err != nil {
		return core.Wallet{}, &services.ValidationError{Field: "balance", Err: err}
	}
	return core.Wallet{
		ID:       f.ID,
		Name:     f.Name,
		Balance:  balance,
		Type:     core.WalletType(f.Type),
		Color:    f.Color,
		Currency: f.Currency,
	}, nil
}

// transactionForm is the transaction counterpart of walletForm. Wallets and
// Categories fill the select boxes; Categories is already filtered by Type.
type transactionForm struct {
	ID          string
	Type        string
	Amount      string
	Description string
	Date        string
	WalletID    string
	CategoryID  string
	Wallets     []core.Wallet
	Categories  []core.Category
	Error       string
	OOB         bool
}

func transactionFormFrom(p *RequestBodyParser, id string) transactionForm {
	return transactionForm{
		ID:          id,
		Type:        p.Get("type"),
		Amount:      p.Get("amount"),
		Description: p.Get("description"),
		Date:        p.Get("date"),
		WalletID:    p.Get("wallet_id"),
		CategoryID:  p.Get("category_id"),
	}
}

func transactionFormOf(t core.Transaction) transactionForm {
	return transactionForm{
		ID:          t.ID,
		Type:        string(t.Type),
		Amount:      t.Amount.StringFixed(2),
		Description: t.Description,
		Date:        t.Date.String(),
		WalletID:    t.WalletID,
		CategoryID:  t.CategoryID,
	}
}

func newTransactionForm(today time.Time) transactionForm {
	return transactionForm{
		Type: string(core.Expense),
		Date: today.Format(time.DateOnly),
	}
}

func (f transactionForm) IsEdit() bool { return f.ID != "" }

// withChoices fills the select options; a category of the other type is
// dropped from the selection.
func (f transactionForm) withChoices(wallets []core.Wallet, cats []core.Category) transactionForm {
	f.Wallets = wallets
	f.Categories, f.CategoryID = services.CategoryChoices(cats, core.TransactionType(f.Type), f.CategoryID)
	return f
}

func (f transactionForm) transaction() (core.Transaction, error) {
	amount, err := core.ParseAmount(f.Amount)
	if err != nil {
		return core.Transaction{}, &services.ValidationError{Field: "amount", Err: err}
	}
	date, err := core.ParseDate(f.Date)
	if err != nil {
		return core.Transaction{}, &services.ValidationError{Field: "date", Err: err}
	}
	return core.Transaction{
		ID:          f.ID,
		Type:        core.TransactionType(f.Type),
		Amount:      amount,
		Description: f.Description,
		Date:        date,
		WalletID:    f.WalletID,
		CategoryID:  f.CategoryID,
	}, nil
}

// userMessage turns a service error into text safe to show. Anything that is
// not an input problem becomes fallback.
func userMessage(err error, fallback string) string {
	var v *services.ValidationError
	switch {
	case errors.As(err, &v):
		return capitalize(v.Err.Error())
	case errors.Is(err, store.ErrNotFound):
		return "That item no longer exists."
	case errors.Is(err, store.ErrInvalidCredentials),
		errors.Is(err, store.ErrEmailTaken),
		errors.Is(err, store.ErrConfirmationPending):
		return capitalize(err.Error())
	}
	return fallback
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
