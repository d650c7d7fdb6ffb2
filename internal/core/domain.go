package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

const (
	WalletPersonal   WalletType = "personal"
	WalletBusiness   WalletType = "business"
	WalletInvestment WalletType = "investment"

	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	DefaultWalletColor = "#6366f1"
	DefaultCurrency    = "USD"
)

type (
	WalletType      string
	TransactionType string

	Date struct {
		time.Time
	}

	Wallet struct {
		ID        string
		UserID    string
		Name      string
		Balance   decimal.Decimal
		Type      WalletType
		Color     string
		Currency  string
		CreatedAt time.Time
	}

	Category struct {
		ID     string
		UserID string // empty for shared defaults
		Name   string
		Type   TransactionType
		Color  string
		Icon   string
	}

	// WalletRef is the wallet projection joined onto a transaction.
	WalletRef struct {
		Name     string
		Color    string
		Currency string
	}

	Transaction struct {
		ID          string
		UserID      string
		Type        TransactionType
		Amount      decimal.Decimal
		Description string
		Date        Date
		WalletID    string
		CategoryID  string // empty when uncategorized
		CreatedAt   time.Time

		// Joined on read paths only.
		Wallet   *WalletRef
		Category *Category
	}

	ChatMessage struct {
		ID        string
		UserID    string
		Message   string
		Response  string
		CreatedAt time.Time
	}
)

var (
	ErrEmptyName              = errors.New("name is required")
	ErrNameTooLong            = errors.New("name too long (max 100 characters)")
	ErrInvalidWalletType      = errors.New("invalid wallet type")
	ErrInvalidCurrency        = errors.New("invalid currency code")
	ErrInvalidColor           = errors.New("invalid color")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrMissingWallet          = errors.New("wallet is required")
	ErrInvalidDate            = errors.New("invalid date")
	ErrDescriptionTooLong     = errors.New("description too long (max 200 characters)")
	ErrCategoryTypeMismatch   = errors.New("category does not match transaction type")
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// WalletTypes lists the selectable wallet types in display order.
func WalletTypes() []WalletType {
	return []WalletType{WalletPersonal, WalletBusiness, WalletInvestment}
}

func (t WalletType) Valid() bool {
	switch t {
	case WalletPersonal, WalletBusiness, WalletInvestment:
		return true
	}
	return false
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String returns the ISO form used by forms and the stores.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Normalize trims text fields and fills display defaults.
func (w *Wallet) Normalize() {
	w.Name = strings.TrimSpace(w.Name)
	w.Color = strings.TrimSpace(w.Color)
	if w.Color == "" {
		w.Color = DefaultWalletColor
	}
	w.Currency = strings.ToUpper(strings.TrimSpace(w.Currency))
	if w.Currency == "" {
		w.Currency = DefaultCurrency
	}
	w.Balance = w.Balance.Round(2)
}

func (w Wallet) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(w.Name) > 100 {
		return ErrNameTooLong
	}
	if !w.Type.Valid() {
		return ErrInvalidWalletType
	}
	if _, err := currency.ParseISO(w.Currency); err != nil {
		return ErrInvalidCurrency
	}
	if !hexColor.MatchString(w.Color) {
		return ErrInvalidColor
	}
	return nil
}

func (t *Transaction) Normalize() {
	t.Description = strings.TrimSpace(t.Description)
	t.WalletID = strings.TrimSpace(t.WalletID)
	t.CategoryID = strings.TrimSpace(t.CategoryID)
	t.Amount = t.Amount.Round(2)
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidTransactionType
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.WalletID) == "" {
		return ErrMissingWallet
	}
	if utf8.RuneCountInString(t.Description) > 200 {
		return ErrDescriptionTooLong
	}
	return nil
}

// IsCategorized reports whether the joined category is present.
func (t Transaction) IsCategorized() bool {
	return t.Category != nil
}
