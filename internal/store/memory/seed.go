package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// SeedDemo registers a demo account with a few wallets and six months of
// transactions relative to now. It is meant for local runs of the memory
// backend.
func (s *Store) SeedDemo(ctx context.Context, email, password string, now time.Time) (core.Identity, error) {
	id, err := s.SignUp(ctx, email, password)
	if err != nil {
		return core.Identity{}, fmt.Errorf("seed user: %w", err)
	}

	wallets := []core.Wallet{
		{Name: "Checking", Balance: decimal.RequireFromString("2450.00"), Type: core.WalletPersonal, Color: "#6366f1", Currency: "USD"},
		{Name: "Studio", Balance: decimal.RequireFromString("8120.35"), Type: core.WalletBusiness, Color: "#10b981", Currency: "USD"},
		{Name: "Brokerage", Balance: decimal.RequireFromString("15300.00"), Type: core.WalletInvestment, Color: "#f59e0b", Currency: "USD"},
	}
	created := make([]core.Wallet, 0, len(wallets))
	for _, w := range wallets {
		cw, err := s.CreateWallet(ctx, id, w)
		if err != nil {
			return core.Identity{}, fmt.Errorf("seed wallet %s: %w", w.Name, err)
		}
		created = append(created, cw)
	}

	type entry struct {
		typ      core.TransactionType
		amount   string
		desc     string
		day      int
		wallet   int
		category string
	}
	monthly := []entry{
		{core.Income, "4200.00", "Salary", 1, 0, "cat-salary"},
		{core.Expense, "1350.00", "Rent", 2, 0, "cat-housing"},
		{core.Expense, "86.40", "Groceries", 6, 0, "cat-food"},
		{core.Expense, "42.10", "Metro card", 9, 0, "cat-transport"},
		{core.Income, "900.00", "Client invoice", 14, 1, "cat-freelance"},
		{core.Expense, "59.99", "Concert tickets", 18, 0, "cat-entertainment"},
		{core.Expense, "23.50", "Pharmacy", 21, 0, ""},
	}
	for back := 5; back >= 0; back-- {
		month := time.Date(now.Year(), now.Month()-time.Month(back), 1, 0, 0, 0, 0, time.UTC)
		for _, e := range monthly {
			day := month.AddDate(0, 0, e.day-1)
			if back == 0 && day.After(now) {
				continue
			}
			tx := core.Transaction{
				Type:        e.typ,
				Amount:      decimal.RequireFromString(e.amount),
				Description: e.desc,
				Date:        core.Date{Time: day},
				WalletID:    created[e.wallet].ID,
				CategoryID:  e.category,
			}
			if _, err := s.CreateTransaction(ctx, id, tx); err != nil {
				return core.Identity{}, fmt.Errorf("seed transaction: %w", err)
			}
		}
	}
	return id, nil
}
