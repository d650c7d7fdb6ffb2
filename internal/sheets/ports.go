// Package sheets mirrors each user's ledger into a spreadsheet tab.
package sheets

import (
	"context"
	"strings"

	"fintrack/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerWriter replaces the mirrored ledger of one user with txs.
	LedgerWriter interface {
		WriteLedger(ctx context.Context, userID string, txs []core.Transaction) error
	}
)

// Header is the first row of every mirrored tab.
var Header = []string{"Date", "Type", "Amount", "Currency", "Description", "Wallet", "Category", "ID"}

// TabName is the tab holding a user's ledger. Sheet titles are capped at
// 100 characters.
func TabName(userID string) string {
	name := "ledger " + strings.TrimSpace(userID)
	if len(name) > 100 {
		name = name[:100]
	}
	return name
}

// Rows renders the header followed by one row per transaction, in the order
// given.
func Rows(txs []core.Transaction) [][]string {
	out := make([][]string, 0, len(txs)+1)
	out = append(out, append([]string(nil), Header...))
	for _, t := range txs {
		wallet, currency := "", ""
		if t.Wallet != nil {
			wallet, currency = t.Wallet.Name, t.Wallet.Currency
		}
		category := ""
		if t.Category != nil {
			category = t.Category.Name
		}
		out = append(out, []string{
			t.Date.String(),
			string(t.Type),
			t.Amount.StringFixed(2),
			currency,
			t.Description,
			wallet,
			category,
			t.ID,
		})
	}
	return out
}
