// Package assistant answers free-text questions about a user's finances by
// matching keywords against a fixed set of templates.
package assistant

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// RecentWindow is how many of the newest transactions feed the income and
// expense figures.
const RecentWindow = 20

// Rand picks the advice tip.
type Rand interface {
	Intn(n int) int
}

// SharedRand draws from math/rand/v2's global source, which is safe for
// concurrent requests.
type SharedRand struct{}

func (SharedRand) Intn(n int) int { return rand.IntN(n) }

// Snapshot is the financial context a reply is built from.
type Snapshot struct {
	WalletCount    int
	TotalBalance   decimal.Decimal
	RecentIncome   decimal.Decimal
	RecentExpenses decimal.Decimal
	Currency       string
}

// NewSnapshot sums wallet balances and the income and expenses of recent.
// The first wallet's currency is used for display.
func NewSnapshot(wallets []core.Wallet, recent []core.Transaction, fallbackCurrency string) Snapshot {
	s := Snapshot{
		WalletCount:    len(wallets),
		TotalBalance:   decimal.Zero,
		RecentIncome:   decimal.Zero,
		RecentExpenses: decimal.Zero,
		Currency:       fallbackCurrency,
	}
	for i, w := range wallets {
		if i == 0 && w.Currency != "" {
			s.Currency = w.Currency
		}
		s.TotalBalance = s.TotalBalance.Add(w.Balance)
	}
	for _, tx := range recent {
		switch tx.Type {
		case core.Income:
			s.RecentIncome = s.RecentIncome.Add(tx.Amount)
		case core.Expense:
			s.RecentExpenses = s.RecentExpenses.Add(tx.Amount)
		}
	}
	return s
}

var tips = [...]string{
	"Pay yourself first: move a fixed share of every paycheck into savings before spending anything.",
	"Review your subscriptions each month and cancel the ones you no longer use.",
	"Keep an emergency fund that covers three to six months of expenses.",
	"Wait 24 hours before any unplanned purchase over a set amount.",
	"Track every expense for a month; small recurring costs add up quickly.",
}

// Tips returns the advice pool in a stable order.
func Tips() []string {
	return tips[:]
}

type topic int

const (
	topicNone topic = iota
	topicBalance
	topicIncome
	topicExpense
	topicSaving
	topicWallet
	topicAdvice
)

// keywords are checked in order; the first group with a match wins.
var keywords = []struct {
	topic topic
	words []string
}{
	{topicBalance, []string{"balance", "total"}},
	{topicIncome, []string{"income"}},
	{topicExpense, []string{"expense", "spending"}},
	{topicSaving, []string{"save", "saving"}},
	{topicWallet, []string{"wallet"}},
	{topicAdvice, []string{"advice", "tip", "help"}},
}

func classify(input string) topic {
	lower := strings.ToLower(input)
	for _, k := range keywords {
		for _, w := range k.words {
			if strings.Contains(lower, w) {
				return k.topic
			}
		}
	}
	return topicNone
}

type Responder struct {
	money core.MoneyFormatter
	rand  Rand
}

func NewResponder(money core.MoneyFormatter, rand Rand) *Responder {
	return &Responder{money: money, rand: rand}
}

// Reply answers input from s. It never fails; unmatched input gets the
// capability message quoting the input as typed.
func (r *Responder) Reply(input string, s Snapshot) string {
	format := func(d decimal.Decimal) string { return r.money.Format(d, s.Currency) }

	switch classify(input) {
	case topicBalance:
		return fmt.Sprintf("Your total balance across %s is %s.",
			plural(s.WalletCount, "wallet"), format(s.TotalBalance))
	case topicIncome:
		return fmt.Sprintf("Your income over your last %d transactions is %s.",
			RecentWindow, format(s.RecentIncome))
	case topicExpense:
		return fmt.Sprintf("Your expenses over your last %d transactions are %s.",
			RecentWindow, format(s.RecentExpenses))
	case topicSaving:
		net := s.RecentIncome.Sub(s.RecentExpenses)
		switch {
		case net.IsZero():
			return "You broke even recently. Setting aside even a small amount each month builds a cushion."
		case net.IsPositive():
			return fmt.Sprintf("Nice work: you kept %s of %s earned recently. Consider moving part of it into savings.",
				format(net), format(s.RecentIncome))
		}
		return fmt.Sprintf("Recently you spent %s more than you earned. Look for an expense category you can trim.",
			format(net.Abs()))
	case topicWallet:
		return fmt.Sprintf("You have %s with a combined balance of %s.",
			plural(s.WalletCount, "wallet"), format(s.TotalBalance))
	case topicAdvice:
		return "Here's a tip: " + tips[r.rand.Intn(len(tips))]
	}
	return "I can tell you about your balance, income, expenses, savings and wallets, or share a money tip. " +
		"I didn't understand \"" + input + "\". Try asking about one of those."
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
