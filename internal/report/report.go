// Package report derives the monthly, per-category and global views of a
// transaction set. Every function is pure: callers refetch and recompute after
// each change instead of patching previous results.
package report

import (
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// WindowMonths is the number of trailing calendar months in the monthly view.
const WindowMonths = 6

type MonthBucket struct {
	Label   string // "Jan 2024"
	Year    int
	Month   time.Month
	Income  decimal.Decimal
	Expense decimal.Decimal
}

func (b MonthBucket) Net() decimal.Decimal {
	return b.Income.Sub(b.Expense)
}

type CategoryBucket struct {
	ID     string
	Name   string
	Color  string
	Amount decimal.Decimal
}

type Stats struct {
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	Net          decimal.Decimal
}

// Summary bundles the three derived views.
type Summary struct {
	Months     []MonthBucket
	Categories []CategoryBucket
	Stats      Stats
}

// MonthlyBuckets returns WindowMonths buckets, oldest first, ending with the
// month containing now. Transactions outside the window are ignored.
func MonthlyBuckets(now time.Time, txs []core.Transaction) []MonthBucket {
	buckets := emptyMonths(now)
	index := make(map[[2]int]int, len(buckets))
	for i, b := range buckets {
		index[[2]int{b.Year, int(b.Month)}] = i
	}
	for _, tx := range txs {
		i, ok := index[[2]int{tx.Date.Year(), int(tx.Date.Month())}]
		if !ok {
			continue
		}
		switch tx.Type {
		case core.Income:
			buckets[i].Income = buckets[i].Income.Add(tx.Amount)
		case core.Expense:
			buckets[i].Expense = buckets[i].Expense.Add(tx.Amount)
		}
	}
	return buckets
}

func emptyMonths(now time.Time) []MonthBucket {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	buckets := make([]MonthBucket, WindowMonths)
	for i := range buckets {
		m := first.AddDate(0, i-(WindowMonths-1), 0)
		buckets[i] = MonthBucket{
			Label:   m.Format("Jan 2006"),
			Year:    m.Year(),
			Month:   m.Month(),
			Income:  decimal.Zero,
			Expense: decimal.Zero,
		}
	}
	return buckets
}

// CategoryBuckets sums categorized expenses per category in first-seen
// order. Income and uncategorized transactions are left out entirely.
// Buckets are keyed by category id; two categories sharing a name stay
// separate.
func CategoryBuckets(txs []core.Transaction) []CategoryBucket {
	var out []CategoryBucket
	index := map[string]int{}
	for _, tx := range txs {
		if tx.Type != core.Expense || tx.Category == nil {
			continue
		}
		key := tx.Category.ID
		if key == "" {
			key = tx.CategoryID
		}
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, CategoryBucket{
				ID:     key,
				Name:   tx.Category.Name,
				Color:  tx.Category.Color,
				Amount: decimal.Zero,
			})
		}
		out[i].Amount = out[i].Amount.Add(tx.Amount)
	}
	return out
}

// ComputeStats sums income and expense over the whole set.
func ComputeStats(txs []core.Transaction) Stats {
	s := Stats{TotalIncome: decimal.Zero, TotalExpense: decimal.Zero}
	for _, tx := range txs {
		switch tx.Type {
		case core.Income:
			s.TotalIncome = s.TotalIncome.Add(tx.Amount)
		case core.Expense:
			s.TotalExpense = s.TotalExpense.Add(tx.Amount)
		}
	}
	s.Net = s.TotalIncome.Sub(s.TotalExpense)
	return s
}

func Build(now time.Time, txs []core.Transaction) Summary {
	return Summary{
		Months:     MonthlyBuckets(now, txs),
		Categories: CategoryBuckets(txs),
		Stats:      ComputeStats(txs),
	}
}

// EmptySummary is what a view shows when its data could not be loaded.
func EmptySummary(now time.Time) Summary {
	return Build(now, nil)
}

// Share returns part as a percentage of total, rounded to one decimal place.
// A zero total yields zero.
func Share(part, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	return part.Mul(decimal.NewFromInt(100)).Div(total).Round(1)
}

// MaxMonthValue is the largest income or expense across buckets, used to
// scale bar heights.
func MaxMonthValue(buckets []MonthBucket) decimal.Decimal {
	top := decimal.Zero
	for _, b := range buckets {
		if b.Income.GreaterThan(top) {
			top = b.Income
		}
		if b.Expense.GreaterThan(top) {
			top = b.Expense
		}
	}
	return top
}
