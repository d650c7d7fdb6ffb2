package store

import "fintrack/internal/core"

// DefaultCategories are the shared categories every user can pick from.
// The SQLite migrations seed the same rows.
func DefaultCategories() []core.Category {
	return []core.Category{
		{ID: "cat-food", Name: "Food & Dining", Type: core.Expense, Color: "#ef4444", Icon: "utensils"},
		{ID: "cat-transport", Name: "Transport", Type: core.Expense, Color: "#f59e0b", Icon: "car"},
		{ID: "cat-housing", Name: "Housing", Type: core.Expense, Color: "#8b5cf6", Icon: "home"},
		{ID: "cat-entertainment", Name: "Entertainment", Type: core.Expense, Color: "#ec4899", Icon: "film"},
		{ID: "cat-health", Name: "Health", Type: core.Expense, Color: "#14b8a6", Icon: "heart"},
		{ID: "cat-shopping", Name: "Shopping", Type: core.Expense, Color: "#3b82f6", Icon: "shopping-bag"},
		{ID: "cat-salary", Name: "Salary", Type: core.Income, Color: "#22c55e", Icon: "briefcase"},
		{ID: "cat-freelance", Name: "Freelance", Type: core.Income, Color: "#10b981", Icon: "laptop"},
		{ID: "cat-investments", Name: "Investments", Type: core.Income, Color: "#06b6d4", Icon: "trending-up"},
		{ID: "cat-gifts", Name: "Gifts", Type: core.Income, Color: "#a855f7", Icon: "gift"},
	}
}
