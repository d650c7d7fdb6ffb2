package services

import (
	"context"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/store"
)

// CategoryChoices returns the categories usable for a transaction of type t
// and the selection to keep. A selected category of another type is cleared.
func CategoryChoices(all []core.Category, t core.TransactionType, selected string) ([]core.Category, string) {
	var out []core.Category
	keep := ""
	for _, c := range all {
		if c.Type != t {
			continue
		}
		out = append(out, c)
		if c.ID == selected {
			keep = selected
		}
	}
	return out, keep
}

func findCategory(all []core.Category, id string) (core.Category, bool) {
	for _, c := range all {
		if c.ID == id {
			return c, true
		}
	}
	return core.Category{}, false
}

// CategoryCache serves category lists from an LRU. Categories are read-only
// here, so entries only leave on expiry or sign-out.
type CategoryCache struct {
	next  store.CategoryReader
	cache cache.Cache[[]core.Category]
}

const categoryKeySuffix = ":categories"

func NewCategoryCache(next store.CategoryReader, size int, ttl time.Duration) (*CategoryCache, *cache.LRUCache[[]core.Category]) {
	lru := cache.NewLRUCache[[]core.Category](size, ttl)
	return &CategoryCache{next: next, cache: lru}, lru
}

func (c *CategoryCache) ListCategories(ctx context.Context, id core.Identity) ([]core.Category, error) {
	key := id.UserID + categoryKeySuffix
	if cats, ok := c.cache.Get(key); ok {
		return cats, nil
	}
	cats, err := c.next.ListCategories(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, cats)
	return cats, nil
}

// Forget drops everything cached for the user.
func (c *CategoryCache) Forget(userID string) {
	c.cache.DeletePrefix(userID + ":")
}
