package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/fairyhunter13/ai-translator/internal/domain"
)

type source interface {
	ListModels(ctx context.Context, p domain.ProviderID, apiKey string) ([]Model, error)
}

type cachedList struct {
	models []Model
	at     time.Time
	hits   int
}

// Cache memoizes successful model listings per provider and key.
// Failed lookups are never cached.
type Cache struct {
	next    source
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*cachedList
}

// NewCache wraps next. A non-positive ttl disables caching.
func NewCache(next source, ttl time.Duration, maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 64
	}
	return &Cache{next: next, ttl: ttl, maxSize: maxSize, now: time.Now, entries: map[string]*cachedList{}}
}

func cacheKey(p domain.ProviderID, apiKey string) string {
	sum := sha256.Sum256([]byte(string(p) + "|" + apiKey))
	return hex.EncodeToString(sum[:])
}

// ListModels serves from cache while fresh, otherwise asks the wrapped lister.
func (c *Cache) ListModels(ctx context.Context, p domain.ProviderID, apiKey string) ([]Model, error) {
	if c.ttl <= 0 {
		return c.next.ListModels(ctx, p, apiKey)
	}
	key := cacheKey(p, apiKey)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if c.now().Sub(e.at) <= c.ttl {
			e.hits++
			out := slices.Clone(e.models)
			c.mu.Unlock()
			slog.Debug("model list cache hit", slog.String("provider", string(p)), slog.Int("models", len(out)))
			return out, nil
		}
		delete(c.entries, key)
	}
	c.mu.Unlock()

	models, err := c.next.ListModels(ctx, p, apiKey)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if len(c.entries) >= c.maxSize {
		c.evictLocked()
	}
	c.entries[key] = &cachedList{models: slices.Clone(models), at: c.now()}
	c.mu.Unlock()
	return models, nil
}

// Purge drops every cached listing.
func (c *Cache) Purge() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

// evictLocked removes the least used entry, oldest first on ties.
func (c *Cache) evictLocked() {
	var victim string
	var oldest time.Time
	lowest := -1
	for k, e := range c.entries {
		if lowest < 0 || e.hits < lowest || (e.hits == lowest && e.at.Before(oldest)) {
			victim, oldest, lowest = k, e.at, e.hits
		}
	}
	if victim != "" {
		delete(c.entries, victim)
	}
}
