// Package ledger keeps the ordered list of verified models per provider.
// The head of each list (order 0) is the provider's current model.
package ledger

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/fairyhunter13/ai-translator/internal/domain"
	"github.com/fairyhunter13/ai-translator/internal/service/events"
)

// DefaultModelFunc yields the fallback model for a provider with an empty list.
type DefaultModelFunc func(domain.ProviderID) string

// Ledger persists verified_models and the derived current_models table.
type Ledger struct {
	mu       sync.RWMutex
	store    domain.KVStore
	defaults DefaultModelFunc
	pub      events.Publisher
	models   map[domain.ProviderID][]domain.VerifiedModel
}

// New builds an empty ledger. A nil defaults func falls back to domain.DefaultModels.
func New(store domain.KVStore, defaults DefaultModelFunc, pub events.Publisher) *Ledger {
	if defaults == nil {
		defaults = func(p domain.ProviderID) string { return domain.DefaultModels[p] }
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &Ledger{
		store:    store,
		defaults: defaults,
		pub:      pub,
		models:   map[domain.ProviderID][]domain.VerifiedModel{},
	}
}

// Load reads verified_models and sorts each list by stored order.
func (l *Ledger) Load(ctx context.Context) error {
	stored := map[domain.ProviderID][]domain.VerifiedModel{}
	if _, err := domain.LoadJSON(ctx, l.store, domain.KeyVerifiedModels, &stored); err != nil {
		return fmt.Errorf("op=ledger.load: %w", err)
	}
	next := map[domain.ProviderID][]domain.VerifiedModel{}
	for p, list := range stored {
		if !p.Valid() {
			continue
		}
		next[p] = normalize(sortByOrder(list))
	}
	l.mu.Lock()
	l.models = next
	l.mu.Unlock()
	return nil
}

// Add inserts name at order 0 and shifts the rest down.
func (l *Ledger) Add(ctx context.Context, p domain.ProviderID, name string) error {
	if !p.Valid() {
		return fmt.Errorf("op=ledger.add: %w: unknown provider %q", domain.ErrInvalidArgument, p)
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("op=ledger.add: %w: empty model name", domain.ErrInvalidArgument)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	cur := l.models[p]
	for _, m := range cur {
		if m.Name == name {
			return fmt.Errorf("op=ledger.add: %w: %s/%s", domain.ErrDuplicateModel, p, name)
		}
	}
	list := make([]domain.VerifiedModel, 0, len(cur)+1)
	list = append(list, domain.VerifiedModel{Name: name})
	list = append(list, cur...)
	if err := l.commitLocked(ctx, p, normalize(list)); err != nil {
		return fmt.Errorf("op=ledger.add: %w", err)
	}
	return nil
}

// Reorder moves the model at from to index to. Equal indexes are a no-op.
func (l *Ledger) Reorder(ctx context.Context, p domain.ProviderID, from, to int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur := l.models[p]
	if from < 0 || from >= len(cur) || to < 0 || to >= len(cur) {
		return fmt.Errorf("op=ledger.reorder: %w: index out of range", domain.ErrInvalidArgument)
	}
	if from == to {
		return nil
	}
	list := slices.Delete(slices.Clone(cur), from, from+1)
	list = slices.Insert(list, to, cur[from])
	if err := l.commitLocked(ctx, p, normalize(list)); err != nil {
		return fmt.Errorf("op=ledger.reorder: %w", err)
	}
	return nil
}

// Remove drops the model at index.
func (l *Ledger) Remove(ctx context.Context, p domain.ProviderID, index int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur := l.models[p]
	if index < 0 || index >= len(cur) {
		return fmt.Errorf("op=ledger.remove: %w: index out of range", domain.ErrInvalidArgument)
	}
	list := slices.Delete(slices.Clone(cur), index, index+1)
	if err := l.commitLocked(ctx, p, normalize(list)); err != nil {
		return fmt.Errorf("op=ledger.remove: %w", err)
	}
	return nil
}

// Clear empties the provider's list.
func (l *Ledger) Clear(ctx context.Context, p domain.ProviderID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.models[p]) == 0 {
		return nil
	}
	if err := l.commitLocked(ctx, p, nil); err != nil {
		return fmt.Errorf("op=ledger.clear: %w", err)
	}
	return nil
}

// List returns a copy of the provider's models in order.
func (l *Ledger) List(p domain.ProviderID) []domain.VerifiedModel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.models[p])
}

// Contains reports whether name is verified for p.
func (l *Ledger) Contains(p domain.ProviderID, name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, m := range l.models[p] {
		if m.Name == name {
			return true
		}
	}
	return false
}

// Current returns order 0 of the list or the provider default.
func (l *Ledger) Current(p domain.ProviderID) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.currentLocked(l.models, p)
}

func (l *Ledger) currentLocked(models map[domain.ProviderID][]domain.VerifiedModel, p domain.ProviderID) string {
	if list := models[p]; len(list) > 0 {
		return list[0].Name
	}
	return l.defaults(p)
}

// commitLocked persists verified_models and current_models with p replaced by
// list, then swaps the in-memory copy. If current_models cannot be written the
// previous verified_models document is restored.
func (l *Ledger) commitLocked(ctx context.Context, p domain.ProviderID, list []domain.VerifiedModel) error {
	next := make(map[domain.ProviderID][]domain.VerifiedModel, len(l.models)+1)
	for id, ms := range l.models {
		next[id] = ms
	}
	if len(list) == 0 {
		delete(next, p)
	} else {
		next[p] = list
	}

	current := make(map[domain.ProviderID]string, len(domain.AllProviders()))
	for _, id := range domain.AllProviders() {
		current[id] = l.currentLocked(next, id)
	}

	if err := domain.SaveJSON(ctx, l.store, domain.KeyVerifiedModels, next); err != nil {
		return err
	}
	if err := domain.SaveJSON(ctx, l.store, domain.KeyCurrentModels, current); err != nil {
		_ = domain.SaveJSON(ctx, l.store, domain.KeyVerifiedModels, l.models)
		return err
	}
	l.models = next
	l.pub.Publish(events.Event{Type: events.LedgerChanged, Provider: p, Model: current[p]})
	return nil
}

func normalize(list []domain.VerifiedModel) []domain.VerifiedModel {
	out := make([]domain.VerifiedModel, len(list))
	for i, m := range list {
		out[i] = domain.VerifiedModel{Name: m.Name, Order: i}
	}
	return out
}

func sortByOrder(list []domain.VerifiedModel) []domain.VerifiedModel {
	out := slices.Clone(list)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}
