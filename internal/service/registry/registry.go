// Package registry tracks which providers are activated and owns their API keys.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/fairyhunter13/ai-translator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-translator/internal/domain"
	"github.com/fairyhunter13/ai-translator/internal/service/events"
)

// Reason explains why a provider was switched off.
type Reason string

const (
	ReasonUserDisabled      Reason = "user_disabled"
	ReasonKeyRemoved        Reason = "key_removed"
	ReasonCredentialInvalid Reason = "credential_invalid"
)

// LedgerClearer empties a provider's verified models.
type LedgerClearer interface {
	Clear(ctx context.Context, p domain.ProviderID) error
}

// Registry is the activation map plus the stored API keys.
// Memory only changes after the store accepted the write.
type Registry struct {
	mu     sync.RWMutex
	store  domain.KVStore
	ledger LedgerClearer
	pub    events.Publisher
	active map[domain.ProviderID]bool
	keys   map[domain.ProviderID]string
}

// New builds an empty registry. Call Load to hydrate it from the store.
func New(store domain.KVStore, ledger LedgerClearer, pub events.Publisher) *Registry {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Registry{
		store:  store,
		ledger: ledger,
		pub:    pub,
		active: map[domain.ProviderID]bool{},
		keys:   map[domain.ProviderID]string{},
	}
}

// Load reads activation bits and keys. An active flag without a key is dropped.
func (r *Registry) Load(ctx context.Context) error {
	active := map[domain.ProviderID]bool{}
	if _, err := domain.LoadJSON(ctx, r.store, domain.KeyActiveProviders, &active); err != nil {
		return fmt.Errorf("op=registry.load: %w", err)
	}
	keys := map[domain.ProviderID]string{}
	for _, p := range domain.AllProviders() {
		k, found, err := r.store.Get(ctx, domain.APIKeyKey(p))
		if err != nil {
			return fmt.Errorf("op=registry.load: %w", err)
		}
		if found && strings.TrimSpace(k) != "" {
			keys[p] = k
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = map[domain.ProviderID]bool{}
	for p, on := range active {
		if on && p.Valid() && keys[p] != "" {
			r.active[p] = true
		} else if on {
			slog.Warn("ignoring stored activation without api key", slog.String("provider", string(p)))
		}
	}
	r.keys = keys
	for _, p := range domain.AllProviders() {
		observability.SetProviderActive(string(p), r.active[p])
	}
	return nil
}

// IsActive reads the in-memory activation bit.
func (r *Registry) IsActive(p domain.ProviderID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active[p]
}

// ActiveProviders lists active providers in fallback order.
func (r *Registry) ActiveProviders() []domain.ProviderID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.ProviderID
	for _, p := range domain.AllProviders() {
		if r.active[p] {
			out = append(out, p)
		}
	}
	return out
}

// Snapshot returns the activation bit of every provider.
func (r *Registry) Snapshot() map[domain.ProviderID]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[domain.ProviderID]bool, len(domain.AllProviders()))
	for _, p := range domain.AllProviders() {
		out[p] = r.active[p]
	}
	return out
}

// Toggle persists a new activation bit. Turning a provider on needs a stored key.
// Turning it off is a user disable and keeps the verified models.
func (r *Registry) Toggle(ctx context.Context, p domain.ProviderID, active bool) error {
	if !active {
		return r.Deactivate(ctx, p, ReasonUserDisabled)
	}
	if !p.Valid() {
		return fmt.Errorf("op=registry.toggle: %w: unknown provider %q", domain.ErrInvalidArgument, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.keys[p] == "" {
		return fmt.Errorf("op=registry.toggle: %w: %s", domain.ErrMissingAPIKey, p)
	}
	if err := r.persistLocked(ctx, p, true); err != nil {
		return fmt.Errorf("op=registry.toggle: %w", err)
	}
	r.pub.Publish(events.Event{Type: events.ProviderToggled, Provider: p, Active: events.BoolPtr(true)})
	return nil
}

// Deactivate switches p off. Only ReasonKeyRemoved clears the verified models.
func (r *Registry) Deactivate(ctx context.Context, p domain.ProviderID, reason Reason) error {
	if !p.Valid() {
		return fmt.Errorf("op=registry.deactivate: %w: unknown provider %q", domain.ErrInvalidArgument, p)
	}
	r.mu.Lock()
	err := r.persistLocked(ctx, p, false)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("op=registry.deactivate: %w", err)
	}
	if reason == ReasonCredentialInvalid {
		observability.RecordAutoDisable(string(p))
	}
	slog.Info("provider deactivated", slog.String("provider", string(p)), slog.String("reason", string(reason)))
	r.pub.Publish(events.Event{Type: events.ProviderToggled, Provider: p, Active: events.BoolPtr(false), Reason: string(reason)})

	if reason == ReasonKeyRemoved && r.ledger != nil {
		if err := r.ledger.Clear(ctx, p); err != nil {
			return fmt.Errorf("op=registry.deactivate: clear ledger: %w", err)
		}
	}
	return nil
}

// persistLocked writes the whole activation map with p set to on, then commits it.
func (r *Registry) persistLocked(ctx context.Context, p domain.ProviderID, on bool) error {
	next := make(map[domain.ProviderID]bool, len(domain.AllProviders()))
	for _, id := range domain.AllProviders() {
		next[id] = r.active[id]
	}
	next[p] = on
	if err := domain.SaveJSON(ctx, r.store, domain.KeyActiveProviders, next); err != nil {
		return err
	}
	r.active[p] = on
	observability.SetProviderActive(string(p), on)
	return nil
}

// SetAPIKey stores the provider secret. It does not activate the provider.
func (r *Registry) SetAPIKey(ctx context.Context, p domain.ProviderID, key string) error {
	if !p.Valid() {
		return fmt.Errorf("op=registry.set_key: %w: unknown provider %q", domain.ErrInvalidArgument, p)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("op=registry.set_key: %w: empty api key", domain.ErrInvalidArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.Set(ctx, domain.APIKeyKey(p), key); err != nil {
		return fmt.Errorf("op=registry.set_key: %w", err)
	}
	r.keys[p] = key
	r.pub.Publish(events.Event{Type: events.ProviderKeyChanged, Provider: p})
	return nil
}

// ClearAPIKey switches the provider off, removes the secret and clears its ledger.
// The provider is deactivated first so an active provider never lacks a key.
func (r *Registry) ClearAPIKey(ctx context.Context, p domain.ProviderID) error {
	if !p.Valid() {
		return fmt.Errorf("op=registry.clear_key: %w: unknown provider %q", domain.ErrInvalidArgument, p)
	}
	r.mu.Lock()
	err := r.persistLocked(ctx, p, false)
	if err == nil {
		if err = r.store.Remove(ctx, domain.APIKeyKey(p)); err == nil {
			delete(r.keys, p)
		}
	}
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("op=registry.clear_key: %w", err)
	}
	slog.Info("provider deactivated", slog.String("provider", string(p)), slog.String("reason", string(ReasonKeyRemoved)))
	r.pub.Publish(events.Event{Type: events.ProviderToggled, Provider: p, Active: events.BoolPtr(false), Reason: string(ReasonKeyRemoved)})
	r.pub.Publish(events.Event{Type: events.ProviderKeyChanged, Provider: p})
	if r.ledger != nil {
		if err := r.ledger.Clear(ctx, p); err != nil {
			return fmt.Errorf("op=registry.clear_key: clear ledger: %w", err)
		}
	}
	return nil
}

// APIKey returns the stored secret.
func (r *Registry) APIKey(p domain.ProviderID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[p]
	return k, ok && k != ""
}

// HasAPIKey reports whether a secret is stored for p.
func (r *Registry) HasAPIKey(p domain.ProviderID) bool {
	_, ok := r.APIKey(p)
	return ok
}
