// Package resolver picks the effective provider and model for a scope.
//
// Each tool scope keeps its own overrides and two follow-global flags, one for
// the provider and one for models. A following scope reads through the global
// selection on every call, so a global change is visible immediately.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/fairyhunter13/ai-translator/internal/domain"
	"github.com/fairyhunter13/ai-translator/internal/service/events"
)

// Activation is the read side of the provider registry.
type Activation interface {
	IsActive(p domain.ProviderID) bool
	ActiveProviders() []domain.ProviderID
}

// CurrentModels yields the ledger head or provider default.
type CurrentModels interface {
	Current(p domain.ProviderID) string
}

// Follow holds a tool scope's follow-global flags.
type Follow struct {
	Provider bool `json:"provider"`
	Model    bool `json:"model"`
}

type scopeState struct {
	provider domain.ProviderID
	models   map[domain.ProviderID]string
	follow   Follow
}

// Resolver owns the global selection and every tool scope's overrides.
type Resolver struct {
	mu     sync.Mutex
	store  domain.KVStore
	reg    Activation
	models CurrentModels
	pub    events.Publisher

	globalLoaded   bool
	globalProvider domain.ProviderID
	globalModels   map[domain.ProviderID]string
	scopes         map[domain.Scope]*scopeState
}

// New builds a resolver. State is read lazily from the store.
func New(store domain.KVStore, reg Activation, models CurrentModels, pub events.Publisher) *Resolver {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Resolver{
		store:        store,
		reg:          reg,
		models:       models,
		pub:          pub,
		globalModels: map[domain.ProviderID]string{},
		scopes:       map[domain.Scope]*scopeState{},
	}
}

// ParseScope validates a scope name. Empty means global.
func ParseScope(s string) (domain.Scope, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == string(domain.GlobalScope) {
		return domain.GlobalScope, nil
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' || r == '-') {
			return "", fmt.Errorf("%w: invalid scope %q", domain.ErrInvalidArgument, s)
		}
	}
	return domain.Scope(s), nil
}

func (r *Resolver) loadGlobalLocked(ctx context.Context) error {
	if r.globalLoaded {
		return nil
	}
	v, found, err := r.store.Get(ctx, domain.KeySelectedProvider)
	if err != nil {
		return err
	}
	models := map[domain.ProviderID]string{}
	for _, p := range domain.AllProviders() {
		m, ok, err := r.store.Get(ctx, domain.GlobalModelKey(p))
		if err != nil {
			return err
		}
		if ok && m != "" {
			models[p] = m
		}
	}
	if found {
		r.globalProvider = domain.ProviderID(v)
	}
	r.globalModels = models
	r.globalLoaded = true
	return nil
}

func (r *Resolver) scopeLocked(ctx context.Context, s domain.Scope) (*scopeState, error) {
	if st, ok := r.scopes[s]; ok {
		return st, nil
	}
	st := &scopeState{models: map[domain.ProviderID]string{}, follow: Follow{Provider: true, Model: true}}
	v, found, err := r.store.Get(ctx, domain.ScopeProviderKey(s))
	if err != nil {
		return nil, err
	}
	if found {
		st.provider = domain.ProviderID(v)
	}
	if _, err := domain.LoadJSON(ctx, r.store, domain.ScopeModelsKey(s), &st.models); err != nil {
		return nil, err
	}
	if st.models == nil {
		st.models = map[domain.ProviderID]string{}
	}
	if _, err := domain.LoadJSON(ctx, r.store, domain.ScopeFollowKey(s), &st.follow); err != nil {
		return nil, err
	}
	r.scopes[s] = st
	return st, nil
}

// ResolveProvider returns the scope's effective provider. It never returns an
// inactive provider; with nothing active it fails with ErrNoProviderSelected.
func (r *Resolver) ResolveProvider(ctx context.Context, scope domain.Scope) (domain.ProviderID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.resolveProviderLocked(ctx, scope)
	if err != nil {
		return "", fmt.Errorf("op=resolver.resolve_provider: %w", err)
	}
	return p, nil
}

func (r *Resolver) resolveProviderLocked(ctx context.Context, scope domain.Scope) (domain.ProviderID, error) {
	if err := r.loadGlobalLocked(ctx); err != nil {
		return "", err
	}
	if scope.IsGlobal() {
		if r.globalProvider != "" && r.reg.IsActive(r.globalProvider) {
			return r.globalProvider, nil
		}
		first, ok := r.firstActive()
		if !ok {
			return "", domain.ErrNoProviderSelected
		}
		if err := r.store.Set(ctx, domain.KeySelectedProvider, string(first)); err != nil {
			return "", err
		}
		slog.Info("global provider failed over", slog.String("from", string(r.globalProvider)), slog.String("to", string(first)))
		r.globalProvider = first
		r.pub.Publish(events.Event{Type: events.GlobalProviderChanged, Scope: domain.GlobalScope, Provider: first})
		return first, nil
	}

	st, err := r.scopeLocked(ctx, scope)
	if err != nil {
		return "", err
	}
	ownActive := st.provider != "" && r.reg.IsActive(st.provider)
	globalActive := r.globalProvider != "" && r.reg.IsActive(r.globalProvider)

	// A scope with its own choice keeps it while that provider is active.
	if !st.follow.Provider && ownActive {
		return st.provider, nil
	}
	if globalActive {
		if !st.follow.Provider {
			next := st.follow
			next.Provider = true
			if err := domain.SaveJSON(ctx, r.store, domain.ScopeFollowKey(scope), next); err != nil {
				return "", err
			}
			st.follow = next
		}
		return r.globalProvider, nil
	}
	if ownActive {
		return st.provider, nil
	}
	first, ok := r.firstActive()
	if !ok {
		return "", domain.ErrNoProviderSelected
	}
	if err := r.store.Set(ctx, domain.ScopeProviderKey(scope), string(first)); err != nil {
		return "", err
	}
	st.provider = first
	r.pub.Publish(events.Event{Type: events.ScopeProviderChanged, Scope: scope, Provider: first})
	return first, nil
}

func (r *Resolver) firstActive() (domain.ProviderID, bool) {
	active := r.reg.ActiveProviders()
	if len(active) == 0 {
		return "", false
	}
	return active[0], true
}

// ResolveModel returns the model for provider p in scope: the scope override
// unless the scope follows global models, then the global model, then the
// ledger head or provider default.
func (r *Resolver) ResolveModel(ctx context.Context, scope domain.Scope, p domain.ProviderID) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, err := r.resolveModelLocked(ctx, scope, p)
	if err != nil {
		return "", fmt.Errorf("op=resolver.resolve_model: %w", err)
	}
	return m, nil
}

func (r *Resolver) resolveModelLocked(ctx context.Context, scope domain.Scope, p domain.ProviderID) (string, error) {
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidArgument, p)
	}
	if err := r.loadGlobalLocked(ctx); err != nil {
		return "", err
	}
	if !scope.IsGlobal() {
		st, err := r.scopeLocked(ctx, scope)
		if err != nil {
			return "", err
		}
		if m := st.models[p]; !st.follow.Model && m != "" {
			return m, nil
		}
	}
	if m := r.globalModels[p]; m != "" {
		return m, nil
	}
	if r.models != nil {
		if m := r.models.Current(p); m != "" {
			return m, nil
		}
	}
	return domain.DefaultModels[p], nil
}

// SelectProvider makes p the scope's explicit choice. p must be active.
func (r *Resolver) SelectProvider(ctx context.Context, scope domain.Scope, p domain.ProviderID) error {
	if !p.Valid() {
		return fmt.Errorf("op=resolver.select_provider: %w: unknown provider %q", domain.ErrInvalidArgument, p)
	}
	if !r.reg.IsActive(p) {
		return fmt.Errorf("op=resolver.select_provider: %w: %s", domain.ErrProviderInactive, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadGlobalLocked(ctx); err != nil {
		return fmt.Errorf("op=resolver.select_provider: %w", err)
	}
	if scope.IsGlobal() {
		if err := r.store.Set(ctx, domain.KeySelectedProvider, string(p)); err != nil {
			return fmt.Errorf("op=resolver.select_provider: %w", err)
		}
		r.globalProvider = p
		r.pub.Publish(events.Event{Type: events.GlobalProviderChanged, Scope: domain.GlobalScope, Provider: p})
		return nil
	}
	st, err := r.scopeLocked(ctx, scope)
	if err != nil {
		return fmt.Errorf("op=resolver.select_provider: %w", err)
	}
	if err := r.store.Set(ctx, domain.ScopeProviderKey(scope), string(p)); err != nil {
		return fmt.Errorf("op=resolver.select_provider: %w", err)
	}
	st.provider = p
	next := Follow{Provider: false, Model: st.follow.Model}
	if err := domain.SaveJSON(ctx, r.store, domain.ScopeFollowKey(scope), next); err != nil {
		return fmt.Errorf("op=resolver.select_provider: %w", err)
	}
	st.follow = next
	r.pub.Publish(events.Event{Type: events.ScopeProviderChanged, Scope: scope, Provider: p})
	return nil
}

// SelectModel sets the model for p in scope. For a tool scope it stops
// following global models.
func (r *Resolver) SelectModel(ctx context.Context, scope domain.Scope, p domain.ProviderID, model string) error {
	if !p.Valid() {
		return fmt.Errorf("op=resolver.select_model: %w: unknown provider %q", domain.ErrInvalidArgument, p)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return fmt.Errorf("op=resolver.select_model: %w: empty model", domain.ErrInvalidArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadGlobalLocked(ctx); err != nil {
		return fmt.Errorf("op=resolver.select_model: %w", err)
	}
	if scope.IsGlobal() {
		if err := r.store.Set(ctx, domain.GlobalModelKey(p), model); err != nil {
			return fmt.Errorf("op=resolver.select_model: %w", err)
		}
		r.globalModels[p] = model
		r.pub.Publish(events.Event{Type: events.GlobalModelChanged, Scope: domain.GlobalScope, Provider: p, Model: model})
		return nil
	}
	st, err := r.scopeLocked(ctx, scope)
	if err != nil {
		return fmt.Errorf("op=resolver.select_model: %w", err)
	}
	models := make(map[domain.ProviderID]string, len(st.models)+1)
	for k, v := range st.models {
		models[k] = v
	}
	models[p] = model
	if err := domain.SaveJSON(ctx, r.store, domain.ScopeModelsKey(scope), models); err != nil {
		return fmt.Errorf("op=resolver.select_model: %w", err)
	}
	st.models = models
	next := Follow{Provider: st.follow.Provider, Model: false}
	if err := domain.SaveJSON(ctx, r.store, domain.ScopeFollowKey(scope), next); err != nil {
		return fmt.Errorf("op=resolver.select_model: %w", err)
	}
	st.follow = next
	r.pub.Publish(events.Event{Type: events.ScopeModelChanged, Scope: scope, Provider: p, Model: model})
	return nil
}

// ResetToGlobal drops the scope's overrides, follows global again and
// returns the fresh selection.
func (r *Resolver) ResetToGlobal(ctx context.Context, scope domain.Scope) (domain.Selection, error) {
	if scope.IsGlobal() {
		return domain.Selection{}, fmt.Errorf("op=resolver.reset: %w: global scope has no overrides", domain.ErrInvalidArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	st, err := r.scopeLocked(ctx, scope)
	if err != nil {
		return domain.Selection{}, fmt.Errorf("op=resolver.reset: %w", err)
	}
	for _, key := range []string{domain.ScopeProviderKey(scope), domain.ScopeModelsKey(scope)} {
		if err := r.store.Remove(ctx, key); err != nil {
			return domain.Selection{}, fmt.Errorf("op=resolver.reset: %w", err)
		}
	}
	st.provider = ""
	st.models = map[domain.ProviderID]string{}
	follow := Follow{Provider: true, Model: true}
	if err := domain.SaveJSON(ctx, r.store, domain.ScopeFollowKey(scope), follow); err != nil {
		return domain.Selection{}, fmt.Errorf("op=resolver.reset: %w", err)
	}
	st.follow = follow
	r.pub.Publish(events.Event{Type: events.ScopeReset, Scope: scope})

	sel, err := r.selectionLocked(ctx, scope)
	if err != nil {
		return sel, fmt.Errorf("op=resolver.reset: %w", err)
	}
	return sel, nil
}

// Selection resolves provider and model for scope in one step.
func (r *Resolver) Selection(ctx context.Context, scope domain.Scope) (domain.Selection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sel, err := r.selectionLocked(ctx, scope)
	if err != nil {
		return sel, fmt.Errorf("op=resolver.selection: %w", err)
	}
	return sel, nil
}

func (r *Resolver) selectionLocked(ctx context.Context, scope domain.Scope) (domain.Selection, error) {
	if scope == "" {
		scope = domain.GlobalScope
	}
	sel := domain.Selection{Scope: scope, FollowingProvider: true, FollowingModel: true}
	if !scope.IsGlobal() {
		st, err := r.scopeLocked(ctx, scope)
		if err != nil {
			return sel, err
		}
		sel.FollowingProvider = st.follow.Provider
		sel.FollowingModel = st.follow.Model
	}
	p, err := r.resolveProviderLocked(ctx, scope)
	if err != nil {
		return sel, err
	}
	if !scope.IsGlobal() {
		sel.FollowingProvider = r.scopes[scope].follow.Provider
	}
	m, err := r.resolveModelLocked(ctx, scope, p)
	if err != nil {
		return sel, err
	}
	sel.Provider = p
	sel.Model = m
	return sel, nil
}
