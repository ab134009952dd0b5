package domain

import (
	"encoding/json"
	"fmt"
)

// Persisted key names. Values are plain strings or JSON documents.
const (
	KeyVerifiedModels   = "verified_models"
	KeyCurrentModels    = "current_models"
	KeyActiveProviders  = "@active_providers"
	KeySelectedProvider = "selected_provider"
)

// APIKeyKey is where the provider secret lives.
func APIKeyKey(p ProviderID) string { return string(p) + "_api_key" }

// GlobalModelKey is the global model choice for a provider.
func GlobalModelKey(p ProviderID) string { return string(p) + "_model" }

// ScopeProviderKey is a tool scope's own provider selection.
func ScopeProviderKey(s Scope) string { return string(s) + "_selected_provider" }

// ScopeModelsKey is a tool scope's per-provider model overrides.
func ScopeModelsKey(s Scope) string { return string(s) + "_selected_models" }

// ScopeFollowKey holds a tool scope's follow-global flags.
func ScopeFollowKey(s Scope) string { return string(s) + "_follow_global" }

// LoadJSON decodes the JSON document stored under key into v.
// found is false when the key is absent.
func LoadJSON(ctx Context, kv KVStore, key string, v any) (bool, error) {
	raw, found, err := kv.Get(ctx, key)
	if err != nil || !found || raw == "" {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("%w: decode %s: %w", ErrPersistence, key, err)
	}
	return true, nil
}

// SaveJSON encodes v and stores it under key.
func SaveJSON(ctx Context, kv KVStore, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrPersistence, key, err)
	}
	return kv.Set(ctx, key, string(b))
}
