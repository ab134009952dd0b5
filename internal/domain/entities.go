package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrNotFound              = errors.New("not found")
	ErrPersistence           = errors.New("persistence failure")
	ErrNoProviderSelected    = errors.New("no active provider selected")
	ErrProviderInactive      = errors.New("provider inactive")
	ErrMissingAPIKey         = errors.New("api key missing")
	ErrDuplicateModel        = errors.New("duplicate model")
	ErrRateLimited           = errors.New("rate limited")
	ErrCredentialInvalid     = errors.New("credential invalid")
	ErrUsageLimited          = errors.New("usage limited")
	ErrNetworkFailure        = errors.New("network failure")
	ErrUnknownProvider       = errors.New("unknown provider error")
	ErrTranslationInProgress = errors.New("previous translation still in progress")
)

// ProviderID identifies one of the supported LLM vendors. The set is closed.
type ProviderID string

const (
	ProviderOpenAI     ProviderID = "openai"
	ProviderGoogle     ProviderID = "google"
	ProviderAnthropic  ProviderID = "anthropic"
	ProviderOpenRouter ProviderID = "openrouter"
	ProviderGroq       ProviderID = "groq"
)

// AllProviders returns the providers in their fixed fallback order.
func AllProviders() []ProviderID {
	return []ProviderID{ProviderOpenAI, ProviderGoogle, ProviderAnthropic, ProviderOpenRouter, ProviderGroq}
}

// Valid reports whether p is a member of the closed provider set.
func (p ProviderID) Valid() bool {
	for _, id := range AllProviders() {
		if id == p {
			return true
		}
	}
	return false
}

// ParseProviderID normalizes and validates a provider identifier.
func ParseProviderID(s string) (ProviderID, error) {
	p := ProviderID(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown provider %q", ErrInvalidArgument, s)
	}
	return p, nil
}

// DefaultModels holds the hardcoded fallback model per provider.
var DefaultModels = map[ProviderID]string{
	ProviderOpenAI:     "gpt-4o-mini",
	ProviderGoogle:     "gemini-1.5-flash",
	ProviderAnthropic:  "claude-3-5-haiku-20241022",
	ProviderOpenRouter: "openai/gpt-4o-mini",
	ProviderGroq:       "llama-3.1-8b-instant",
}

// Scope names an independent configuration context.
type Scope string

// GlobalScope is the app-wide selection every tool scope can follow.
const GlobalScope Scope = "global"

// IsGlobal reports whether s is the global scope.
func (s Scope) IsGlobal() bool { return s == GlobalScope || s == "" }

// VerifiedModel is a model the user has successfully exercised against a provider.
// Invariant: within one provider list, Order values are exactly 0..N-1 and Order 0 is current.
type VerifiedModel struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// Selection is the effective provider/model of a scope.
type Selection struct {
	Scope             Scope      `json:"scope"`
	Provider          ProviderID `json:"provider"`
	Model             string     `json:"model"`
	FollowingProvider bool       `json:"following_provider"`
	FollowingModel    bool       `json:"following_model"`
}

// TranslationRequest is the UI-level translate call.
type TranslationRequest struct {
	Text          string `json:"text" validate:"required,max=20000"`
	FromLanguage  string `json:"from_language" validate:"required,max=64"`
	ToLanguage    string `json:"to_language" validate:"required,max=64"`
	ModelOverride string `json:"model,omitempty" validate:"omitempty,max=200"`
}

// ProviderInfo records which provider and model produced a result.
type ProviderInfo struct {
	Provider ProviderID `json:"provider"`
	Model    string     `json:"model"`
}

// NormalizedResult is the provider-independent outcome of a translation.
type NormalizedResult struct {
	TranslatedText string          `json:"translated_text"`
	Success        bool            `json:"success"`
	Error          string          `json:"error,omitempty"`
	Category       Category        `json:"category,omitempty"`
	RawResponse    json.RawMessage `json:"raw_response,omitempty"`
	ProviderInfo   *ProviderInfo   `json:"provider_info,omitempty"`
}

// KVStore is the generic string key/value persistence collaborator.
// Get reports found=false for a missing key without an error.
type KVStore interface {
	Get(ctx Context, key string) (value string, found bool, err error)
	Set(ctx Context, key, value string) error
	Remove(ctx Context, key string) error
}

// Pinger is implemented by stores that can report readiness.
type Pinger interface {
	Ping(ctx Context) error
}

// Context aliases the std context so ports read the same across packages.
type Context = context.Context
