// Package provider holds the per-vendor request builders and response parsers.
//
// Every domain.ProviderID has exactly one Strategy. The dispatch engine only
// talks to this interface, so a new vendor needs a new Strategy and nothing else.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/fairyhunter13/ai-translator/internal/config"
	"github.com/fairyhunter13/ai-translator/internal/domain"
)

// Request is the provider-independent chat call.
type Request struct {
	Model       string
	APIKey      string
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Failure is the structured part of a provider error body.
type Failure struct {
	Status  int
	Code    string
	Type    string
	Message string
}

// Strategy builds the vendor HTTP request and reads the vendor response.
type Strategy interface {
	ID() domain.ProviderID
	BuildRequest(ctx context.Context, req Request) (*http.Request, error)
	ParseText(body []byte) (string, error)
	ParseError(status int, body []byte) Failure
}

// Set maps every provider to its strategy.
type Set struct {
	byID map[domain.ProviderID]Strategy
}

// NewSet fails unless every provider in domain.AllProviders has a strategy.
func NewSet(strategies ...Strategy) (*Set, error) {
	byID := make(map[domain.ProviderID]Strategy, len(strategies))
	for _, s := range strategies {
		if _, dup := byID[s.ID()]; dup {
			return nil, fmt.Errorf("%w: duplicate strategy for %s", domain.ErrInvalidArgument, s.ID())
		}
		byID[s.ID()] = s
	}
	for _, p := range domain.AllProviders() {
		if _, ok := byID[p]; !ok {
			return nil, fmt.Errorf("%w: no strategy for provider %s", domain.ErrInvalidArgument, p)
		}
	}
	return &Set{byID: byID}, nil
}

// FromConfig builds the standard strategies from configured endpoints.
func FromConfig(cfg config.Config) (*Set, error) {
	return NewSet(
		NewOpenAICompatible(domain.ProviderOpenAI, cfg.BaseURL(domain.ProviderOpenAI), nil),
		NewGoogle(cfg.BaseURL(domain.ProviderGoogle)),
		NewAnthropic(cfg.BaseURL(domain.ProviderAnthropic), cfg.AnthropicVersion),
		NewOpenAICompatible(domain.ProviderOpenRouter, cfg.BaseURL(domain.ProviderOpenRouter), openRouterHeaders(cfg)),
		NewOpenAICompatible(domain.ProviderGroq, cfg.BaseURL(domain.ProviderGroq), nil),
	)
}

// Get returns the strategy for p.
func (s *Set) Get(p domain.ProviderID) (Strategy, error) {
	st, ok := s.byID[p]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidArgument, p)
	}
	return st, nil
}

func openRouterHeaders(cfg config.Config) map[string]string {
	h := map[string]string{}
	if cfg.OpenRouterReferer != "" {
		h["HTTP-Referer"] = cfg.OpenRouterReferer
	}
	if cfg.OpenRouterTitle != "" {
		h["X-Title"] = cfg.OpenRouterTitle
	}
	return h
}

func newJSONRequest(ctx context.Context, url string, body any) (*http.Request, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// fallbackFailure keeps the raw body as the message when it is not structured.
func fallbackFailure(status int, body []byte) Failure {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return Failure{Status: status, Message: truncate(msg, maxMessageBytes)}
}

const maxMessageBytes = 2000

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return strings.ToValidUTF8(s[:n], "")
}

// errEmptyText marks a 200 reply that carried no translation.
var errEmptyText = errors.New("provider returned no text")

func nonEmpty(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errEmptyText
	}
	return text, nil
}

// codeString renders a JSON error code that may be a string, a number or null.
func codeString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(string(raw), `"`)
}

func trimBase(u string) string { return strings.TrimRight(u, "/") }
