// Package catalog lists the models a provider offers for a given key.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/ai-translator/internal/adapter/ai/classify"
	"github.com/fairyhunter13/ai-translator/internal/adapter/ai/provider"
	"github.com/fairyhunter13/ai-translator/internal/config"
	"github.com/fairyhunter13/ai-translator/internal/domain"
)

// Model is one entry of a provider's model list.
type Model struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	ContextTokens int    `json:"context_tokens,omitempty"`
}

// Lister fetches model lists over HTTP.
type Lister struct {
	http       *resty.Client
	cfg        config.Config
	strategies *provider.Set
}

// New builds a Lister. strategies are used to parse error bodies.
func New(cfg config.Config, strategies *provider.Set, timeout time.Duration) *Lister {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	c := resty.New().
		SetTimeout(timeout).
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetHeader("Accept", "application/json")
	return &Lister{http: c, cfg: cfg, strategies: strategies}
}

type openAIList struct {
	Data []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		DisplayName   string `json:"display_name"`
		ContextLength int    `json:"context_length"`
		ContextWindow int    `json:"context_window"`
	} `json:"data"`
}

type googleList struct {
	Models []struct {
		Name                       string   `json:"name"`
		DisplayName                string   `json:"displayName"`
		InputTokenLimit            int      `json:"inputTokenLimit"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
}

// ListModels returns the provider's models sorted by id.
func (l *Lister) ListModels(ctx context.Context, p domain.ProviderID, apiKey string) ([]Model, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("op=catalog.list: %w: unknown provider %q", domain.ErrInvalidArgument, p)
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("op=catalog.list: %w: %s", domain.ErrMissingAPIKey, p)
	}
	base := strings.TrimRight(l.cfg.BaseURL(p), "/")
	req := l.http.R().SetContext(ctx)

	var out []Model
	switch p {
	case domain.ProviderGoogle:
		var body googleList
		resp, err := req.SetQueryParam("key", apiKey).Get(base + "/models")
		if err := l.check(p, resp, err); err != nil {
			return nil, err
		}
		if err := decode(p, resp, &body); err != nil {
			return nil, err
		}
		for _, m := range body.Models {
			if !supportsGenerate(m.SupportedGenerationMethods) {
				continue
			}
			out = append(out, Model{ID: strings.TrimPrefix(m.Name, "models/"), Name: m.DisplayName, ContextTokens: m.InputTokenLimit})
		}
	default:
		if p == domain.ProviderAnthropic {
			req.SetHeader("x-api-key", apiKey).SetHeader("anthropic-version", l.cfg.AnthropicVersion)
		} else {
			req.SetAuthToken(apiKey)
		}
		var body openAIList
		resp, err := req.Get(base + "/models")
		if err := l.check(p, resp, err); err != nil {
			return nil, err
		}
		if err := decode(p, resp, &body); err != nil {
			return nil, err
		}
		for _, m := range body.Data {
			name := m.Name
			if name == "" {
				name = m.DisplayName
			}
			ctxTokens := m.ContextLength
			if ctxTokens == 0 {
				ctxTokens = m.ContextWindow
			}
			out = append(out, Model{ID: m.ID, Name: name, ContextTokens: ctxTokens})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	slog.Debug("listed provider models", slog.String("provider", string(p)), slog.Int("count", len(out)))
	return out, nil
}

// decode parses the body whatever Content-Type the provider sent.
func decode(p domain.ProviderID, resp *resty.Response, v any) error {
	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return &domain.ProviderError{
			Provider:       p,
			Status:         resp.StatusCode(),
			Message:        "unparseable model list: " + err.Error(),
			Raw:            resp.Body(),
			Category:       domain.CategoryUnknown,
			Classification: domain.Classification{Category: domain.CategoryUnknown},
			Attempts:       1,
			Err:            err,
		}
	}
	return nil
}

func (l *Lister) check(p domain.ProviderID, resp *resty.Response, err error) error {
	if err != nil {
		return &domain.ProviderError{
			Provider:       p,
			Message:        err.Error(),
			Category:       domain.CategoryNetworkFailure,
			Classification: domain.Classification{Category: domain.CategoryNetworkFailure},
			Err:            err,
		}
	}
	if !resp.IsError() {
		return nil
	}
	st, serr := l.strategies.Get(p)
	if serr != nil {
		return serr
	}
	f := st.ParseError(resp.StatusCode(), resp.Body())
	cls := classify.FromFailure(f)
	if resp.StatusCode() == http.StatusTooManyRequests {
		cls.Category = domain.CategoryRateLimited
	}
	return &domain.ProviderError{
		Provider:       p,
		Status:         resp.StatusCode(),
		Message:        f.Message,
		Raw:            resp.Body(),
		Category:       cls.Category,
		Classification: cls,
		Attempts:       1,
	}
}

func supportsGenerate(methods []string) bool {
	if len(methods) == 0 {
		return true
	}
	for _, m := range methods {
		if m == "generateContent" {
			return true
		}
	}
	return false
}
