// Package usecase contains application business logic services.
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/ai-translator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-translator/internal/domain"
	"github.com/fairyhunter13/ai-translator/internal/service/dispatch"
	"github.com/fairyhunter13/ai-translator/internal/service/ledger"
	"github.com/fairyhunter13/ai-translator/internal/service/registry"
	"github.com/fairyhunter13/ai-translator/internal/service/resolver"
	"github.com/fairyhunter13/ai-translator/pkg/textx"
)

// Dispatcher sends one resolved call to a provider.
type Dispatcher interface {
	Dispatch(ctx context.Context, call dispatch.Call) (dispatch.Result, error)
}

// TokenSizer derives the output token budget from the input text.
type TokenSizer interface {
	MaxOutputTokens(text, model string, floor int) int
}

// TranslatorService orchestrates key verification and translation over the
// registry, ledger, resolver and dispatch engine.
type TranslatorService struct {
	Registry   *registry.Registry
	Ledger     *ledger.Ledger
	Resolver   *resolver.Resolver
	Dispatcher Dispatcher
	Sizer      TokenSizer
	// MaxTokens is the floor of every output token budget.
	MaxTokens int
	// DefaultModel picks the probe model when VerifyKey gets none.
	DefaultModel func(domain.ProviderID) string

	validate *validator.Validate
}

// NewTranslatorService constructs a TranslatorService with its dependencies.
func NewTranslatorService(reg *registry.Registry, led *ledger.Ledger, res *resolver.Resolver, d Dispatcher, sizer TokenSizer, maxTokens int) *TranslatorService {
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	return &TranslatorService{
		Registry:     reg,
		Ledger:       led,
		Resolver:     res,
		Dispatcher:   d,
		Sizer:        sizer,
		MaxTokens:    maxTokens,
		DefaultModel: func(p domain.ProviderID) string { return domain.DefaultModels[p] },
		validate:     validator.New(),
	}
}

// Translate resolves the scope's provider and model, dispatches the text and
// normalizes the outcome. The result is populated on failure too.
func (s *TranslatorService) Translate(ctx context.Context, scope domain.Scope, req domain.TranslationRequest) (domain.NormalizedResult, error) {
	lg := observability.LoggerFromContext(ctx).With(slog.String("scope", string(scope)))
	if err := s.validate.Struct(req); err != nil {
		err = fmt.Errorf("op=translate: %w: %v", domain.ErrInvalidArgument, err)
		return failed(err, nil), err
	}

	p, err := s.Resolver.ResolveProvider(ctx, scope)
	if err != nil {
		observability.RecordTranslation("none", string(domain.CategoryOf(err)))
		return failed(err, nil), err
	}
	model := strings.TrimSpace(req.ModelOverride)
	if model == "" {
		if model, err = s.Resolver.ResolveModel(ctx, scope, p); err != nil {
			return failed(err, nil), err
		}
	}
	info := &domain.ProviderInfo{Provider: p, Model: model}

	key, ok := s.Registry.APIKey(p)
	if !ok {
		err := fmt.Errorf("op=translate: %w: %s", domain.ErrMissingAPIKey, p)
		observability.RecordTranslation(string(p), string(domain.CategoryProviderInactive))
		return failed(err, info), err
	}

	res, err := s.Dispatcher.Dispatch(ctx, dispatch.Call{
		Provider:     p,
		Model:        model,
		APIKey:       key,
		Text:         req.Text,
		FromLanguage: req.FromLanguage,
		ToLanguage:   req.ToLanguage,
		MaxTokens:    s.Sizer.MaxOutputTokens(req.Text, model, s.MaxTokens),
	})
	if err != nil {
		var pe *domain.ProviderError
		if errors.As(err, &pe) && pe.Classification.IsCredentialFatal {
			if derr := s.Registry.Deactivate(ctx, p, registry.ReasonCredentialInvalid); derr != nil {
				lg.Error("auto-disable failed", slog.String("provider", string(p)), slog.Any("error", derr))
				err = errors.Join(err, derr)
			} else {
				lg.Warn("provider auto-disabled", slog.String("provider", string(p)))
			}
		}
		observability.RecordTranslation(string(p), string(domain.CategoryOf(err)))
		out := failed(err, info)
		if pe != nil && json.Valid(pe.Raw) {
			out.RawResponse = pe.Raw
		}
		return out, err
	}

	observability.RecordTranslation(string(p), "")
	return domain.NormalizedResult{
		TranslatedText: textx.CleanCompletion(res.Text),
		Success:        true,
		RawResponse:    res.Raw,
		ProviderInfo:   info,
	}, nil
}

func failed(err error, info *domain.ProviderInfo) domain.NormalizedResult {
	cat := domain.CategoryOf(err)
	if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrTranslationInProgress) {
		cat = domain.CategoryNone
	}
	return domain.NormalizedResult{Success: false, Error: err.Error(), Category: cat, ProviderInfo: info}
}
