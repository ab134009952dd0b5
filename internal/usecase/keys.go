package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fairyhunter13/ai-translator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-translator/internal/domain"
	"github.com/fairyhunter13/ai-translator/internal/service/dispatch"
	"github.com/fairyhunter13/ai-translator/internal/service/registry"
)

const (
	probeText      = "Hello"
	probeFrom      = "English"
	probeTo        = "Spanish"
	probeMaxTokens = 16
)

// VerifyResult reports what a key verification persisted.
type VerifyResult struct {
	Provider   domain.ProviderID     `json:"provider"`
	Model      string                `json:"model"`
	KeySaved   bool                  `json:"key_saved"`
	ModelAdded bool                  `json:"model_added"`
	Active     bool                  `json:"active"`
	Warning    string                `json:"warning,omitempty"`
	Verdict    domain.Classification `json:"classification"`
}

// VerifyKey probes the provider with a candidate key and model and applies
// the soft-success policy: usage-limited failures still enable the provider,
// credential failures disable it.
func (s *TranslatorService) VerifyKey(ctx context.Context, p domain.ProviderID, key, model string) (VerifyResult, error) {
	key = strings.TrimSpace(key)
	model = strings.TrimSpace(model)
	if !p.Valid() {
		return VerifyResult{}, fmt.Errorf("op=verify_key: %w: unknown provider %q", domain.ErrInvalidArgument, p)
	}
	if key == "" {
		return VerifyResult{}, fmt.Errorf("op=verify_key: %w: %s", domain.ErrMissingAPIKey, p)
	}
	if model == "" {
		model = s.DefaultModel(p)
	}
	out := VerifyResult{Provider: p, Model: model}
	lg := observability.LoggerFromContext(ctx).With(slog.String("provider", string(p)), slog.String("model", model))

	_, err := s.Dispatcher.Dispatch(ctx, dispatch.Call{
		Provider:     p,
		Model:        model,
		APIKey:       key,
		Text:         probeText,
		FromLanguage: probeFrom,
		ToLanguage:   probeTo,
		MaxTokens:    probeMaxTokens,
	})
	if err == nil {
		lg.Info("api key verified")
		return s.enable(ctx, out, key)
	}

	var pe *domain.ProviderError
	if !errors.As(err, &pe) {
		return out, err
	}
	out.Verdict = pe.Classification
	switch {
	case pe.Classification.IsCredentialFatal:
		// Usage keywords alongside credential ones still mean the key authenticates.
		if pe.Classification.KeyValid() {
			if serr := s.Registry.SetAPIKey(ctx, p, key); serr != nil {
				return out, errors.Join(err, serr)
			}
			out.KeySaved = true
		}
		if derr := s.Registry.Deactivate(ctx, p, registry.ReasonCredentialInvalid); derr != nil {
			return out, errors.Join(err, derr)
		}
		lg.Warn("api key rejected", slog.Bool("key_saved", out.KeySaved))
		return out, err
	case pe.Classification.SoftSuccess():
		out.Warning = pe.Message
		lg.Warn("api key verified with usage limits", slog.String("message", pe.Message))
		return s.enable(ctx, out, key)
	default:
		lg.Warn("api key verification failed", slog.String("category", string(pe.Category)))
		return out, err
	}
}

func (s *TranslatorService) enable(ctx context.Context, out VerifyResult, key string) (VerifyResult, error) {
	if err := s.Registry.SetAPIKey(ctx, out.Provider, key); err != nil {
		return out, err
	}
	out.KeySaved = true
	switch err := s.Ledger.Add(ctx, out.Provider, out.Model); {
	case err == nil:
		out.ModelAdded = true
	case errors.Is(err, domain.ErrDuplicateModel):
	default:
		return out, err
	}
	if err := s.Registry.Toggle(ctx, out.Provider, true); err != nil {
		return out, err
	}
	out.Active = true
	return out, nil
}

// ClearKey removes the stored key, which deactivates the provider and empties
// its verified models.
func (s *TranslatorService) ClearKey(ctx context.Context, p domain.ProviderID) error {
	if !p.Valid() {
		return fmt.Errorf("op=clear_key: %w: unknown provider %q", domain.ErrInvalidArgument, p)
	}
	return s.Registry.ClearAPIKey(ctx, p)
}
