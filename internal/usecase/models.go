package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-translator/internal/adapter/ai/catalog"
	"github.com/fairyhunter13/ai-translator/internal/domain"
)

// ModelLister fetches the models a provider offers.
type ModelLister interface {
	ListModels(ctx context.Context, p domain.ProviderID, apiKey string) ([]catalog.Model, error)
}

// ModelOption is a catalog entry annotated with ledger state.
type ModelOption struct {
	catalog.Model
	Verified bool `json:"verified"`
}

// CatalogService proposes models to verify.
type CatalogService struct {
	Models ModelLister
	Keys   interface {
		APIKey(p domain.ProviderID) (string, bool)
	}
	Verified interface {
		Contains(p domain.ProviderID, name string) bool
	}
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(m ModelLister, keys interface {
	APIKey(p domain.ProviderID) (string, bool)
}, verified interface {
	Contains(p domain.ProviderID, name string) bool
}) CatalogService {
	return CatalogService{Models: m, Keys: keys, Verified: verified}
}

// ListModels lists the provider's models using key, or the stored key when key is empty.
func (s CatalogService) ListModels(ctx context.Context, p domain.ProviderID, key string) ([]ModelOption, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		stored, ok := s.Keys.APIKey(p)
		if !ok {
			return nil, fmt.Errorf("op=list_models: %w: %s", domain.ErrMissingAPIKey, p)
		}
		key = stored
	}
	models, err := s.Models.ListModels(ctx, p, key)
	if err != nil {
		return nil, err
	}
	out := make([]ModelOption, 0, len(models))
	for _, m := range models {
		out = append(out, ModelOption{Model: m, Verified: s.Verified.Contains(p, m.ID)})
	}
	return out, nil
}
