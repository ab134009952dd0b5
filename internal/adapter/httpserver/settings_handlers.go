package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/ai-translator/internal/domain"
)

type providerView struct {
	Provider       domain.ProviderID      `json:"provider"`
	Active         bool                   `json:"active"`
	HasAPIKey      bool                   `json:"has_api_key"`
	DefaultModel   string                 `json:"default_model"`
	CurrentModel   string                 `json:"current_model"`
	VerifiedModels []domain.VerifiedModel `json:"verified_models"`
}

func (s *Server) view(p domain.ProviderID) providerView {
	models := s.Ledger.List(p)
	if models == nil {
		models = []domain.VerifiedModel{}
	}
	return providerView{
		Provider:       p,
		Active:         s.Registry.IsActive(p),
		HasAPIKey:      s.Registry.HasAPIKey(p),
		DefaultModel:   s.Cfg.DefaultModel(p),
		CurrentModel:   s.Ledger.Current(p),
		VerifiedModels: models,
	}
}

// ListProvidersHandler returns every provider in fallback order.
func (s *Server) ListProvidersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		out := make([]providerView, 0, len(domain.AllProviders()))
		for _, p := range domain.AllProviders() {
			out = append(out, s.view(p))
		}
		writeJSON(w, http.StatusOK, map[string]any{"providers": out})
	}
}

// GetProviderHandler returns one provider.
func (s *Server) GetProviderHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := providerParam(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, s.view(p))
	}
}

type toggleRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// ToggleProviderHandler switches a provider on or off.
func (s *Server) ToggleProviderHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := providerParam(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		var req toggleRequest
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		if err := s.Registry.Toggle(r.Context(), p, *req.Active); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, s.view(p))
	}
}

type verifyKeyRequest struct {
	APIKey string `json:"api_key" validate:"required,max=512"`
	Model  string `json:"model" validate:"omitempty,max=200"`
}

// VerifyKeyHandler probes a candidate key and stores it when it works.
func (s *Server) VerifyKeyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := providerParam(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		var req verifyKeyRequest
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		out, err := s.Translator.VerifyKey(r.Context(), p, req.APIKey, req.Model)
		if err != nil {
			writeError(w, r, err, out)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// ClearKeyHandler removes the key, deactivates the provider and clears its models.
func (s *Server) ClearKeyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := providerParam(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if err := s.Translator.ClearKey(r.Context(), p); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, s.view(p))
	}
}

// ListModelsHandler proposes models from the provider catalog. A candidate key
// may be passed in X-Provider-Key before it is verified.
func (s *Server) ListModelsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := providerParam(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		models, err := s.Catalog.ListModels(r.Context(), p, r.Header.Get("X-Provider-Key"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"provider": p, "models": models})
	}
}

type addModelRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// AddVerifiedModelHandler inserts a model at the head of the provider's ledger.
func (s *Server) AddVerifiedModelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := providerParam(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		var req addModelRequest
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		if err := s.Ledger.Add(r.Context(), p, req.Name); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, s.view(p))
	}
}

type reorderRequest struct {
	From *int `json:"from" validate:"required,min=0"`
	To   *int `json:"to" validate:"required,min=0"`
}

// ReorderVerifiedModelHandler moves one ledger entry.
func (s *Server) ReorderVerifiedModelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := providerParam(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		var req reorderRequest
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		if err := s.Ledger.Reorder(r.Context(), p, *req.From, *req.To); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, s.view(p))
	}
}

// RemoveVerifiedModelHandler deletes the ledger entry at {index}.
func (s *Server) RemoveVerifiedModelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := providerParam(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		idx, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			writeError(w, r, invalidf("index must be an integer"), nil)
			return
		}
		if err := s.Ledger.Remove(r.Context(), p, idx); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, s.view(p))
	}
}
