package httpserver

import (
	"fmt"
	"net/http"

	"github.com/fairyhunter13/ai-translator/internal/domain"
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{domain.ErrInvalidArgument}, args...)...)
}

// SelectionHandler resolves the scope's effective provider and model.
func (s *Server) SelectionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeParam(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		sel, err := s.Resolver.Selection(r.Context(), scope)
		if err != nil {
			writeError(w, r, err, sel)
			return
		}
		writeJSON(w, http.StatusOK, sel)
	}
}

type selectProviderRequest struct {
	Provider string `json:"provider" validate:"required,max=32"`
}

// SelectProviderHandler pins a provider for the scope.
func (s *Server) SelectProviderHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeParam(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		var req selectProviderRequest
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		p, err := domain.ParseProviderID(req.Provider)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if err := s.Resolver.SelectProvider(r.Context(), scope, p); err != nil {
			writeError(w, r, err, nil)
			return
		}
		s.writeSelection(w, r, scope)
	}
}

type selectModelRequest struct {
	Provider string `json:"provider" validate:"required,max=32"`
	Model    string `json:"model" validate:"required,max=200"`
}

// SelectModelHandler pins a model for one provider in the scope.
func (s *Server) SelectModelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeParam(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		var req selectModelRequest
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		p, err := domain.ParseProviderID(req.Provider)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if err := s.Resolver.SelectModel(r.Context(), scope, p, req.Model); err != nil {
			writeError(w, r, err, nil)
			return
		}
		s.writeSelection(w, r, scope)
	}
}

// ResetScopeHandler drops the scope's overrides.
func (s *Server) ResetScopeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeParam(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		sel, err := s.Resolver.ResetToGlobal(r.Context(), scope)
		if err != nil {
			writeError(w, r, err, sel)
			return
		}
		writeJSON(w, http.StatusOK, sel)
	}
}

// writeSelection reports the new selection. A scope with no active provider is
// still a successful write, so the resolution error goes into the body.
func (s *Server) writeSelection(w http.ResponseWriter, r *http.Request, scope domain.Scope) {
	sel, err := s.Resolver.Selection(r.Context(), scope)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"selection": sel, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"selection": sel})
}
