package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/ai-translator/internal/config"
	"github.com/fairyhunter13/ai-translator/internal/domain"
	"github.com/fairyhunter13/ai-translator/internal/service/events"
	"github.com/fairyhunter13/ai-translator/internal/service/ledger"
	"github.com/fairyhunter13/ai-translator/internal/service/registry"
	"github.com/fairyhunter13/ai-translator/internal/service/resolver"
	"github.com/fairyhunter13/ai-translator/internal/usecase"
)

// ReadinessCheck is one named dependency probe for /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Translator *usecase.TranslatorService
	Catalog    usecase.CatalogService
	Registry   *registry.Registry
	Ledger     *ledger.Ledger
	Resolver   *resolver.Resolver
	Events     *events.Bus
	Checks     []ReadinessCheck
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, tr *usecase.TranslatorService, cat usecase.CatalogService, bus *events.Bus, checks ...ReadinessCheck) *Server {
	return &Server{
		Cfg:        cfg,
		Translator: tr,
		Catalog:    cat,
		Registry:   tr.Registry,
		Ledger:     tr.Ledger,
		Resolver:   tr.Resolver,
		Events:     bus,
		Checks:     checks,
	}
}

func providerParam(r *http.Request) (domain.ProviderID, error) {
	return domain.ParseProviderID(chi.URLParam(r, "provider"))
}

func scopeParam(r *http.Request) (domain.Scope, error) {
	return resolver.ParseScope(chi.URLParam(r, "scope"))
}

type translateResponse struct {
	domain.NormalizedResult
	Scope domain.Scope `json:"scope"`
}

// TranslateHandler runs a translation for the scope in the URL.
func (s *Server) TranslateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeParam(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		var req domain.TranslationRequest
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		out, err := s.Translator.Translate(r.Context(), scope, req)
		if err != nil {
			writeError(w, r, err, translateResponse{NormalizedResult: out, Scope: scope})
			return
		}
		writeJSON(w, http.StatusOK, translateResponse{NormalizedResult: out, Scope: scope})
	}
}

// HealthzHandler reports liveness.
func HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler runs every readiness check with a short deadline.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, len(s.Checks))
		st := http.StatusOK
		for _, c := range s.Checks {
			if err := c.Check(ctx); err != nil {
				checks = append(checks, check{Name: c.Name, OK: false, Details: err.Error()})
				st = http.StatusServiceUnavailable
				continue
			}
			checks = append(checks, check{Name: c.Name, OK: true})
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}
